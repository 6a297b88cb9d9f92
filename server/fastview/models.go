// fastview pushes server-rendered view updates to browsers: a data model is
// converted to a view-model, multiplexed to one or more views, and each view
// emits element updates that a websocket client applies to the page.
package fastview

import (
	"html/template"
)

// EleUpdate is an element id and the operations to apply to it.
type EleUpdate struct {
	EleId string
	// Op keys are attribute names, except 'textContent' which sets the element's text.
	Ops []Op
}

// Op sets one attribute (or the text) of an element.
type Op struct {
	Key   string
	Value string
}

// ViewComponent is a server-side view: Parse adds its initial markup to the
// page template and Updates streams its element updates.
type ViewComponent interface {
	Updates() <-chan []EleUpdate
	// Parse defines the component's template under the passed parent, sharing
	// its func-map, and returns the defined template name.
	Parse(*template.Template) (string, error)
}
