package cell_views

import (
	"fmt"
	"html/template"

	"gridq/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// StatusBar shows the mode, episode bookkeeping and hyperparameters as text.
type StatusBar struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewStatusBar(
	done <-chan struct{},
	frames <-chan Frame,
) (sb *StatusBar) {
	sb = &StatusBar{id: "statusbar"}
	sb.updates = channerics.Convert(done, frames, sb.onUpdate)
	return
}

func (sb *StatusBar) Updates() <-chan []fastview.EleUpdate {
	return sb.updates
}

var statusFields = []struct {
	label string
	get   func(Status) string
}{
	{"mode", func(s Status) string { return s.Mode }},
	{"episode", func(s Status) string { return fmt.Sprint(s.Episode) }},
	{"last return", func(s Status) string { return s.LastReturn }},
	{"α", func(s Status) string { return s.LearningRate }},
	{"γ", func(s Status) string { return s.DiscountFactor }},
	{"ε", func(s Status) string { return s.Epsilon }},
}

func (sb *StatusBar) eleID(i int) string {
	return fmt.Sprintf("%s-field-%d", sb.id, i)
}

func (sb *StatusBar) Parse(t *template.Template) (name string, err error) {
	name = sb.id
	body := ""
	for i, field := range statusFields {
		body += fmt.Sprintf(`<span style="margin-right: 20px;">%s: <b id="%s">{{ index .Fields %d }}</b></span>`,
			template.HTMLEscapeString(field.label), sb.eleID(i), i)
	}
	_, err = t.Funcs(template.FuncMap{
		"statusFields": sb.fields,
	}).Parse(`{{ define "` + name + `" }}
		<div id="` + sb.id + `" style="font-family: monospace; padding: 10px;">
		{{ with statusFields .Status }}` + body + `{{ end }}
		</div>
		{{ end }}`)
	return
}

type fieldValues struct {
	Fields []string
}

func (sb *StatusBar) fields(status Status) fieldValues {
	vals := make([]string, len(statusFields))
	for i, field := range statusFields {
		vals[i] = field.get(status)
	}
	return fieldValues{Fields: vals}
}

func (sb *StatusBar) onUpdate(frame Frame) (ops []fastview.EleUpdate) {
	for i, val := range sb.fields(frame.Status).Fields {
		ops = append(ops, fastview.EleUpdate{
			EleId: sb.eleID(i),
			Ops:   []fastview.Op{{Key: "textContent", Value: val}},
		})
	}
	return
}
