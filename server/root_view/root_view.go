package root_view

import (
	"context"
	"html/template"
	"sync"
	"time"

	"gridq/server/cell_views"
	"gridq/server/fastview"
	"gridq/session"

	channerics "github.com/niceyeti/channerics/channels"
)

const batchRate = time.Millisecond * 20

// RootView is the main page: it owns the view components, merges their
// element updates and hands them out to every connected subscriber.
type RootView struct {
	views []fastview.ViewComponent

	mu          sync.Mutex
	subscribers map[chan []fastview.EleUpdate]struct{}
}

// NewRootView builds the page's views over the snapshot stream. Everything
// stops when ctx is cancelled.
func NewRootView(
	ctx context.Context,
	snapshots <-chan session.Snapshot,
) (*RootView, error) {
	views, err := fastview.NewViewBuilder[session.Snapshot, cell_views.Frame]().
		WithContext(ctx).
		WithModel(snapshots, cell_views.Convert).
		WithView(func(
			done <-chan struct{},
			frames <-chan cell_views.Frame) fastview.ViewComponent {
			return cell_views.NewValuesGrid(done, frames)
		}).
		WithView(func(
			done <-chan struct{},
			frames <-chan cell_views.Frame) fastview.ViewComponent {
			return cell_views.NewStatusBar(done, frames)
		}).
		Build()
	if err != nil {
		return nil, err
	}

	rv := &RootView{
		views:       views,
		subscribers: map[chan []fastview.EleUpdate]struct{}{},
	}
	go rv.fanOut(ctx.Done(), fanIn(ctx.Done(), views))
	return rv, nil
}

// Subscribe returns a channel of merged updates and a func to release it.
// A slow subscriber never blocks the others; its pending updates are merged.
func (rv *RootView) Subscribe() (<-chan []fastview.EleUpdate, func()) {
	ch := make(chan []fastview.EleUpdate, 1)
	rv.mu.Lock()
	rv.subscribers[ch] = struct{}{}
	rv.mu.Unlock()

	return ch, func() {
		rv.mu.Lock()
		delete(rv.subscribers, ch)
		rv.mu.Unlock()
	}
}

func (rv *RootView) fanOut(done <-chan struct{}, source <-chan []fastview.EleUpdate) {
	for updates := range channerics.OrDone(done, source) {
		rv.mu.Lock()
		for ch := range rv.subscribers {
			offer(ch, updates)
		}
		rv.mu.Unlock()
	}
}

// offer sends without blocking. Only the fan-out goroutine sends, so after a
// pending batch is taken back the buffer slot is free.
func offer(ch chan []fastview.EleUpdate, updates []fastview.EleUpdate) {
	select {
	case ch <- updates:
		return
	default:
	}

	merged := map[string]fastview.EleUpdate{}
	select {
	case pending := <-ch:
		for _, update := range pending {
			merged[update.EleId] = update
		}
	default:
	}
	for _, update := range updates {
		merged[update.EleId] = update
	}
	select {
	case ch <- slicedVals(merged):
	default:
	}
}

// Parse defines the page template, which bootstraps the websocket and lays
// out the child views, and sets up the func-map the views rely on.
func (rv *RootView) Parse(
	parent *template.Template,
) (name string, err error) {
	rt := parent.Funcs(
		template.FuncMap{
			"add":  func(i, j int) int { return i + j },
			"sub":  func(i, j int) int { return i - j },
			"mult": func(i, j int) int { return i * j },
			"div":  func(i, j int) int { return i / j },
		})

	var bodySpec string
	for _, vc := range rv.views {
		tname, parseErr := vc.Parse(rt)
		if parseErr != nil {
			return "", parseErr
		}
		bodySpec += `{{ template "` + tname + `" . }}`
	}

	name = "mainpage"
	indexTemplate := `
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<link rel="icon" href="data:,">
			<script>
				const scheme = location.protocol === "https:" ? "wss://" : "ws://";
				const ws = new WebSocket(scheme + location.host + "/ws");
				ws.onopen = function (event) {
					console.log("Web socket opened")
				};
				ws.onerror = function (event) {
					console.log('WebSocket error: ', event);
				};
				// Apply the pushed element updates by id. A grid of another size
				// means the mode changed, so the page is redrawn.
				ws.onmessage = function (event) {
					const items = JSON.parse(event.data)
					for (const update of items) {
						const ele = document.getElementById(update.EleId)
						if (!ele) {
							continue
						}
						for (const op of update.Ops) {
							if (op.Key === "` + cell_views.SizeKey + `") {
								if (ele.getAttribute(op.Key) !== op.Value) {
									location.reload();
									return;
								}
							} else if (op.Key === "textContent") {
								ele.textContent = op.Value;
							} else {
								ele.setAttribute(op.Key, op.Value)
							}
						}
					}
				}
			</script>
		</head>
		<body>
		` + bodySpec + `
		<p><a href="/charts">charts</a></p>
		</body></html>
	{{ end }}
	`

	_, err = rt.Parse(indexTemplate)
	return
}

// fanIn merges the views' update channels and batches the result.
func fanIn(
	done <-chan struct{},
	views []fastview.ViewComponent,
) <-chan []fastview.EleUpdate {
	inputs := make([]<-chan []fastview.EleUpdate, len(views))
	for i, view := range views {
		inputs[i] = view.Updates()
	}
	return batchify(
		done,
		channerics.Merge(done, inputs...),
		batchRate)
}

// batchify collects updates for the given period and sends them as one batch,
// keeping only the latest update per element id.
func batchify(
	done <-chan struct{},
	source <-chan []fastview.EleUpdate,
	rate time.Duration,
) <-chan []fastview.EleUpdate {
	output := make(chan []fastview.EleUpdate)

	go func() {
		defer close(output)

		data := map[string]fastview.EleUpdate{}
		ticker := channerics.NewTicker(done, rate)
		for {
			select {
			case <-done:
				return
			case updates, ok := <-source:
				if !ok {
					return
				}
				for _, update := range updates {
					data[update.EleId] = update
				}
			case <-ticker:
				if len(data) == 0 {
					continue
				}
				select {
				case output <- slicedVals(data):
					data = map[string]fastview.EleUpdate{}
				case <-done:
					return
				}
			}
		}
	}()

	return output
}

func slicedVals[T1 comparable, T2 any](mp map[T1]T2) (sliced []T2) {
	for _, v := range mp {
		sliced = append(sliced, v)
	}
	return
}
