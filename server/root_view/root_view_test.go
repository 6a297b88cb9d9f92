package root_view

import (
	"context"
	"html/template"
	"math/rand"
	"strings"
	"testing"
	"time"

	"gridq/reinforcement"
	"gridq/server/cell_views"
	"gridq/server/fastview"
	"gridq/session"

	. "github.com/smartystreets/goconvey/convey"
)

func update(id, value string) fastview.EleUpdate {
	return fastview.EleUpdate{
		EleId: id,
		Ops:   []fastview.Op{{Key: "textContent", Value: value}},
	}
}

func TestBatchify(t *testing.T) {
	Convey("Given a batching stage", t, func() {
		done := make(chan struct{})
		defer close(done)
		source := make(chan []fastview.EleUpdate)
		batches := batchify(done, source, time.Millisecond*5)

		Convey("Updates for the same element collapse to the latest", func() {
			source <- []fastview.EleUpdate{update("a", "1"), update("b", "1")}
			source <- []fastview.EleUpdate{update("a", "2")}

			got := map[string]string{}
			for len(got) < 2 {
				for _, u := range <-batches {
					got[u.EleId] = u.Ops[0].Value
				}
			}
			So(got, ShouldResemble, map[string]string{"a": "2", "b": "1"})
		})
	})
}

func TestOffer(t *testing.T) {
	Convey("Given a subscriber that has not read its last batch", t, func() {
		ch := make(chan []fastview.EleUpdate, 1)
		offer(ch, []fastview.EleUpdate{update("a", "1"), update("b", "1")})
		offer(ch, []fastview.EleUpdate{update("a", "2")})

		Convey("The pending and new batches are merged", func() {
			got := map[string]string{}
			for _, u := range <-ch {
				got[u.EleId] = u.Ops[0].Value
			}
			So(got, ShouldResemble, map[string]string{"a": "2", "b": "1"})
			So(len(ch), ShouldEqual, 0)
		})
	})
}

func TestRootView(t *testing.T) {
	Convey("Given a root view over a session's snapshots", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := session.New(session.Config{
			HyperParams: reinforcement.DefaultHyperParams(),
			Rand:        rand.New(rand.NewSource(3)),
		})
		So(err, ShouldBeNil)

		snapshots := make(chan session.Snapshot, 1)
		rv, err := NewRootView(ctx, snapshots)
		So(err, ShouldBeNil)

		Convey("The page renders the websocket bootstrap and both views", func() {
			name, err := rv.Parse(template.New("index"))
			So(err, ShouldBeNil)
			So(name, ShouldEqual, "mainpage")
		})

		Convey("Every subscriber receives updates", func() {
			first, releaseFirst := rv.Subscribe()
			defer releaseFirst()
			second, releaseSecond := rv.Subscribe()
			defer releaseSecond()

			s.Step()
			snapshots <- s.Snapshot()

			for _, ch := range []<-chan []fastview.EleUpdate{first, second} {
				select {
				case updates := <-ch:
					So(len(updates), ShouldBeGreaterThan, 0)
				case <-time.After(time.Second):
					So("timed out", ShouldBeEmpty)
				}
			}
		})

		Convey("A released subscriber is dropped", func() {
			_, release := rv.Subscribe()
			release()
			rv.mu.Lock()
			defer rv.mu.Unlock()
			So(rv.subscribers, ShouldBeEmpty)
		})
	})
}

func TestPageScript(t *testing.T) {
	Convey("The page connects back to the serving host", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		rv, err := NewRootView(ctx, make(chan session.Snapshot))
		So(err, ShouldBeNil)
		s, err := session.New(session.Config{
			HyperParams: reinforcement.DefaultHyperParams(),
			Rand:        rand.New(rand.NewSource(3)),
		})
		So(err, ShouldBeNil)

		tmpl := template.New("index")
		name, err := rv.Parse(tmpl)
		So(err, ShouldBeNil)
		So(tmpl.Lookup(name), ShouldNotBeNil)

		var sb strings.Builder
		So(tmpl.ExecuteTemplate(&sb, name, cell_views.Convert(s.Snapshot())), ShouldBeNil)
		So(sb.String(), ShouldContainSubstring, "location.host")
		So(sb.String(), ShouldContainSubstring, `id="valuesgrid"`)
		So(sb.String(), ShouldContainSubstring, `data-size="5"`)
		So(sb.String(), ShouldContainSubstring, "location.reload")
	})
}
