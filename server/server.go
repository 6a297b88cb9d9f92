package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"gridq/logging"
	"gridq/server/cell_views"
	"gridq/server/fastview"
	"gridq/server/root_view"
	"gridq/session"

	"github.com/gorilla/mux"
)

const shutdownGrace = 5 * time.Second

// Server exposes a default session on the plain endpoints, any number of
// registry sessions under /sessions, and a live view of the default session.
type Server struct {
	addr     string
	logger   *logging.Logger
	current  *session.Locked
	registry *session.Registry
	// snapshots feeds the view pipeline; it holds at most the latest snapshot.
	snapshots chan session.Snapshot
	rootView  *root_view.RootView
	router    *mux.Router
}

// NewServer builds the default session and the views. The view pipeline
// runs until ctx is cancelled.
func NewServer(
	ctx context.Context,
	addr string,
	logger *logging.Logger,
	factory session.Factory,
	sessionLimit int,
) (*Server, error) {
	current, err := factory()
	if err != nil {
		return nil, fmt.Errorf("default session: %w", err)
	}

	snapshots := make(chan session.Snapshot, 1)
	rootView, err := root_view.NewRootView(ctx, snapshots)
	if err != nil {
		return nil, fmt.Errorf("views: %w", err)
	}

	server := &Server{
		addr:      addr,
		logger:    logger,
		current:   session.NewLocked(current),
		registry:  session.NewRegistry(factory, sessionLimit),
		snapshots: snapshots,
		rootView:  rootView,
	}
	server.router = server.routes()
	return server, nil
}

func (server *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/ws", server.serveWebsocket).Methods(http.MethodGet)

	router.HandleFunc("/sessions", server.createSession).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}", server.deleteSession).Methods(http.MethodDelete)
	server.sessionRoutes(router.PathPrefix("/sessions/{id}").Subrouter(), server.registrySession)
	server.sessionRoutes(router, server.defaultSession)

	router.Use(server.logRequests)
	return router
}

func (server *Server) sessionRoutes(router *mux.Router, lookup sessionLookup) {
	router.HandleFunc("/reset", server.handleReset(lookup)).Methods(http.MethodPost)
	router.HandleFunc("/restart", server.handleRestart(lookup)).Methods(http.MethodPost)
	router.HandleFunc("/step", server.handleStep(lookup)).Methods(http.MethodPost)
	router.HandleFunc("/update_params", server.handleUpdateParams(lookup)).Methods(http.MethodPost)
	router.HandleFunc("/charts", server.serveCharts(lookup)).Methods(http.MethodGet)
}

// Handler returns the routed handler, for serving or testing.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (server *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              server.addr,
		Handler:           server.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		shutdownErr <- srv.Shutdown(shutdownCtx)
	}()

	server.logger.Infof("listening on %s", server.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return <-shutdownErr
}

func (server *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		server.logger.Debugf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// publish offers the snapshot to the view pipeline, replacing any snapshot
// not yet consumed. It never blocks.
func (server *Server) publish(snap session.Snapshot) {
	select {
	case server.snapshots <- snap:
		return
	default:
	}
	select {
	case <-server.snapshots:
	default:
	}
	select {
	case server.snapshots <- snap:
	default:
	}
}

// serveWebsocket pushes view updates of the default session until the client leaves.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	updates, release := server.rootView.Subscribe()
	defer release()

	cli, err := fastview.NewClient(updates, w, r)
	if err != nil {
		server.logger.Errorf("upgrade: %v", err)
		return
	}
	if err := cli.Sync(); err != nil {
		server.logger.Errorf("websocket: %v", err)
	}
}

// serveIndex renders the main page with the default session's current state.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	var snap session.Snapshot
	server.current.Do(func(s *session.Session) {
		snap = s.Snapshot()
	})

	w.Header().Set("Content-Type", "text/html")
	if err := renderTemplate(w, server.rootView, cell_views.Convert(snap)); err != nil {
		server.logger.Errorf("index: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type templateParser interface {
	Parse(*template.Template) (string, error)
}

// renderTemplate executes the page fully before writing any of it.
func renderTemplate(
	w io.Writer,
	vc templateParser,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}

	buf := &bytes.Buffer{}
	if err = t.Execute(buf, data); err != nil {
		return
	}
	_, err = buf.WriteTo(w)
	return
}
