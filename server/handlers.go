package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	. "gridq/grid_world"
	"gridq/reinforcement"
	"gridq/server/charts"
	"gridq/session"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// sessionLookup resolves the session a request addresses. live reports
// whether its snapshots feed the web view.
type sessionLookup func(r *http.Request) (locked *session.Locked, live bool, err error)

func (server *Server) defaultSession(_ *http.Request) (*session.Locked, bool, error) {
	return server.current, true, nil
}

func (server *Server) registrySession(r *http.Request) (*session.Locked, bool, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", session.ErrSessionNotFound, err)
	}
	locked, err := server.registry.Get(id)
	return locked, false, err
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type paramsResponse struct {
	Status string `json:"status"`
	reinforcement.HyperParams
}

type sessionResponse struct {
	ID uuid.UUID `json:"id"`
}

// resetRequest selects a mode by name, or supplies a whole custom environment.
type resetRequest struct {
	Mode   string                  `json:"mode"`
	Config *reinforcement.ModeSpec `json:"config"`
}

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (server *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrTooManySessions):
		status = http.StatusTooManyRequests
	case errors.Is(err, errBadRequest),
		errors.Is(err, reinforcement.ErrInvalidHyperParameter),
		errors.Is(err, ErrInvalidConfig):
	default:
		status = http.StatusInternalServerError
		server.logger.Errorf("%v", err)
	}
	writeJSON(w, status, errorResponse{Status: "error", Message: err.Error()})
}

// decodeBody decodes an optional JSON body; an empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// withSession resolves the addressed session before calling handle.
func (server *Server) withSession(
	lookup sessionLookup,
	handle func(w http.ResponseWriter, r *http.Request, locked *session.Locked, live bool),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locked, live, err := lookup(r)
		if err != nil {
			server.writeError(w, err)
			return
		}
		handle(w, r, locked, live)
	}
}

func (server *Server) handleReset(lookup sessionLookup) http.HandlerFunc {
	return server.withSession(lookup, func(w http.ResponseWriter, r *http.Request, locked *session.Locked, live bool) {
		var req resetRequest
		if err := decodeBody(r, &req); err != nil {
			server.writeError(w, err)
			return
		}

		var custom *EnvironmentConfig
		if req.Config != nil {
			if req.Config.Name == "" {
				req.Config.Name = "custom"
			}
			cfg, err := req.Config.Environment()
			if err != nil {
				server.writeError(w, err)
				return
			}
			custom = &cfg
		}

		var (
			result session.ResetResult
			err    error
		)
		locked.Do(func(s *session.Session) {
			if custom != nil {
				result, err = s.ResetWithConfig(*custom)
			} else {
				result = s.ResetWithMode(req.Mode)
			}
			if err == nil && live {
				server.publish(s.Snapshot())
			}
		})
		if err != nil {
			server.writeError(w, err)
			return
		}
		server.logger.Infof("reset into mode %s", result.Mode)
		writeJSON(w, http.StatusOK, result)
	})
}

func (server *Server) handleRestart(lookup sessionLookup) http.HandlerFunc {
	return server.withSession(lookup, func(w http.ResponseWriter, r *http.Request, locked *session.Locked, live bool) {
		var state Position
		locked.Do(func(s *session.Session) {
			state = s.RestartEpisode()
			if live {
				server.publish(s.Snapshot())
			}
		})
		writeJSON(w, http.StatusOK, struct {
			State Position `json:"state"`
		}{state})
	})
}

func (server *Server) handleStep(lookup sessionLookup) http.HandlerFunc {
	return server.withSession(lookup, func(w http.ResponseWriter, r *http.Request, locked *session.Locked, live bool) {
		var result session.StepResult
		locked.Do(func(s *session.Session) {
			result = s.Step()
			if !live && !(result.Done && server.logger.DebugEnabled()) {
				return
			}
			snap := s.Snapshot()
			if live {
				server.publish(snap)
			}
			if result.Done {
				server.logEpisode(snap, result)
			}
		})
		writeJSON(w, http.StatusOK, result)
	})
}

// logEpisode dumps the greedy policy after a finished episode, in debug mode only.
func (server *Server) logEpisode(snap session.Snapshot, result session.StepResult) {
	if !server.logger.DebugEnabled() {
		return
	}
	server.logger.Debugf("episode %d finished with return %.1f", result.Episode, result.EpisodeReturn)
	ShowPolicy(server.logger.Writer(), snap.Config, server.logger.Colors(), snap.Best)
}

// paramValue renders a decoded JSON value as the text the session parses.
func paramValue(raw interface{}) *string {
	var text string
	switch v := raw.(type) {
	case string:
		text = v
	case float64:
		text = strconv.FormatFloat(v, 'g', -1, 64)
	default:
		text = fmt.Sprint(v)
	}
	return &text
}

func (server *Server) handleUpdateParams(lookup sessionLookup) http.HandlerFunc {
	return server.withSession(lookup, func(w http.ResponseWriter, r *http.Request, locked *session.Locked, live bool) {
		body := map[string]interface{}{}
		if err := decodeBody(r, &body); err != nil {
			server.writeError(w, err)
			return
		}

		var update session.ParamUpdate
		for key, field := range map[string]**string{
			"learning_rate":   &update.LearningRate,
			"discount_factor": &update.DiscountFactor,
			"epsilon":         &update.Epsilon,
		} {
			if raw, ok := body[key]; ok {
				*field = paramValue(raw)
			}
		}

		var (
			params reinforcement.HyperParams
			err    error
		)
		locked.Do(func(s *session.Session) {
			params, err = s.UpdateHyperparameters(update)
			if err == nil && live {
				server.publish(s.Snapshot())
			}
		})
		if err != nil {
			server.writeError(w, err)
			return
		}
		server.logger.Infof("hyperparameters now %+v", params)
		writeJSON(w, http.StatusOK, paramsResponse{Status: "success", HyperParams: params})
	})
}

func (server *Server) createSession(w http.ResponseWriter, r *http.Request) {
	id, _, err := server.registry.Create()
	if err != nil {
		server.writeError(w, err)
		return
	}
	server.logger.Infof("created session %s (%d live)", id, server.registry.Len())
	writeJSON(w, http.StatusCreated, sessionResponse{ID: id})
}

func (server *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		server.writeError(w, fmt.Errorf("%w: %v", session.ErrSessionNotFound, err))
		return
	}
	if err := server.registry.Delete(id); err != nil {
		server.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (server *Server) serveCharts(lookup sessionLookup) http.HandlerFunc {
	return server.withSession(lookup, func(w http.ResponseWriter, r *http.Request, locked *session.Locked, _ bool) {
		var snap session.Snapshot
		locked.Do(func(s *session.Session) {
			snap = s.Snapshot()
		})

		buf := &bytes.Buffer{}
		if err := charts.Render(buf, snap); err != nil {
			server.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = buf.WriteTo(w)
	})
}
