// Package control exposes the daemon's HTTP command surface. Tapping a
// notification action and hitting a control endpoint are the same thing:
// both re-enter the coordinator's dispatcher.
package control

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/radioteateonair/radiod/internal/version"
	"github.com/radioteateonair/radiod/pkg/logging"
	"github.com/radioteateonair/radiod/pkg/player"
)

// Dispatcher is the subset of the coordinator the control surface needs
type Dispatcher interface {
	Dispatch(action player.Action)
	Status() player.Status
	Events() *player.Broadcaster
}

// Server routes HTTP control requests into the dispatcher
type Server struct {
	dispatcher Dispatcher
	logger     logging.Logger
	mux        *http.ServeMux
}

// NewServer creates a new control server
func NewServer(dispatcher Dispatcher, logger logging.Logger) *Server {
	s := &Server{
		dispatcher: dispatcher,
		logger:     logger.WithPipeline("control"),
		mux:        http.NewServeMux(),
	}

	s.mux.HandleFunc("/control/", s.handleControl)
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/events", s.handleEvents)
	s.mux.HandleFunc("/healthz", s.handleHealthz)

	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleControl accepts a command and always acknowledges it. Debounced
// duplicates are dropped inside the dispatcher, but the caller still gets
// a 202 so control clients need no special retry handling.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tag := r.URL.Path[len("/control/"):]
	action := player.ParseAction(tag)

	s.logger.Debug("Control request", map[string]interface{}{
		"tag":    tag,
		"action": action.String(),
	})

	s.dispatcher.Dispatch(action)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{
		"accepted": action.String(),
	})
}

// handleStatus returns the current coordinator snapshot
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, s.dispatcher.Status())
}

// handleEvents streams lifecycle broadcasts as server-sent events so a
// UI can mirror play/stop visuals
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := s.dispatcher.Events().Subscribe()
	defer s.dispatcher.Events().Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.Done:
			return
		case event := <-sub.Events:
			fmt.Fprintf(w, "event: %s\ndata: {}\n\n", event)
			flusher.Flush()
		}
	}
}

// handleHealthz reports process liveness
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":  "ok",
		"version": version.Get(),
		"time":    time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	_ = json.NewEncoder(w).Encode(v)
}
