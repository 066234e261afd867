// Package api implements the Remote Request Handlers (C5) and Transport
// (C6): the HTTP surface a remote automation client drives.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/ianremillard/sgptd/internal/child"
	"github.com/ianremillard/sgptd/internal/classify"
	"github.com/ianremillard/sgptd/internal/confirm"
	"github.com/ianremillard/sgptd/internal/ptysession"
	"github.com/ianremillard/sgptd/internal/shell"
)

const interactiveHint = "Interactive commands require an interactive session. Use /interactive/start, then attach locally if desired."

// Server holds everything the HTTP handlers need: the component
// references plus transport-level settings.
type Server struct {
	children *child.Manager
	sessions *ptysession.Registry
	broker   *confirm.Broker
	sh       *shell.Shell

	requireConfirmation bool
	quietTransport      bool
}

// NewServer builds an *http.Server mounted under rootPath.
func NewServer(children *child.Manager, sessions *ptysession.Registry, broker *confirm.Broker, sh *shell.Shell, rootPath string, requireConfirmation, quietTransport bool) *http.Server {
	s := &Server{
		children:            children,
		sessions:            sessions,
		broker:              broker,
		sh:                  sh,
		requireConfirmation: requireConfirmation,
		quietTransport:      quietTransport,
	}

	root := mux.NewRouter()
	api := root.PathPrefix(rootPath).Subrouter()

	api.HandleFunc("/run", s.handleRun).Methods(http.MethodPost)
	api.HandleFunc("/start", s.handleStart).Methods(http.MethodPost)
	api.HandleFunc("/output/{id}", s.handleOutput).Methods(http.MethodGet)
	api.HandleFunc("/kill/{id}", s.handleKill).Methods(http.MethodPost)

	api.HandleFunc("/interactive/start", s.handleInteractiveStart).Methods(http.MethodPost)
	api.HandleFunc("/interactive/output/{session_id}", s.handleInteractiveOutput).Methods(http.MethodGet)
	api.HandleFunc("/interactive/input/{session_id}", s.handleInteractiveInput).Methods(http.MethodPost)
	api.HandleFunc("/interactive/kill/{session_id}", s.handleInteractiveKill).Methods(http.MethodPost)

	api.HandleFunc("/openapi.json", s.handleOpenAPI).Methods(http.MethodGet)

	var handler http.Handler = root
	if !quietTransport {
		handler = accessLog(root)
	}

	return &http.Server{Handler: handler}
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("api: %s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// shellCommand is the request body shape shared by /run and /start.
type shellCommand struct {
	Command string `json:"command"`
	Stdin   string `json:"stdin"`
}

// ── /run, /start ────────────────────────────────────────────────────────

func (s *Server) confirm(ctx context.Context, cmd, origin string) confirm.Decision {
	if !s.requireConfirmation {
		return confirm.Approved
	}
	return s.broker.Enqueue(ctx, cmd, origin)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var payload shellCommand
	if err := decodeBody(r, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	cmd := classify.Normalize(payload.Command)
	if classify.IsInteractive(cmd) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"stdout": "", "stderr": interactiveHint, "exit_code": -1,
		})
		return
	}

	if s.confirm(r.Context(), cmd, "run") == confirm.Declined {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"stdout": "", "stderr": "Command execution declined by user.", "exit_code": -1,
		})
		return
	}

	s.sh.Notices() <- shell.FormatRemoteNotice(cmd)
	s.sh.RecordHistory(cmd)

	stdout, stderr, exitCode := s.children.Run(r.Context(), cmd, payload.Stdin)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stdout": stdout, "stderr": stderr, "exit_code": exitCode,
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var payload shellCommand
	if err := decodeBody(r, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	cmd := classify.Normalize(payload.Command)
	if classify.IsInteractive(cmd) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"stdout": "", "stderr": "Interactive commands require an interactive session. Use /interactive/start.", "exit_code": -1,
		})
		return
	}

	if s.confirm(r.Context(), cmd, "start") == confirm.Declined {
		writeJSON(w, http.StatusOK, map[string]string{"error": "Execution declined"})
		return
	}

	id, err := s.children.Start(r.Context(), cmd, payload.Stdin)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snap, ok := s.children.Output(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Process not found"})
		return
	}
	var exitCode interface{} // null while the process is still running
	if !snap.Running {
		exitCode = snap.ExitCode
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stdout": snap.Stdout, "stderr": snap.Stderr, "running": snap.Running, "exit_code": exitCode,
	})
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snap, ok := s.children.Kill(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Process not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Process " + id + " terminated.", "exit_code": snap.ExitCode,
	})
}

// ── /interactive/* ─────────────────────────────────────────────────────

func (s *Server) handleInteractiveStart(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Cmd string `json:"cmd"`
	}
	if err := decodeBody(r, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	id, err := s.sessions.Start(payload.Cmd)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id})
}

func (s *Server) handleInteractiveOutput(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["session_id"]
	out, ok := s.sessions.Output(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Session not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"output": out})
}

func (s *Server) handleInteractiveInput(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["session_id"]
	var payload struct {
		Input string `json:"input"`
	}
	if err := decodeBody(r, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	ok, err := s.sessions.Input(id, []byte(payload.Input))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Session not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "input sent"})
}

func (s *Server) handleInteractiveKill(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["session_id"]
	if !s.sessions.Kill(id) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Session not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "session " + id + " terminated"})
}

// ── /openapi.json ──────────────────────────────────────────────────────

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, err := io.Copy(w, strings.NewReader(openAPIDocument))
	if err != nil {
		log.Printf("api: serving openapi.json: %v", err)
	}
}
