// Package ptysession implements the PTY Session Registry: PTY-backed
// interactive child sessions that either the local shell or a remote
// client may attach to, poll, or drive.
//
// Architecture overview
// ──────────────────────
//
//  ┌───────────────────────────┐
//  │  Session                  │
//  │  ┌────────────┐           │
//  │  │ child proc │◄── PTY slave
//  │  └────────────┘           │
//  │        ▲  ▼               │
//  │      PTY master           │
//  │        │                  │
//  │   reader goroutine        │
//  │    ├── appends to buffer  │
//  │    └── forwards to sink (if attached)
//  └───────────────────────────┘
package ptysession

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"github.com/google/uuid"
	shellwords "github.com/mattn/go-shellwords"
)

// Session is one PTY-backed child process.
type Session struct {
	ID  string
	pid int

	mu      sync.Mutex
	ptm     *os.File // nil after the child exits or is killed
	buf     bytes.Buffer
	sink    *attachedSink
	running bool
}

type attachedSink struct {
	w io.Writer
}

// Registry owns every Session for the life of the process.
type Registry struct {
	autoAttach bool
	autoAttachCh chan string

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry builds a Registry. When autoAttach is true, every newly
// started session id is also pushed onto the channel returned by
// AutoAttach, for the local shell loop to pick up.
func NewRegistry(autoAttach bool) *Registry {
	return &Registry{
		autoAttach:   autoAttach,
		autoAttachCh: make(chan string, 16),
		sessions:     make(map[string]*Session),
	}
}

// AutoAttach returns the channel carrying ids of sessions that should be
// attached to automatically, per config.Config.AutoAttach.
func (r *Registry) AutoAttach() <-chan string {
	return r.autoAttachCh
}

// needsShell reports whether cmd should be wrapped in `sh -c` before
// tokenizing: it contains a shell metacharacter and isn't already an
// explicit sh/bash -c invocation.
func needsShell(cmd string) bool {
	trimmed := strings.TrimSpace(cmd)
	if strings.HasPrefix(trimmed, "sh -c") || strings.HasPrefix(trimmed, "bash -c") {
		return false
	}
	return strings.ContainsAny(cmd, "><|;*$&")
}

func tokenize(raw string) []string {
	if raw == "" {
		raw = "bash"
	}
	var parts []string
	if needsShell(raw) {
		parts = []string{"sh", "-c", raw}
	} else if words, err := shellwords.Parse(raw); err == nil {
		parts = words
	}
	if len(parts) == 0 {
		parts = []string{"bash"}
	}
	return parts
}

// Start launches rawCmd inside a fresh PTY and registers it under a new
// UUID. An empty rawCmd defaults to "bash".
func (r *Registry) Start(rawCmd string) (string, error) {
	parts := tokenize(rawCmd)

	cmd := exec.Command(parts[0], parts[1:]...)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptm, err := pty.Start(cmd)
	if err != nil {
		return "", fmt.Errorf("pty.Start: %w", err)
	}

	id := uuid.NewString()
	sess := &Session{
		ID:      id,
		pid:     cmd.Process.Pid,
		ptm:     ptm,
		running: true,
	}

	r.mu.Lock()
	r.sessions[id] = sess
	r.mu.Unlock()

	go r.readLoop(sess, cmd)

	log.Printf("ptysession: started %s -> %v", id, parts)

	if r.autoAttach {
		select {
		case r.autoAttachCh <- id:
		default:
			log.Printf("ptysession: auto-attach queue full, dropping %s", id)
		}
	}

	return id, nil
}

func (r *Registry) readLoop(sess *Session, cmd *exec.Cmd) {
	buf := make([]byte, 4096)
	for {
		n, err := sess.ptm.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			sess.mu.Lock()
			sess.buf.Write(chunk)
			sink := sess.sink
			sess.mu.Unlock()
			if sink != nil {
				sink.w.Write(chunk)
			}
		}
		if err != nil {
			break
		}
	}

	_ = cmd.Wait()

	sess.mu.Lock()
	if sess.ptm != nil {
		sess.ptm.Close()
		sess.ptm = nil
	}
	sess.running = false
	sess.mu.Unlock()

	log.Printf("ptysession: %s exited", sess.ID)
}

func (r *Registry) get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Output drains and returns the session's accumulated output since the
// last call. The bool result is false for an unknown id.
func (r *Registry) Output(id string) (string, bool) {
	sess, ok := r.get(id)
	if !ok {
		return "", false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := sess.buf.String()
	sess.buf.Reset()
	return out, true
}

// Input writes p directly into the session's PTY master, unmodified.
func (r *Registry) Input(id string, p []byte) (bool, error) {
	sess, ok := r.get(id)
	if !ok {
		return false, nil
	}
	sess.mu.Lock()
	ptm := sess.ptm
	sess.mu.Unlock()
	if ptm == nil {
		return true, fmt.Errorf("session %s has exited", id)
	}
	_, err := ptm.Write(p)
	return true, err
}

// Resize changes the session's PTY window size.
func (r *Registry) Resize(id string, cols, rows uint16) error {
	sess, ok := r.get(id)
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	sess.mu.Lock()
	ptm := sess.ptm
	sess.mu.Unlock()
	if ptm == nil {
		return nil
	}
	return pty.Setsize(ptm, &pty.Winsize{Cols: cols, Rows: rows})
}

// Attach binds w as the live output sink for id and returns the replay
// buffer (everything accumulated before this call) plus a detach func.
// Only one attacher is allowed at a time.
func (r *Registry) Attach(id string, w io.Writer) (replay []byte, detach func(), err error) {
	sess, ok := r.get(id)
	if !ok {
		return nil, nil, fmt.Errorf("session %s not found", id)
	}

	sess.mu.Lock()
	if sess.sink != nil {
		sess.mu.Unlock()
		return nil, nil, fmt.Errorf("session %s already attached", id)
	}
	replay = append([]byte(nil), sess.buf.Bytes()...)
	sess.buf.Reset()
	sess.sink = &attachedSink{w: w}
	sess.mu.Unlock()

	detach = func() {
		sess.mu.Lock()
		sess.sink = nil
		sess.mu.Unlock()
	}
	return replay, detach, nil
}

// IDs returns the ids of every known session, running or not.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// PID returns the child process id for a session, or 0 if unknown.
func (r *Registry) PID(id string) int {
	sess, ok := r.get(id)
	if !ok {
		return 0
	}
	return sess.pid
}

// Kill attempts, in order, to signal the process group, close the PTY
// master, and drop the session from the registry — continuing through
// failures at each step rather than stopping at the first one.
func (r *Registry) Kill(id string) bool {
	sess, ok := r.get(id)
	if !ok {
		return false
	}

	sess.mu.Lock()
	pid := sess.pid
	ptm := sess.ptm
	sess.mu.Unlock()

	if pid > 0 {
		if pgid, err := syscall.Getpgid(pid); err == nil && pgid > 0 {
			syscall.Kill(-pgid, syscall.SIGKILL)
		} else {
			syscall.Kill(pid, syscall.SIGKILL)
		}
	}

	if ptm != nil {
		ptm.Close()
	}

	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()

	return true
}
