// Package child implements the Child Process Manager: synchronous command
// execution and backgrounded, trackable process records.
package child

import (
	"bytes"
	"context"
	"log"
	"os/exec"
	"sync"
	"syscall"

	"github.com/google/uuid"
)

// Snapshot is a point-in-time view of a Record's accumulated output.
type Snapshot struct {
	Stdout   string
	Stderr   string
	Running  bool
	ExitCode int
}

// Record is a child process tracked by ID after Manager.Start. It persists
// after exit and after Manager.Kill, queryable via Manager.Output, until
// process teardown discards it.
type Record struct {
	mu       sync.Mutex
	cmd      *exec.Cmd
	stdout   bytes.Buffer
	stderr   bytes.Buffer
	running  bool
	exitCode int
	done     chan struct{}
}

func (r *Record) snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Stdout:   r.stdout.String(),
		Stderr:   r.stderr.String(),
		Running:  r.running,
		ExitCode: r.exitCode,
	}
}

// Manager owns every backgrounded Record for the life of the process.
type Manager struct {
	shell string

	mu      sync.Mutex
	records map[string]*Record
}

// NewManager builds a Manager that runs every command through shell (e.g.
// "/bin/sh"), invoked as `shell -c <cmdline>`.
func NewManager(shell string) *Manager {
	return &Manager{
		shell:   shell,
		records: make(map[string]*Record),
	}
}

// Run executes cmd synchronously through the configured shell and returns
// its captured output. It never returns a Go error: spawn failures are
// reported as exitCode -1 with the failure text in stderr.
func (m *Manager) Run(ctx context.Context, cmdline string, stdin string) (stdout, stderr string, exitCode int) {
	cmd := exec.CommandContext(ctx, m.shell, "-c", cmdline)
	if stdin != "" {
		cmd.Stdin = bytes.NewBufferString(stdin)
	}

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return outBuf.String(), errBuf.String(), exitErr.ExitCode()
		}
		log.Printf("child: run %q: %v", cmdline, err)
		return outBuf.String(), err.Error(), -1
	}
	return outBuf.String(), errBuf.String(), 0
}

// Start launches cmdline in the background under a fresh UUID and returns
// immediately with that id; output accumulates in the Record registered
// under it, which the caller polls via Output.
func (m *Manager) Start(ctx context.Context, cmdline string, stdin string) (string, error) {
	cmd := exec.Command(m.shell, "-c", cmdline)

	rec := &Record{cmd: cmd, running: true, done: make(chan struct{})}

	if stdin != "" {
		cmd.Stdin = bytes.NewBufferString(stdin)
	}
	cmd.Stdout = lockedWriter{rec: rec, target: &rec.stdout}
	cmd.Stderr = lockedWriter{rec: rec, target: &rec.stderr}

	if err := cmd.Start(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	m.mu.Lock()
	m.records[id] = rec
	m.mu.Unlock()

	go func() {
		err := cmd.Wait()
		rec.mu.Lock()
		rec.running = false
		if exitErr, ok := err.(*exec.ExitError); ok {
			rec.exitCode = exitErr.ExitCode()
		} else if err != nil {
			rec.exitCode = -1
		} else {
			rec.exitCode = 0
		}
		rec.mu.Unlock()
		close(rec.done)
		log.Printf("child: %s exited (code=%d)", id, rec.exitCode)
	}()

	return id, nil
}

// lockedWriter serializes writes from a subprocess's stdout/stderr pipes
// into the Record's buffers, since os/exec can call Write concurrently
// from its own copy goroutines.
type lockedWriter struct {
	rec    *Record
	target *bytes.Buffer
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.rec.mu.Lock()
	defer w.rec.mu.Unlock()
	return w.target.Write(p)
}

// Output returns a snapshot of the named record's accumulated output and
// whether it is still running. The bool result is false for an unknown id.
func (m *Manager) Output(id string) (Snapshot, bool) {
	m.mu.Lock()
	rec, ok := m.records[id]
	m.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	return rec.snapshot(), true
}

// Kill sends SIGTERM to the named record's process and waits for it to
// exit. The record remains queryable afterward.
func (m *Manager) Kill(id string) (Snapshot, bool) {
	m.mu.Lock()
	rec, ok := m.records[id]
	m.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}

	rec.mu.Lock()
	proc := rec.cmd.Process
	done := rec.done
	rec.mu.Unlock()

	if proc != nil {
		if err := proc.Signal(syscall.SIGTERM); err != nil {
			log.Printf("child: kill %s: %v", id, err)
		}
	}
	if done != nil {
		<-done
	}
	return rec.snapshot(), true
}
