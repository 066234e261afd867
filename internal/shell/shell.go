// Package shell implements the Local Shell Loop: the human-facing prompt
// that runs in the same process as the HTTP API, and that the remote side
// can interrupt via confirmation tickets or newly-started PTY sessions.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/user"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/ianremillard/sgptd/internal/child"
	"github.com/ianremillard/sgptd/internal/classify"
	"github.com/ianremillard/sgptd/internal/confirm"
	"github.com/ianremillard/sgptd/internal/ptysession"
)

const (
	colorWhite  = "\033[97m"
	colorReset  = "\033[0m"
	colorRemote = "\033[38;2;223;155;255m"
)

const maxHistory = 256

// Shell owns the local terminal loop and the single goroutine allowed to
// read os.Stdin.
type Shell struct {
	children *child.Manager
	sessions *ptysession.Registry
	broker   *confirm.Broker

	lines   chan string
	notices chan string

	sinkMu  sync.Mutex
	rawSink chan<- []byte // non-nil while a terminal attach owns raw stdin bytes

	historyMu sync.Mutex
	history   []string
}

// New builds a Shell wired to the given components. Run blocks until the
// user exits.
func New(children *child.Manager, sessions *ptysession.Registry, broker *confirm.Broker) *Shell {
	return &Shell{
		children: children,
		sessions: sessions,
		broker:   broker,
		lines:    make(chan string),
		notices:  make(chan string, 32),
	}
}

// Notices returns the channel HTTP handlers push remote-command echo
// lines onto; the shell loop drains and prints them between prompts.
func (s *Shell) Notices() chan<- string {
	return s.notices
}

// FormatRemoteNotice highlights a remote-submitted command in a distinct
// color before it runs, so a human watching the shared terminal can tell
// local and remote activity apart at a glance.
func FormatRemoteNotice(cmd string) string {
	return fmt.Sprintf("\n%s%s%s", colorRemote, cmd, colorReset)
}

// stdinPump is the single goroutine for the process's lifetime that calls
// os.Stdin.Read; every other consumer gets stdin indirectly. Normally it
// assembles raw reads into newline-terminated lines and feeds the lines
// channel. While a terminal attach is active (see Attach/setRawSink), it
// instead forwards every raw chunk verbatim to the attach's sink channel,
// so a PTY session gets unbuffered, byte-exact keystrokes. Exactly one
// goroutine ever calls os.Stdin.Read for the process's life; routing
// between line-mode and raw-mode happens here, not via a second reader.
func (s *Shell) stdinPump() {
	buf := make([]byte, 256)
	var pending []byte
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)

			s.sinkMu.Lock()
			sink := s.rawSink
			s.sinkMu.Unlock()

			if sink != nil {
				sink <- chunk
			} else {
				pending = append(pending, chunk...)
				for {
					idx := bytes.IndexByte(pending, '\n')
					if idx < 0 {
						break
					}
					line := strings.TrimRight(string(pending[:idx]), "\r")
					pending = pending[idx+1:]
					s.lines <- line
				}
			}
		}
		if err != nil {
			s.sinkMu.Lock()
			if s.rawSink != nil {
				close(s.rawSink)
				s.rawSink = nil
			}
			s.sinkMu.Unlock()
			close(s.lines)
			return
		}
	}
}

// setRawSink installs or clears the channel that raw stdin bytes are
// forwarded to instead of being assembled into lines. Only one attach can
// hold it at a time; attach() enforces that via ptysession.Registry.Attach
// already refusing a second attacher.
func (s *Shell) setRawSink(ch chan<- []byte) {
	s.sinkMu.Lock()
	s.rawSink = ch
	s.sinkMu.Unlock()
}

func promptText() string {
	u, err := user.Current()
	username := "user"
	if err == nil {
		username = u.Username
	}
	host, _ := os.Hostname()
	cwd, _ := os.Getwd()
	return fmt.Sprintf("%s(sgpt)%s %s@%s:%s$ ", colorWhite, colorReset, username, host, cwd)
}

// Run drives the local prompt until the user types "exit" or stdin closes.
func (s *Shell) Run(ctx context.Context) {
	go s.stdinPump()

	for {
		s.drainNotices()
		fmt.Print(promptText())

		select {
		case t, ok := <-s.broker.Tickets():
			if !ok {
				return
			}
			s.handleTicket(t)

		case id, ok := <-s.sessions.AutoAttach():
			if !ok {
				return
			}
			fmt.Printf("\n[sgpt] auto-attaching to session %s\n", id)
			s.attach(id)

		case line, ok := <-s.lines:
			if !ok {
				fmt.Println("Exiting SGPT shell.")
				return
			}
			s.handleLine(ctx, line)
		}
	}
}

func (s *Shell) drainNotices() {
	for {
		select {
		case n := <-s.notices:
			fmt.Println(n)
		default:
			return
		}
	}
}

func (s *Shell) handleTicket(t *confirm.Ticket) {
	fmt.Printf("\n[sgpt] GPT wants to run:\n    %s\n", t.Cmd)
	fmt.Print("Confirm execution? [Y/n] ")

	answer, ok := <-s.lines
	if !ok {
		t.Resolve(confirm.Declined)
		return
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer == "y" || answer == "" {
		fmt.Println("[sgpt] Command confirmed.")
		t.Resolve(confirm.Approved)
	} else {
		fmt.Println("[sgpt] Command declined.")
		t.Resolve(confirm.Declined)
	}
}

func (s *Shell) handleLine(ctx context.Context, raw string) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return
	}

	switch strings.ToLower(line) {
	case "exit":
		fmt.Println("Exiting SGPT shell.")
		os.Exit(0)
	case "getsessions":
		s.printSessions()
		return
	}

	if line == "cd" || strings.HasPrefix(line, "cd ") {
		s.cd(line)
		return
	}

	if strings.HasPrefix(line, "attach ") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			fmt.Println("Usage: attach <session_id>")
			return
		}
		s.attach(fields[1])
		return
	}

	line = classify.ForceLSColor(line)
	s.recordHistory(line)

	if classify.IsInteractive(line) {
		s.runInPTY(line)
		return
	}

	stdout, stderr, _ := s.children.Run(ctx, line, "")
	if stdout != "" {
		fmt.Print(stdout)
	}
	if stderr != "" {
		fmt.Print(stderr)
	}
}

func (s *Shell) printSessions() {
	ids := s.sessions.IDs()
	if len(ids) == 0 {
		fmt.Println("[sgpt] No active sessions.")
		return
	}
	fmt.Println("[sgpt] Active interactive sessions:")
	for _, id := range ids {
		fmt.Printf("  - %s (pid=%d)\n", id, s.sessions.PID(id))
	}
}

func (s *Shell) cd(line string) {
	fields := strings.Fields(line)
	var target string
	if len(fields) == 1 {
		home, _ := os.UserHomeDir()
		target = home
	} else {
		target = expandHome(fields[1])
	}
	if err := os.Chdir(target); err != nil {
		fmt.Printf("cd: %v\n", err)
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return home + strings.TrimPrefix(path, "~")
		}
	}
	return path
}

func (s *Shell) recordHistory(cmd string) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	s.history = append(s.history, cmd)
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
}

// RecordHistory appends cmd to the shared recent-activity history; used by
// the HTTP handlers so a remote /run shows up alongside local commands.
func (s *Shell) RecordHistory(cmd string) {
	s.recordHistory(cmd)
}

// History returns a copy of the most recent commands run through either
// the local prompt or a remote /run, oldest first.
func (s *Shell) History() []string {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

// runInPTY starts an ad hoc interactive command directly in the
// foreground: there is no remote caller to hand a session id back to, so
// the shell attaches to it immediately and blocks until it detaches.
func (s *Shell) runInPTY(cmd string) {
	id, err := s.sessions.Start(cmd)
	if err != nil {
		fmt.Printf("[sgpt] failed to start %q: %v\n", cmd, err)
		return
	}
	s.attach(id)
}

// attach puts the terminal in raw mode and forwards bytes between stdin
// and the named PTY session until Ctrl-] is pressed or the session ends.
func (s *Shell) attach(id string) {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Printf("[sgpt] cannot set raw mode: %v\n", err)
		return
	}
	restore := func() { term.Restore(fd, oldState) }

	replay, detach, err := s.sessions.Attach(id, rawStdout{})
	if err != nil {
		restore()
		fmt.Printf("[sgpt] attach failed: %v\n", err)
		return
	}
	defer detach()

	fmt.Fprintf(os.Stdout, "\r\n[sgpt] attached to %s (detach: Ctrl-])\r\n", id)
	if len(replay) > 0 {
		os.Stdout.Write(replay)
	}

	rawIn := make(chan []byte, 16)
	s.setRawSink(rawIn)
	defer s.setRawSink(nil)

	for {
		chunk, ok := <-rawIn
		if !ok {
			break
		}
		if idx := bytes.IndexByte(chunk, 0x1D); idx >= 0 { // Ctrl-]
			if idx > 0 {
				s.forwardInput(id, chunk[:idx])
			}
			break
		}
		if _, ok, werr := s.forwardInput(id, chunk); !ok || werr != nil {
			break
		}
	}

	restore()
	fmt.Fprintf(os.Stdout, "\n[sgpt] detached from %s\n", id)
}

func (s *Shell) forwardInput(id string, p []byte) (int, bool, error) {
	ok, err := s.sessions.Input(id, p)
	return len(p), ok, err
}

// rawStdout adapts os.Stdout to the io.Writer the PTY registry writes
// live output to while this shell is attached.
type rawStdout struct{}

func (rawStdout) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}
