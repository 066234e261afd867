// Package classify holds the small set of command-string heuristics shared
// by the HTTP request handlers and the local shell loop: deciding
// whether a command needs a real terminal, and normalizing a couple of
// commands the remote agent habitually gets wrong.
package classify

import (
	"strings"

	shellwords "github.com/mattn/go-shellwords"
)

// IsInteractive reports whether cmd should be refused by /run and /start and
// redirected to an interactive PTY session instead.
//
// bash/sh invoked without -c always want a terminal. sed is never
// interactive, even when -i is present (it merely edits a file in place).
// Otherwise, any command carrying a standalone -it, -i, or -t token is
// treated as wanting a terminal (docker exec -it, ssh -t, and similar).
func IsInteractive(cmd string) bool {
	tokens, err := shellwords.Parse(cmd)
	if err != nil || len(tokens) == 0 {
		return false
	}

	switch tokens[0] {
	case "bash", "sh":
		return !containsToken(tokens, "-c")
	case "sed":
		return false
	}

	for _, t := range tokens[1:] {
		switch t {
		case "-it", "-i", "-t":
			return true
		}
	}
	return false
}

func containsToken(tokens []string, want string) bool {
	for _, t := range tokens {
		if t == want {
			return true
		}
	}
	return false
}

// ForceLSColor inserts --color=always as the second token of an ls
// invocation when the command doesn't already mention --color. Idempotent.
func ForceLSColor(cmd string) string {
	fields := strings.Fields(cmd)
	if len(fields) == 0 || fields[0] != "ls" {
		return cmd
	}
	if strings.Contains(cmd, "--color") {
		return cmd
	}
	out := append([]string{fields[0], "--color=always"}, fields[1:]...)
	return strings.Join(out, " ")
}

// NormalizeSedInPlace collapses every "-i " occurrence to "-i" in a "sed "
// command, fixing up the trailing space a remote agent habitually leaves
// after the in-place flag.
func NormalizeSedInPlace(cmd string) string {
	if !strings.HasPrefix(cmd, "sed ") {
		return cmd
	}
	return strings.ReplaceAll(cmd, "-i ", "-i")
}

// Normalize applies every command-string fixup that should run before a
// remote-submitted command is inspected or executed.
func Normalize(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	cmd = NormalizeSedInPlace(cmd)
	cmd = ForceLSColor(cmd)
	return cmd
}
