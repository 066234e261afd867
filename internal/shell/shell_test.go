package shell

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ianremillard/sgptd/internal/child"
	"github.com/ianremillard/sgptd/internal/confirm"
	"github.com/ianremillard/sgptd/internal/ptysession"
)

func newTestShell() *Shell {
	return New(child.NewManager("/bin/sh"), ptysession.NewRegistry(false), confirm.NewBroker())
}

func TestFormatRemoteNoticeWrapsInColor(t *testing.T) {
	out := FormatRemoteNotice("ls -la")
	assert.Contains(t, out, "ls -la")
	assert.Contains(t, out, colorRemote)
	assert.Contains(t, out, colorReset)
}

func TestRecordHistoryCapsAtMax(t *testing.T) {
	s := newTestShell()
	for i := 0; i < maxHistory+10; i++ {
		s.RecordHistory("cmd")
	}
	assert.Len(t, s.History(), maxHistory)
}

func TestHistoryReturnsACopy(t *testing.T) {
	s := newTestShell()
	s.RecordHistory("echo one")
	h := s.History()
	h[0] = "mutated"
	assert.Equal(t, "echo one", s.History()[0])
}

func TestExpandHomeExpandsTilde(t *testing.T) {
	home := mustHome(t)
	assert.Equal(t, home, expandHome("~"))
	assert.Equal(t, home+"/projects", expandHome("~/projects"))
}

func TestExpandHomeLeavesAbsolutePaths(t *testing.T) {
	assert.Equal(t, "/tmp/x", expandHome("/tmp/x"))
}

func mustHome(t *testing.T) string {
	t.Helper()
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	return home
}
