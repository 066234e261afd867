package ptysession

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForOutput(t *testing.T, r *Registry, id string, contains string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var got string
	for time.Now().Before(deadline) {
		out, ok := r.Output(id)
		require.True(t, ok)
		got += out
		if bytes.Contains([]byte(got), []byte(contains)) {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q in output, got %q", contains, got)
	return ""
}

func TestStartDefaultsToBash(t *testing.T) {
	r := NewRegistry(false)
	id, err := r.Start("")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	r.Kill(id)
}

func TestStartAndInputRoundTrip(t *testing.T) {
	r := NewRegistry(false)
	id, err := r.Start("cat")
	require.NoError(t, err)
	defer r.Kill(id)

	_, err = r.Input(id, []byte("hello-pty\n"))
	require.NoError(t, err)

	waitForOutput(t, r, id, "hello-pty")
}

func TestOutputDrainsBuffer(t *testing.T) {
	r := NewRegistry(false)
	id, err := r.Start("cat")
	require.NoError(t, err)
	defer r.Kill(id)

	_, _ = r.Input(id, []byte("drain-me\n"))
	waitForOutput(t, r, id, "drain-me")

	out, ok := r.Output(id)
	require.True(t, ok)
	assert.NotContains(t, out, "drain-me")
}

func TestOutputUnknownSession(t *testing.T) {
	r := NewRegistry(false)
	_, ok := r.Output("nope")
	assert.False(t, ok)
}

func TestAttachReplaysBufferedOutput(t *testing.T) {
	r := NewRegistry(false)
	id, err := r.Start("cat")
	require.NoError(t, err)
	defer r.Kill(id)

	_, _ = r.Input(id, []byte("before-attach\n"))
	waitForOutput(t, r, id, "before-attach")

	var mu sync.Mutex
	var sink bytes.Buffer
	w := writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return sink.Write(p)
	})

	replay, detach, err := r.Attach(id, w)
	require.NoError(t, err)
	defer detach()

	assert.Contains(t, string(replay), "before-attach")
}

func TestAttachRejectsSecondAttacher(t *testing.T) {
	r := NewRegistry(false)
	id, err := r.Start("cat")
	require.NoError(t, err)
	defer r.Kill(id)

	_, detach, err := r.Attach(id, writerFunc(func(p []byte) (int, error) { return len(p), nil }))
	require.NoError(t, err)
	defer detach()

	_, _, err = r.Attach(id, writerFunc(func(p []byte) (int, error) { return len(p), nil }))
	assert.Error(t, err)
}

func TestKillRemovesSession(t *testing.T) {
	r := NewRegistry(false)
	id, err := r.Start("cat")
	require.NoError(t, err)

	assert.True(t, r.Kill(id))
	_, ok := r.Output(id)
	assert.False(t, ok)
}

func TestAutoAttachQueuesNewSessions(t *testing.T) {
	r := NewRegistry(true)
	id, err := r.Start("true")
	require.NoError(t, err)
	defer r.Kill(id)

	select {
	case got := <-r.AutoAttach():
		assert.Equal(t, id, got)
	case <-time.After(time.Second):
		t.Fatal("auto-attach id never arrived")
	}
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
