//go:build integration

// Integration test for the sgptd binary: builds it, starts it against a
// loopback port with confirmation disabled, and drives its HTTP surface
// end to end.
//
// Run with:
//
//	go test -tags=integration -v ./cmd/sgptd/

package main_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func buildBinary(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	bin := filepath.Join(dir, "sgptd")

	abs, err := filepath.Abs("../..")
	require.NoError(t, err)

	cmd := exec.Command("go", "build", "-o", bin, "./cmd/sgptd")
	cmd.Dir = abs
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	require.NoError(t, cmd.Run())
	return bin
}

func waitForServer(t *testing.T, base string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(base + "/openapi.json")
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("sgptd did not become ready within 5s")
}

func TestRunEndToEnd(t *testing.T) {
	bin := buildBinary(t)

	// The local shell loop exits the whole process on stdin EOF, so give it
	// a pipe that stays open for the duration of the test instead of
	// /dev/null.
	stdinR, stdinW, err := os.Pipe()
	require.NoError(t, err)
	defer stdinW.Close()

	addr := "127.0.0.1:18111"
	cmd := exec.Command(bin, "--no-confirm", "--listen", addr)
	cmd.Stdin = stdinR
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	require.NoError(t, cmd.Start())
	defer cmd.Process.Kill()

	base := "http://" + addr + "/gpt-shell"
	waitForServer(t, base)

	payload, _ := json.Marshal(map[string]string{"command": "echo hello-from-sgptd"})
	resp, err := http.Post(base+"/run", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Contains(t, out["stdout"], "hello-from-sgptd")
}
