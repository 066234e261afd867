package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsInteractiveBashWithoutDashC(t *testing.T) {
	assert.True(t, IsInteractive("bash"))
	assert.True(t, IsInteractive("sh"))
	assert.False(t, IsInteractive("bash -c 'echo hi'"))
}

func TestIsInteractiveSedNeverInteractive(t *testing.T) {
	assert.False(t, IsInteractive("sed -i 's/a/b/' file.txt"))
	assert.False(t, IsInteractive("sed -i file.txt"))
}

func TestIsInteractiveStandaloneFlags(t *testing.T) {
	assert.True(t, IsInteractive("docker exec -it mycontainer bash"))
	assert.True(t, IsInteractive("ssh -t host"))
	assert.False(t, IsInteractive("ls -la"))
}

func TestIsInteractiveEmptyCommand(t *testing.T) {
	assert.False(t, IsInteractive(""))
	assert.False(t, IsInteractive("   "))
}

func TestForceLSColorInsertsFlag(t *testing.T) {
	assert.Equal(t, "ls --color=always -la", ForceLSColor("ls -la"))
}

func TestForceLSColorIdempotent(t *testing.T) {
	once := ForceLSColor("ls -la")
	twice := ForceLSColor(once)
	assert.Equal(t, once, twice)
}

func TestForceLSColorLeavesOtherCommandsAlone(t *testing.T) {
	assert.Equal(t, "echo ls", ForceLSColor("echo ls"))
}

func TestForceLSColorRespectsExistingColorFlag(t *testing.T) {
	assert.Equal(t, "ls --color=auto", ForceLSColor("ls --color=auto"))
}

func TestNormalizeSedInPlaceCollapsesTrailingSpace(t *testing.T) {
	assert.Equal(t, "sed -is/a/b/", NormalizeSedInPlace("sed -i s/a/b/"))
}

func TestNormalizeSedInPlaceIgnoresOtherCommands(t *testing.T) {
	assert.Equal(t, "echo sed -i x", NormalizeSedInPlace("echo sed -i x"))
}
