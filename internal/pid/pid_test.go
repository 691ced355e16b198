package pid_test

import (
	"os"
	"strconv"
	"testing"

	"codeberg.org/mutker/chargectl/internal/errors"
	"codeberg.org/mutker/chargectl/internal/pid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndRemove(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, pid.Write(dir))
	b, err := os.ReadFile(pid.Path(dir))
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(b))

	require.NoError(t, pid.Remove(dir))
	_, err = os.Stat(pid.Path(dir))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, pid.Remove(dir))
}

func TestWriteReplacesStaleFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(pid.Path(dir), []byte("not-a-pid"), 0o600))

	require.NoError(t, pid.Write(dir))
}

func TestWriteRefusesLiveProcess(t *testing.T) {
	dir := t.TempDir()
	// The parent of the test binary is alive for the duration of the test.
	require.NoError(t, os.WriteFile(pid.Path(dir), []byte(strconv.Itoa(os.Getppid())), 0o600))

	err := pid.Write(dir)
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))
}
