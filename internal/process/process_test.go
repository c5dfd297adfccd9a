package process

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingParser struct {
	mu       sync.Mutex
	lines    []string
	progress bool
}

func (p *recordingParser) Parse(line string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, line)
	return p.progress
}

func (p *recordingParser) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "fake.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestProcess_Success(t *testing.T) {
	bin := writeScript(t, `echo "frame=1 time=00:00:01.00" >&2
printf 'frame=2 time=00:00:02.00\r' >&2
echo "done" >&2`)
	parser := &recordingParser{progress: true}

	var exitState string
	exited := make(chan struct{})
	p, err := New(Config{
		Binary: bin,
		Parser: parser,
		OnExit: func(state string) {
			exitState = state
			close(exited)
		},
	})
	require.NoError(t, err)

	require.NoError(t, p.Start())
	require.NoError(t, p.Wait())
	<-exited

	assert.Equal(t, "finished", exitState)
	assert.Equal(t, []string{"frame=1 time=00:00:01.00", "frame=2 time=00:00:02.00", "done"}, parser.Lines())
	assert.False(t, p.IsRunning())
	assert.NotZero(t, p.PID())
}

func TestProcess_ExitCode(t *testing.T) {
	bin := writeScript(t, `echo "Invalid data found when processing input" >&2
exit 3`)
	p, err := New(Config{Binary: bin})
	require.NoError(t, err)

	require.NoError(t, p.Start())
	err = p.Wait()
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, "failed", p.Status().State)
}

func TestProcess_Kill(t *testing.T) {
	bin := writeScript(t, `exec /bin/sleep 30`)
	p, err := New(Config{Binary: bin})
	require.NoError(t, err)

	require.NoError(t, p.Start())
	assert.True(t, p.IsRunning())
	require.NoError(t, p.Kill())

	assert.ErrorIs(t, p.Wait(), ErrKilled)
	assert.Equal(t, "killed", p.Status().State)
	assert.False(t, p.IsRunning())
}

func TestProcess_KillBeforeStart(t *testing.T) {
	bin := writeScript(t, `exec /bin/sleep 30`)
	p, err := New(Config{Binary: bin})
	require.NoError(t, err)

	require.NoError(t, p.Kill())
	require.NoError(t, p.Start())

	done := make(chan error, 1)
	go func() { done <- p.Wait() }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrKilled)
	case <-time.After(5 * time.Second):
		t.Fatal("process survived an early kill")
	}
}

func TestProcess_Stale(t *testing.T) {
	bin := writeScript(t, `echo "no progress here" >&2
exec /bin/sleep 30`)
	p, err := New(Config{
		Binary:       bin,
		Parser:       &recordingParser{},
		StaleTimeout: time.Second,
	})
	require.NoError(t, err)

	require.NoError(t, p.Start())
	assert.ErrorIs(t, p.Wait(), ErrStalled)
}

func TestProcess_WaitBeforeStart(t *testing.T) {
	p, err := New(Config{Binary: "ffmpeg"})
	require.NoError(t, err)
	assert.ErrorIs(t, p.Wait(), ErrNotStarted)

	_, err = New(Config{})
	assert.Error(t, err)
}

func TestProcess_StartTwice(t *testing.T) {
	bin := writeScript(t, `exit 0`)
	p, err := New(Config{Binary: bin})
	require.NoError(t, err)
	require.NoError(t, p.Start())
	assert.Error(t, p.Start())
	require.NoError(t, p.Wait())
}

func TestScanLine(t *testing.T) {
	scanner := bufio.NewScanner(strings.NewReader("a\r\rb\nc\r\nd"))
	scanner.Split(scanLine)

	var got []string
	for scanner.Scan() {
		got = append(got, scanner.Text())
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestExists(t *testing.T) {
	assert.True(t, Exists(int32(os.Getpid())))
	assert.False(t, Exists(0))
}
