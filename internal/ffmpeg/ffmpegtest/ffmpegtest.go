// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具
//
// Package ffmpegtest provides shell-script stand-ins for ffmpeg and
// ffprobe.
//
// The fake ffmpeg understands the trim and concat commands this module
// builds. A trim writes one line "trim <src> <start> <duration>" to the
// output; a concat writes the contents of every listed file in order.
// Inputs whose path contains "fail" exit with status 1, inputs whose path
// contains "hang" print one progress line and then block until killed.
//
// The fake ffprobe prints the configured duration, or fails for paths
// containing "broken".
package ffmpegtest

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/ZSC714725/matchcut/internal/ffmpeg"

	"github.com/stretchr/testify/require"
)

const ffmpegScript = `#!/bin/sh
echo "$@" >> '{{calls}}'
prev=""; in=""; out=""; ss=""; t=""; concat=0
for a in "$@"; do
  case "$prev" in
    -i) in="$a" ;;
    -ss) ss="$a" ;;
    -t) t="$a" ;;
  esac
  if [ "$a" = "concat" ]; then concat=1; fi
  prev="$a"; out="$a"
done
case "$in" in
  *fail*) echo "Invalid data found when processing input" >&2; exit 1 ;;
  *hang*) echo "frame=    1 fps=0.0 q=-1.0 size=       0kB time=00:00:01.00 bitrate=N/A speed=1x" >&2; exec /bin/sleep 30 ;;
esac
echo "frame=    1 fps=0.0 q=-1.0 size=       1kB time=00:00:01.00 bitrate=N/A speed=1x" >&2
echo "frame=    2 fps=0.0 q=-1.0 size=       2kB time=00:00:02.00 bitrate=N/A speed=1x" >&2
if [ "$concat" = 1 ]; then
  : > "$out"
  while IFS= read -r line || [ -n "$line" ]; do
    case "$line" in
      file*)
        p=${line#file \'}; p=${p%\'}
        while IFS= read -r l || [ -n "$l" ]; do echo "$l"; done < "$p" >> "$out"
        ;;
    esac
  done < "$in"
else
  echo "trim $in $ss $t" > "$out"
fi
`

const ffprobeScript = `#!/bin/sh
case "$7" in
  *broken*) echo "moov atom not found" >&2; exit 1 ;;
esac
echo "{{duration}}"
`

// Fake is an ffmpeg.FFmpeg backed by the fake scripts
type Fake struct {
	ffmpeg.FFmpeg
	// Binary and ProbeBinary are the script paths
	Binary      string
	ProbeBinary string
	calls       string
}

// New creates a Fake whose ffprobe reports duration seconds for every
// input. The test is skipped on windows.
func New(t testing.TB, duration float64) *Fake {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}

	dir := t.TempDir()
	calls := filepath.Join(dir, "calls.log")

	ff := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(ff, []byte(strings.ReplaceAll(ffmpegScript, "{{calls}}", calls)), 0o755))

	probe := filepath.Join(dir, "ffprobe")
	d := strconv.FormatFloat(duration, 'f', 6, 64)
	require.NoError(t, os.WriteFile(probe, []byte(strings.ReplaceAll(ffprobeScript, "{{duration}}", d)), 0o755))

	v, err := ffmpeg.NewValidator(nil, ffmpeg.DefaultBlock)
	require.NoError(t, err)

	f, err := ffmpeg.New(ffmpeg.Config{
		Binary:          ff,
		ProbeBinary:     probe,
		ValidatorInput:  v,
		ValidatorOutput: v,
	})
	require.NoError(t, err)

	return &Fake{FFmpeg: f, Binary: ff, ProbeBinary: probe, calls: calls}
}

// Calls returns the argument lines of every ffmpeg invocation so far
func (f *Fake) Calls() []string {
	data, err := os.ReadFile(f.calls)
	if err != nil {
		return nil
	}
	var calls []string
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line != "" {
			calls = append(calls, line)
		}
	}
	return calls
}
