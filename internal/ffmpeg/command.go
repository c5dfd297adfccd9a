// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package ffmpeg

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lithammer/shortuuid/v4"
)

// TrimArgs builds a stream-copy trim of [start, start+duration) from src
func TrimArgs(src string, start, duration float64, out string) []string {
	return []string{
		"-hide_banner", "-nostdin", "-y",
		"-ss", formatSeconds(start),
		"-i", src,
		"-t", formatSeconds(duration),
		"-map", "0",
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		out,
	}
}

// ConcatArgs builds a stream-copy concatenation of the files named in list
func ConcatArgs(list, out string) []string {
	return []string{
		"-hide_banner", "-nostdin", "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", list,
		"-map", "0",
		"-c", "copy",
		out,
	}
}

// WriteConcatList writes a concat demuxer list for paths into dir and
// returns its path. The caller removes it.
func WriteConcatList(dir string, paths []string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "file %s\n", quoteConcatPath(abs))
	}

	name := filepath.Join(dir, "concat-"+shortuuid.New()+".txt")
	if err := os.WriteFile(name, []byte(b.String()), 0o644); err != nil {
		return "", err
	}
	return name, nil
}

// quoteConcatPath single-quotes p; embedded quotes become '\''
func quoteConcatPath(p string) string {
	return "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
