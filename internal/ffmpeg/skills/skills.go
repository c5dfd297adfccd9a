// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package skills

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Format represents a supported container format
type Format struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

// Library represents a linked av library
type Library struct {
	Name     string `json:"name"`
	Compiled string `json:"compiled"`
	Linked   string `json:"linked"`
}

// Info is what `ffmpeg -version` reports
type Info struct {
	Version       string    `json:"version"`
	Compiler      string    `json:"compiler"`
	Configuration string    `json:"configuration"`
	Libraries     []Library `json:"libraries"`
}

// Skills are the detected capabilities of FFmpeg that the pipeline relies on
type Skills struct {
	FFmpeg  Info `json:"ffmpeg"`
	Formats struct {
		Demuxers []Format `json:"demuxers"`
		Muxers   []Format `json:"muxers"`
	} `json:"formats"`
}

// required formats: concat list input, mp4 output for normalised imports
var (
	requiredDemuxers = []string{"concat", "mov"}
	requiredMuxers   = []string{"mp4"}
)

// New returns the skills of the FFmpeg binary
func New(binary string) (Skills, error) {
	c := Skills{}

	ff, err := getVersion(binary)
	if ff.Version == "" || err != nil {
		if err != nil {
			return Skills{}, fmt.Errorf("can't parse ffmpeg version: %w", err)
		}
		return Skills{}, fmt.Errorf("can't parse ffmpeg version")
	}
	c.FFmpeg = ff

	demuxers, muxers := getFormats(binary)
	c.Formats.Demuxers = demuxers
	c.Formats.Muxers = muxers

	return c, nil
}

// Check reports the first missing format the pipeline needs
func (s Skills) Check() error {
	for _, id := range requiredDemuxers {
		if !hasFormat(s.Formats.Demuxers, id) {
			return fmt.Errorf("ffmpeg %s lacks the %s demuxer", s.FFmpeg.Version, id)
		}
	}
	for _, id := range requiredMuxers {
		if !hasFormat(s.Formats.Muxers, id) {
			return fmt.Errorf("ffmpeg %s lacks the %s muxer", s.FFmpeg.Version, id)
		}
	}
	return nil
}

func hasFormat(formats []Format, id string) bool {
	for _, f := range formats {
		if f.Id == id {
			return true
		}
	}
	return false
}

func getVersion(binary string) (Info, error) {
	cmd := exec.Command(binary, "-version")
	cmd.Env = []string{}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return Info{}, err
	}
	return parseVersion(out), nil
}

func parseVersion(data []byte) Info {
	f := Info{}
	reVersion := regexp.MustCompile(`^ffmpeg version n?([0-9]+\.[0-9]+(\.[0-9]+)?)`)
	reCompiler := regexp.MustCompile(`(?m)^\s*built with (.*)$`)
	reConfiguration := regexp.MustCompile(`(?m)^\s*configuration: (.*)$`)
	reLibrary := regexp.MustCompile(`(?m)^\s*(lib(?:[a-z]+))\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+) /\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+)`)

	if m := reVersion.FindSubmatch(data); m != nil {
		f.Version = string(m[1])
		if len(m[2]) == 0 {
			f.Version += ".0"
		}
	}
	if m := reCompiler.FindSubmatch(data); m != nil {
		f.Compiler = string(m[1])
	}
	if m := reConfiguration.FindSubmatch(data); m != nil {
		f.Configuration = string(m[1])
	}
	for _, m := range reLibrary.FindAllSubmatch(data, -1) {
		f.Libraries = append(f.Libraries, Library{
			Name:     string(m[1]),
			Compiled: string(m[2]),
			Linked:   string(m[3]),
		})
	}
	return f
}

func getFormats(binary string) (demuxers, muxers []Format) {
	cmd := exec.Command(binary, "-hide_banner", "-formats")
	cmd.Env = []string{}
	stdout, _ := cmd.Output()
	return parseFormats(stdout)
}

// parseFormats reads `ffmpeg -formats`. Lines look like " DE mov,mp4,m4a  QuickTime / MOV";
// newer builds add a third flag column (d for device).
func parseFormats(data []byte) (demuxers, muxers []Format) {
	re := regexp.MustCompile(`^\s([D ])([E ])[d ]? ([0-9A-Za-z_,]+)\s+(.*?)$`)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		m := re.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		for _, id := range strings.Split(m[3], ",") {
			format := Format{Id: id, Name: m[4]}
			if m[1] == "D" {
				demuxers = append(demuxers, format)
			}
			if m[2] == "E" {
				muxers = append(muxers, format)
			}
		}
	}
	return demuxers, muxers
}
