// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package api

import (
	"github.com/ZSC714725/matchcut/internal/ffmpeg/skills"
)

// SkillsResponse for API
type SkillsResponse struct {
	FFmpeg struct {
		Version       string          `json:"version"`
		Compiler      string          `json:"compiler"`
		Configuration string          `json:"configuration"`
		Libraries     []SkillsLibrary `json:"libraries"`
	} `json:"ffmpeg"`

	Formats struct {
		Demuxers []SkillsFormat `json:"demuxers"`
		Muxers   []SkillsFormat `json:"muxers"`
	} `json:"formats"`

	// Ready is false when a format the pipeline needs is missing; Problem
	// then names it
	Ready   bool   `json:"ready"`
	Problem string `json:"problem,omitempty"`
}

type SkillsLibrary struct {
	Name     string `json:"name"`
	Compiled string `json:"compiled"`
	Linked   string `json:"linked"`
}

type SkillsFormat struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func skillsToAPI(s skills.Skills) SkillsResponse {
	resp := SkillsResponse{}

	resp.FFmpeg.Version = s.FFmpeg.Version
	resp.FFmpeg.Compiler = s.FFmpeg.Compiler
	resp.FFmpeg.Configuration = s.FFmpeg.Configuration
	resp.FFmpeg.Libraries = make([]SkillsLibrary, len(s.FFmpeg.Libraries))
	for i, lib := range s.FFmpeg.Libraries {
		resp.FFmpeg.Libraries[i] = SkillsLibrary{lib.Name, lib.Compiled, lib.Linked}
	}

	resp.Formats.Demuxers = formatsToAPI(s.Formats.Demuxers)
	resp.Formats.Muxers = formatsToAPI(s.Formats.Muxers)

	resp.Ready = true
	if err := s.Check(); err != nil {
		resp.Ready = false
		resp.Problem = err.Error()
	}

	return resp
}

func formatsToAPI(formats []skills.Format) []SkillsFormat {
	out := make([]SkillsFormat, len(formats))
	for i, f := range formats {
		out[i] = SkillsFormat{ID: f.Id, Name: f.Name}
	}
	return out
}
