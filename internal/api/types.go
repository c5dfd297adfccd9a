// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package api

import (
	"github.com/ZSC714725/matchcut/internal/importer"
	"github.com/ZSC714725/matchcut/internal/media"
)

// ImportRequest for POST /import
type ImportRequest struct {
	GameDir string              `json:"game_dir" binding:"required"`
	Kind    importer.SourceKind `json:"kind" binding:"required"`
	Paths   []string            `json:"paths"`
	Links   []string            `json:"links"`
}

// CutRequest for POST /cut. Cuts are the parts to remove.
type CutRequest struct {
	GameDir string        `json:"game_dir" binding:"required"`
	Cuts    []media.Range `json:"cuts"`
}

// VideoResponse names the asset after an import or cut
type VideoResponse struct {
	VideoPath string `json:"video_path"`
}

// ClipsRequest for POST /clips
type ClipsRequest struct {
	VideoPath string        `json:"video_path" binding:"required"`
	Ranges    []media.Range `json:"ranges"`
	DestDir   string        `json:"dest_dir" binding:"required"`
}

// ExportGame is one game of an ExportRequest
type ExportGame struct {
	Name      string        `json:"name"`
	VideoPath string        `json:"video_path" binding:"required"`
	Ranges    []media.Range `json:"ranges"`
}

// ExportRequest for POST /export
type ExportRequest struct {
	DestDir string       `json:"dest_dir" binding:"required"`
	Games   []ExportGame `json:"games"`
}

// FilesResponse lists generated clips
type FilesResponse struct {
	Files []string `json:"files"`
}

// ErrorResponse for API errors. Kind is the failure kind, or "busy" and
// "bad_request" for request-level problems.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Kind    string `json:"kind"`
	Detail  string `json:"detail,omitempty"`
}
