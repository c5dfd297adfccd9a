// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package media

import (
	"path/filepath"
	"strings"
)

// Asset is a stored video file. Identity is the path.
type Asset struct {
	Path string `json:"path"`
	Ext  string `json:"ext"`
}

// NewAsset creates an Asset for path, deriving the extension
func NewAsset(path string) Asset {
	return Asset{Path: path, Ext: Ext(path)}
}

// Ext returns the lower-cased extension of path, including the dot
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// SameExt reports whether all paths share one extension. It returns the
// first mismatching path when they don't.
func SameExt(paths []string) (string, bool) {
	if len(paths) == 0 {
		return "", true
	}
	want := Ext(paths[0])
	for _, p := range paths[1:] {
		if Ext(p) != want {
			return p, false
		}
	}
	return "", true
}
