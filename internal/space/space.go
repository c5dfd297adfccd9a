// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package space

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZSC714725/matchcut/internal/media"

	"github.com/shirou/gopsutil/v3/disk"
)

// Checker verifies a destination has room for an import
type Checker interface {
	// Ensure returns an InsufficientSpace error when the volume holding
	// dir has less than required bytes free
	Ensure(dir string, required uint64) error
}

type diskChecker struct {
	usage func(path string) (uint64, error)
}

// New creates a Checker backed by the filesystem statistics of the host
func New() Checker {
	return &diskChecker{usage: free}
}

func free(path string) (uint64, error) {
	u, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return u.Free, nil
}

func (c *diskChecker) Ensure(dir string, required uint64) error {
	path, err := existingParent(dir)
	if err != nil {
		return media.Wrap(media.KindUnexpected, err, "checking free space")
	}

	available, err := c.usage(path)
	if err != nil {
		return media.Wrap(media.KindUnexpected, err, "checking free space of "+path)
	}

	if available < required {
		return media.InsufficientSpace("%s needed on %s, %s available", humanBytes(required), path, humanBytes(available))
	}
	return nil
}

// existingParent walks up from dir to the first directory that exists, so
// destinations that are created later can be checked too
func existingParent(dir string) (string, error) {
	path, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		_, err := os.Stat(path)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(path)
		if parent == path {
			return "", err
		}
		path = parent
	}
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
