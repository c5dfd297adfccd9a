// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package clip

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/ZSC714725/matchcut/internal/media"
	"github.com/ZSC714725/matchcut/internal/progress"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Batch is the clip list of one game
type Batch struct {
	Name   string        `json:"name"`
	Asset  media.Asset   `json:"asset"`
	Ranges []media.Range `json:"ranges"`
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9 ._-]+`)

// FolderName turns a game name into a portable directory name
func FolderName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = unsafeName.ReplaceAllString(folded, "_")
	folded = strings.Trim(folded, " ._")
	if folded == "" {
		return "game"
	}
	return folded
}

// ExportAll generates the clips of every batch into its own folder under
// destDir, one batch after the other. All ranges are checked before any
// clip is cut.
func (s *Service) ExportAll(ctx context.Context, batches []Batch, destDir string, sink Sink) ([]string, error) {
	if len(batches) == 0 {
		return nil, media.NoVideoSource("nothing to export")
	}
	for _, b := range batches {
		if err := media.ValidateRanges(b.Ranges); err != nil {
			var e *media.Error
			if errors.As(err, &e) {
				return nil, media.InvalidRange("%s: %s", b.Name, e.Body)
			}
			return nil, err
		}
	}

	ctx, end := s.registry.Begin(ctx)
	defer end()

	seen := map[string]int{}
	var files []string
	for _, b := range batches {
		folder := FolderName(b.Name)
		if seen[folder]++; seen[folder] > 1 {
			folder = fmt.Sprintf("%s (%d)", folder, seen[folder])
		}

		var batchSink Sink
		if sink != nil {
			batchSink = func(target string, smp progress.Sample) {
				sink(folder+"/"+target, smp)
			}
		}

		out, err := s.generate(ctx, b.Asset, b.Ranges, filepath.Join(destDir, folder), batchSink)
		if err != nil {
			return files, err
		}
		files = append(files, out...)
	}
	return files, nil
}
