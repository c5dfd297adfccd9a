// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ZSC714725/matchcut/internal/media"
	"github.com/ZSC714725/matchcut/internal/progress"
)

// parseRanges parses "start-end" args. Bounds are seconds or HH:MM:SS.
func parseRanges(args []string) ([]media.Range, error) {
	ranges := make([]media.Range, 0, len(args))
	for _, arg := range args {
		start, end, ok := strings.Cut(arg, "-")
		if !ok {
			return nil, media.InvalidRange("%q is not start-end", arg)
		}
		s, err := parseBound(start)
		if err != nil {
			return nil, media.InvalidRange("%q: %v", arg, err)
		}
		e, err := parseBound(end)
		if err != nil {
			return nil, media.InvalidRange("%q: %v", arg, err)
		}
		ranges = append(ranges, media.Range{Start: s, End: e})
	}
	return ranges, media.ValidateRanges(ranges)
}

func parseBound(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty bound")
	}
	if strings.Contains(s, ":") {
		return progress.ParseTimemark(s), nil
	}
	return strconv.ParseFloat(s, 64)
}

func formatClock(seconds float64) string {
	total := int(seconds)
	frac := seconds - float64(total)
	return fmt.Sprintf("%02d:%02d:%02d.%02d", total/3600, total/60%60, total%60, int(frac*100))
}
