// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package progress

import (
	"strconv"
	"strings"
)

// ParseTimemark converts an ffmpeg HH:MM:SS.frac time mark into seconds.
// Malformed fields count as zero; progress parsing never fails.
func ParseTimemark(mark string) float64 {
	parts := strings.Split(strings.TrimSpace(mark), ":")
	if len(parts) != 3 {
		return 0
	}

	h := atoi(parts[0])
	m := atoi(parts[1])

	sec, frac, _ := strings.Cut(parts[2], ".")
	s := atoi(sec)

	return float64(h*3600+m*60+s) + fraction(frac)
}

// fraction parses the digits after the dot, of any length
func fraction(digits string) float64 {
	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return 0
	}
	f, err := strconv.ParseFloat("0."+digits, 64)
	if err != nil {
		return 0
	}
	return f
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
