// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package process

// Parser consumes the child's stderr line by line. Parse reports whether
// the line carried progress; only progress lines feed the stale watchdog.
type Parser interface {
	Parse(line string) bool
}

// ParserFunc adapts a plain function to Parser
type ParserFunc func(line string) bool

func (f ParserFunc) Parse(line string) bool { return f(line) }
