// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package main

func main() {
	Execute()
}
