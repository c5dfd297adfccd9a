// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package main

import (
	"context"
	"fmt"

	"github.com/ZSC714725/matchcut/internal/app"

	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe <video>",
	Short: "Print the duration of a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			d, err := a.Executor.Probe(ctx, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(map[string]any{"path": args[0], "duration_seconds": d})
				return nil
			}
			fmt.Printf("%s\t%s\n", formatClock(d), args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
