// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/ZSC714725/matchcut/internal/app"
	"github.com/ZSC714725/matchcut/internal/media"
	"github.com/ZSC714725/matchcut/internal/progress"

	"github.com/spf13/cobra"
)

var clipsCmd = &cobra.Command{
	Use:   "clips <video>",
	Short: "Cut highlight clips out of a video",
	Long: `Cut one clip per range out of a video. Clips are written to --dest as
clip-001, clip-002, ... in the order the ranges are given.

Examples:
  matchcut clips ./games/ajax/video.mp4 --dest ./highlights --range 754-770 --range 01:02:10-01:02:31`,
	Args: cobra.ExactArgs(1),
	RunE: runClipsCmd,
}

func init() {
	rootCmd.AddCommand(clipsCmd)
	clipsCmd.Flags().StringArray("range", nil, "Range as start-end, in seconds or HH:MM:SS (repeatable)")
	clipsCmd.Flags().String("dest", ".", "Destination folder")
	_ = clipsCmd.MarkFlagRequired("range")
}

func runClipsCmd(cmd *cobra.Command, args []string) error {
	rangeFlags, _ := cmd.Flags().GetStringArray("range")
	dest, _ := cmd.Flags().GetString("dest")

	ranges, err := parseRanges(rangeFlags)
	if err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		// one line for all clips, showing the slowest
		var mu sync.Mutex
		latest := map[string]progress.Sample{}
		show := progressPrinter(os.Stderr)
		sink := func(target string, s progress.Sample) {
			mu.Lock()
			defer mu.Unlock()
			latest[target] = s
			if len(latest) < len(ranges) {
				return
			}
			samples := make([]progress.Sample, 0, len(latest))
			for _, smp := range latest {
				samples = append(samples, smp)
			}
			if slowest, ok := progress.Slowest(samples); ok {
				slowest.Label = "clips"
				show(slowest)
			}
		}

		files, err := a.Clips.GenerateClips(ctx, media.NewAsset(args[0]), ranges, dest, sink)
		if err != nil {
			return err
		}

		if jsonOutput {
			printJSON(files)
			return nil
		}
		for _, f := range files {
			fmt.Println(f)
		}
		return nil
	})
}
