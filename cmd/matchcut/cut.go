// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ZSC714725/matchcut/internal/app"
	"github.com/ZSC714725/matchcut/internal/game"
	"github.com/ZSC714725/matchcut/internal/media"

	"github.com/spf13/cobra"
)

var cutCmd = &cobra.Command{
	Use:   "cut <game-dir>",
	Short: "Remove parts of a game's video",
	Long: `Remove parts of a game's video. The rest is joined into a new file
which replaces the old one in game.json.

With --keep the given ranges are kept instead of removed.

Examples:
  matchcut cut ./games/ajax --range 0-95 --range 2900-3300
  matchcut cut ./games/ajax --keep --range 00:01:35-00:48:20`,
	Args: cobra.ExactArgs(1),
	RunE: runCutCmd,
}

func init() {
	rootCmd.AddCommand(cutCmd)
	cutCmd.Flags().StringArray("range", nil, "Range as start-end, in seconds or HH:MM:SS (repeatable)")
	cutCmd.Flags().Bool("keep", false, "Keep the ranges instead of removing them")
	_ = cutCmd.MarkFlagRequired("range")
}

func runCutCmd(cmd *cobra.Command, args []string) error {
	rangeFlags, _ := cmd.Flags().GetStringArray("range")
	keep, _ := cmd.Flags().GetBool("keep")

	ranges, err := parseRanges(rangeFlags)
	if err != nil {
		return err
	}
	gameDir := args[0]

	path, err := game.VideoPath(gameDir)
	if errors.Is(err, game.ErrNoVideo) || errors.Is(err, os.ErrNotExist) {
		return media.NoVideoSource("%s has no video, import one first", gameDir)
	}
	if err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		asset := media.NewAsset(path)
		sink := progressPrinter(os.Stderr)
		commit := func(replacement media.Asset) error {
			return game.SetVideoPath(gameDir, replacement.Path)
		}

		var out media.Asset
		if keep {
			out, err = a.Clips.KeepAndReplace(ctx, asset, ranges, sink, commit)
		} else {
			out, err = a.Clips.CutAndReplace(ctx, asset, ranges, sink, commit)
		}
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(out)
			return nil
		}
		fmt.Println(out.Path)
		return nil
	})
}
