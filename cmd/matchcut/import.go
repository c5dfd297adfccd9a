// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ZSC714725/matchcut/internal/app"
	"github.com/ZSC714725/matchcut/internal/game"
	"github.com/ZSC714725/matchcut/internal/importer"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <game-dir>",
	Short: "Import a match video into a game folder",
	Long: `Import a match video into a game folder and record it in game.json.

Local files are given with --file (repeat to join several parts, which
must share one format). Hosted matches are given with --link; two links
are the two halves of a match.

Examples:
  matchcut import ./games/ajax --file ~/Videos/match.mp4
  matchcut import ./games/ajax --file part1.mp4 --file part2.mp4
  matchcut import ./games/ajax --link https://app.veo.co/matches/...`,
	Args: cobra.ExactArgs(1),
	RunE: runImportCmd,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringArray("file", nil, "Local video file (repeatable)")
	importCmd.Flags().StringArray("link", nil, "Match page link (repeatable, at most two)")
	importCmd.MarkFlagsMutuallyExclusive("file", "link")
	importCmd.MarkFlagsOneRequired("file", "link")
}

func runImportCmd(cmd *cobra.Command, args []string) error {
	files, _ := cmd.Flags().GetStringArray("file")
	links, _ := cmd.Flags().GetStringArray("link")

	src := importer.Source{Kind: importer.SourceFile, Paths: files}
	if len(links) > 0 {
		src = importer.Source{Kind: importer.SourceVeo, Links: links}
	}
	gameDir := args[0]

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		asset, err := a.Importer.Import(ctx, src, gameDir, progressPrinter(os.Stderr))
		if err != nil {
			return err
		}
		if err := game.SetVideoPath(gameDir, asset.Path); err != nil {
			return fmt.Errorf("imported %s but could not update %s: %w", asset.Path, game.FileName, err)
		}

		if jsonOutput {
			printJSON(asset)
			return nil
		}
		fmt.Println(asset.Path)
		return nil
	})
}
