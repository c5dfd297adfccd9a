// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZSC714725/matchcut/internal/app"
	"github.com/ZSC714725/matchcut/internal/config"
	"github.com/ZSC714725/matchcut/internal/logger"
	"github.com/ZSC714725/matchcut/internal/progress"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string
	logLevel   string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "matchcut",
	Short: "Import, cut and clip match videos",
	Long: `matchcut - import, cut and clip match videos with FFmpeg

All operations copy streams, nothing is re-encoded. Press Ctrl+C to
cancel the running operation; partial files are removed.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML or TOML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("matchcut {{.Version}}\n")
}

func loadConfig(verbose bool) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	} else if !verbose {
		cfg.Log.Level = "warn"
	}
	return cfg, nil
}

// withApp builds the app, runs fn and cancels every job when the user
// interrupts. serve logs at the configured level, one-shot commands
// stay quiet.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig(cmd.Name() == "serve")
	if err != nil {
		return err
	}

	lg, closer, err := logger.NewWithConfig("matchcut", logger.Config{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer closer.Close()

	a, err := app.New(cfg, lg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	cancelled := make(chan struct{})
	defer func() {
		close(done)
		<-cancelled // 等待清理结束再退出
	}()
	go func() {
		defer close(cancelled)
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\ncancelling...")
			if err := a.Registry.CancelAll(context.Background()); err != nil {
				lg.Error("cancel: %v", err)
			}
		case <-done:
		}
	}()

	return fn(ctx, a)
}

// progressPrinter renders samples on one terminal line
func progressPrinter(w io.Writer) progress.Sink {
	return func(s progress.Sample) {
		label := s.Label
		if label == "" {
			label = "progress"
		}
		eta := "--"
		if !s.Indeterminate() {
			eta = fmt.Sprintf("%.0fs", s.RemainingSeconds)
		}
		fmt.Fprintf(w, "\r%-14s %3d%%  %s left   ", label, s.PercentageDone, eta)
		if s.PercentageDone == 100 {
			fmt.Fprintln(w)
		}
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
