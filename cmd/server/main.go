// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/ZSC714725/matchcut/internal/app"
	"github.com/ZSC714725/matchcut/internal/config"
	"github.com/ZSC714725/matchcut/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML or TOML config file")
	bind := flag.String("bind", "", "Bind address (overrides config)")
	ffmpegBin := flag.String("ffmpeg", "", "FFmpeg binary path (overrides config)")
	ffprobeBin := flag.String("ffprobe", "", "FFprobe binary path (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Load config: %v", err)
		}
	}

	if *bind != "" {
		cfg.Server.Bind = *bind
	}
	if *ffmpegBin != "" {
		cfg.FFmpeg.Path = *ffmpegBin
	}
	if *ffprobeBin != "" {
		cfg.FFmpeg.ProbePath = *ffprobeBin
	}

	lg, closer, err := logger.NewWithConfig("matchcut", logger.Config{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		log.Fatalf("Logger: %v", err)
	}
	defer closer.Close()

	a, err := app.New(cfg, lg)
	if err != nil {
		log.Fatalf("Init: %v", err)
	}

	if sk, err := a.FFmpeg.Skills(); err != nil {
		lg.Warn("probing ffmpeg: %v", err)
	} else if err := sk.Check(); err != nil {
		lg.Warn("%v", err)
	} else {
		lg.Info("using ffmpeg %s", sk.FFmpeg.Version)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Serve(ctx, cfg.Server.Bind); err != nil {
		lg.Error("Server: %v", err)
		closer.Close()
		log.Fatalf("Server: %v", err)
	}
}
