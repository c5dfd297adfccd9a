// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server ServerConfig `yaml:"server" toml:"server"`
	FFmpeg FFmpegConfig `yaml:"ffmpeg" toml:"ffmpeg"`
	Paths  PathsConfig  `yaml:"paths" toml:"paths"`
	Import ImportConfig `yaml:"import" toml:"import"`
	Fetch  FetchConfig  `yaml:"fetch" toml:"fetch"`
	Cancel CancelConfig `yaml:"cancel" toml:"cancel"`
	Space  SpaceConfig  `yaml:"space" toml:"space"`
	Log    LogConfig    `yaml:"log" toml:"log"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Bind string `yaml:"bind" toml:"bind"`
}

// FFmpegConfig FFmpeg 配置
type FFmpegConfig struct {
	Path         string   `yaml:"path" toml:"path"`
	ProbePath    string   `yaml:"probe_path" toml:"probe_path"`
	StaleTimeout uint64   `yaml:"stale_timeout_seconds" toml:"stale_timeout_seconds"`
	MaxLogLines  int      `yaml:"max_log_lines" toml:"max_log_lines"`
	InputAllow   []string `yaml:"input_allow" toml:"input_allow"`
	InputBlock   []string `yaml:"input_block" toml:"input_block"`
}

// PathsConfig 临时目录
type PathsConfig struct {
	TempDir string `yaml:"temp_dir" toml:"temp_dir"`
}

// ImportConfig 导入配置
type ImportConfig struct {
	// NativeExtensions are copied as-is; anything else is remuxed to mp4
	NativeExtensions []string `yaml:"native_extensions" toml:"native_extensions"`
}

// FetchConfig 远程下载配置
type FetchConfig struct {
	SourcePattern string `yaml:"source_pattern" toml:"source_pattern"`
	// Timeout applies to resolving the hosting page only, not to downloads
	Timeout uint64 `yaml:"timeout_seconds" toml:"timeout_seconds"`
}

// CancelConfig 取消配置
type CancelConfig struct {
	GraceMs uint64 `yaml:"grace_ms" toml:"grace_ms"`
}

// SpaceConfig 磁盘空间预检
type SpaceConfig struct {
	MinFreeBytes uint64 `yaml:"min_free_bytes" toml:"min_free_bytes"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
	File  string `yaml:"file" toml:"file"`
}

const (
	defaultBind          = "127.0.0.1:8080"
	defaultSourcePattern = `https://c\.veocdn\.com/[A-Za-z0-9_\-/.]+?\.mp4`
	defaultStaleTimeout  = 60
	defaultFetchTimeout  = 30
	defaultGraceMs       = 1000
	defaultMinFreeBytes  = 4 << 30
)

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{Bind: defaultBind},
		FFmpeg: FFmpegConfig{
			Path:         "ffmpeg",
			ProbePath:    "ffprobe",
			StaleTimeout: defaultStaleTimeout,
			MaxLogLines:  100,
		},
		Paths:  PathsConfig{TempDir: filepath.Join(os.TempDir(), "matchcut")},
		Import: ImportConfig{NativeExtensions: []string{".mp4", ".webm", ".ogg"}},
		Fetch:  FetchConfig{SourcePattern: defaultSourcePattern, Timeout: defaultFetchTimeout},
		Cancel: CancelConfig{GraceMs: defaultGraceMs},
		Space:  SpaceConfig{MinFreeBytes: defaultMinFreeBytes},
		Log:    LogConfig{Level: "info"},
	}
}

// Load 从 YAML 或 TOML 文件加载配置，缺失的文件使用默认配置
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.fill()
	return cfg, cfg.Validate()
}

// 填充空值
func (c *Config) fill() {
	d := Default()
	if c.Server.Bind == "" {
		c.Server.Bind = d.Server.Bind
	}
	if c.FFmpeg.Path == "" {
		c.FFmpeg.Path = d.FFmpeg.Path
	}
	if c.FFmpeg.ProbePath == "" {
		c.FFmpeg.ProbePath = d.FFmpeg.ProbePath
	}
	if c.FFmpeg.MaxLogLines <= 0 {
		c.FFmpeg.MaxLogLines = d.FFmpeg.MaxLogLines
	}
	if c.Paths.TempDir == "" {
		c.Paths.TempDir = d.Paths.TempDir
	}
	if len(c.Import.NativeExtensions) == 0 {
		c.Import.NativeExtensions = d.Import.NativeExtensions
	}
	if c.Fetch.SourcePattern == "" {
		c.Fetch.SourcePattern = d.Fetch.SourcePattern
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = d.Fetch.Timeout
	}
	if c.Cancel.GraceMs == 0 {
		c.Cancel.GraceMs = d.Cancel.GraceMs
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	for i, ext := range c.Import.NativeExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Import.NativeExtensions[i] = ext
	}
}

// Validate checks values that can't be fixed by defaults
func (c *Config) Validate() error {
	if c.Cancel.GraceMs > 60_000 {
		return fmt.Errorf("cancel.grace_ms %d exceeds one minute", c.Cancel.GraceMs)
	}
	return nil
}

// StaleTimeout returns the ffmpeg no-progress watchdog; zero disables it
func (c *Config) StaleTimeout() time.Duration {
	return time.Duration(c.FFmpeg.StaleTimeout) * time.Second
}

// CancelGrace returns how long CancelAll waits for processes to exit
func (c *Config) CancelGrace() time.Duration {
	return time.Duration(c.Cancel.GraceMs) * time.Millisecond
}

// FetchTimeout returns the page resolution timeout
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.Timeout) * time.Second
}
