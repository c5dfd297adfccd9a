// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具
//
// Package game reads and updates the video reference in a game folder's
// game.json. Fields this package does not know about are kept as they are.

package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lithammer/shortuuid/v4"
)

// FileName of the game description inside a game folder
const FileName = "game.json"

var ErrNoVideo = errors.New("game has no video")

// 同一进程内串行化 game.json 的读改写
var lock sync.Mutex

// VideoPath returns information.videoPath of the game in dir
func VideoPath(dir string) (string, error) {
	lock.Lock()
	defer lock.Unlock()

	doc, err := read(dir)
	if err != nil {
		return "", err
	}
	info, err := information(doc)
	if err != nil {
		return "", err
	}

	var path string
	if raw, ok := info["videoPath"]; ok {
		if err := json.Unmarshal(raw, &path); err != nil {
			return "", fmt.Errorf("%s: videoPath: %w", FileName, err)
		}
	}
	if path == "" {
		return "", ErrNoVideo
	}
	return path, nil
}

// SetVideoPath stores path as information.videoPath of the game in dir.
// A missing game.json is created.
func SetVideoPath(dir, path string) error {
	lock.Lock()
	defer lock.Unlock()

	doc, err := read(dir)
	if errors.Is(err, os.ErrNotExist) {
		doc, err = map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return err
	}
	info, err := information(doc)
	if err != nil {
		return err
	}

	if info["videoPath"], err = json.Marshal(path); err != nil {
		return err
	}
	if doc["information"], err = json.Marshal(info); err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, FileName), append(data, '\n'))
}

func read(dir string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}
	doc := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", FileName, err)
	}
	return doc, nil
}

func information(doc map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	info := map[string]json.RawMessage{}
	raw, ok := doc["information"]
	if !ok || string(raw) == "null" {
		return info, nil
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("%s: information: %w", FileName, err)
	}
	return info, nil
}

// writeFile replaces name atomically
func writeFile(name string, data []byte) error {
	tmp := filepath.Join(filepath.Dir(name), "."+filepath.Base(name)+"-"+shortuuid.New())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, name); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
