package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tuffrabit/tinygo-epd-link/pkg/hostlink"
)

type sendConfig struct {
	Port   string
	Baud   int
	Rotate int
	Invert bool
	Debug  bool
	Client hostlink.Options
}

func defaultSendConfig() sendConfig {
	return sendConfig{
		Baud:   115200,
		Client: hostlink.DefaultOptions(),
	}
}

type fileConfig struct {
	Port         string `toml:"port"`
	Baud         int    `toml:"baud"`
	Rotate       int    `toml:"rotate"`
	Invert       bool   `toml:"invert"`
	Debug        bool   `toml:"debug"`
	AckTimeout   string `toml:"ack_timeout"`
	FrameTimeout string `toml:"frame_timeout"`
	ChunkSize    int    `toml:"chunk_size"`
	ChunkDelayMS int64  `toml:"chunk_delay_ms"`
}

func loadSendConfig(path string) (sendConfig, error) {
	cfg := defaultSendConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return sendConfig{}, fmt.Errorf("load epdsend config: %w", err)
	}

	if meta.IsDefined("port") {
		cfg.Port = strings.TrimSpace(raw.Port)
	}

	if meta.IsDefined("baud") {
		if raw.Baud <= 0 {
			return sendConfig{}, fmt.Errorf("invalid baud: %d", raw.Baud)
		}
		cfg.Baud = raw.Baud
	}

	if meta.IsDefined("rotate") {
		cfg.Rotate = raw.Rotate
	}

	if meta.IsDefined("invert") {
		cfg.Invert = raw.Invert
	}

	if meta.IsDefined("debug") {
		cfg.Debug = raw.Debug
	}

	if meta.IsDefined("ack_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.AckTimeout))
		if err != nil {
			return sendConfig{}, fmt.Errorf("parse ack_timeout: %w", err)
		}
		cfg.Client.AckTimeout = d
	}

	if meta.IsDefined("frame_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.FrameTimeout))
		if err != nil {
			return sendConfig{}, fmt.Errorf("parse frame_timeout: %w", err)
		}
		cfg.Client.FrameTimeout = d
	}

	if meta.IsDefined("chunk_size") {
		cfg.Client.ChunkSize = raw.ChunkSize
	}

	if meta.IsDefined("chunk_delay_ms") {
		cfg.Client.ChunkDelay = time.Duration(raw.ChunkDelayMS) * time.Millisecond
	}

	return cfg, nil
}
