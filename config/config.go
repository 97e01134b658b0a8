// Package config はリレーサーバーとデモピアのYAML設定を読み込みます。
// パスが空の場合はデフォルト値と環境変数だけで動きます。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"driftnet/utils"
)

// RelayConfig はリレーサーバーの設定です。
type RelayConfig struct {
	Addr            string        `yaml:"addr"`
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// PeerConfig はデモピアの設定です。
type PeerConfig struct {
	RelayURL     string        `yaml:"relay_url"`
	NumPlayers   int           `yaml:"num_players"`
	TickInterval time.Duration `yaml:"tick_interval"`
	JournalPath  string        `yaml:"journal_path"`
}

// LoadRelay はリレー設定を読み込みます。
func LoadRelay(path string) (RelayConfig, error) {
	cfg := relayDefaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("relay config: %w", err)
	}
	return cfg, nil
}

// LoadPeer はデモピア設定を読み込みます。
func LoadPeer(path string) (PeerConfig, error) {
	cfg := peerDefaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("peer config: %w", err)
	}
	return cfg, nil
}

func relayDefaults() RelayConfig {
	return RelayConfig{
		Addr:            utils.GetEnvDefault("ADDR", "localhost"),
		Port:            utils.GetEnvDefault("PORT", "9090"),
		ShutdownTimeout: 10 * time.Second,
	}
}

func peerDefaults() PeerConfig {
	return PeerConfig{
		RelayURL:     utils.GetEnvDefault("RELAY_URL", "ws://localhost:9090/ws"),
		NumPlayers:   2,
		TickInterval: time.Second / 60,
		JournalPath:  utils.GetEnvDefault("JOURNAL_PATH", ""),
	}
}
