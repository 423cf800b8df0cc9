// Package config loads the process-wide TOML configuration: a [global]
// table of filesystem layout overrides plus per-pattern defaults tables,
// resolved from a fixed precedence of sources.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/shmbus/shmbus/cmn/cos"
	"github.com/shmbus/shmbus/cmn/fname"
	"github.com/shmbus/shmbus/cmn/nlog"
)

const configFileEnvVar = "IOX2_CONFIG_FILE"

type Global struct {
	RootPath     string `toml:"root-path"`
	Prefix       string `toml:"prefix"`
	ServiceSuffix string `toml:"service-suffix"`
	NodeSuffix   string `toml:"node-suffix"`
}

type PublishSubscribeDefaults struct {
	MaxSubscribers            uint32 `toml:"max-subscribers"`
	MaxPublishers             uint32 `toml:"max-publishers"`
	SubscriberMaxBufferSize   uint32 `toml:"subscriber-max-buffer-size"`
	SubscriberMaxBorrowedSamples uint32 `toml:"subscriber-max-borrowed-samples"`
	HistorySize               uint32 `toml:"history-size"`
	EnableSafeOverflow        bool   `toml:"enable-safe-overflow"`
	MaxNodes                  uint32 `toml:"max-nodes"`
}

type EventDefaults struct {
	EventIdMaxValue     uint64 `toml:"event-id-max-value"`
	DeadlineMillis      uint64 `toml:"deadline"`
	NotifierCreatedEvent uint64 `toml:"notifier-created-event"`
	NotifierDroppedEvent uint64 `toml:"notifier-dropped-event"`
	NotifierDeadEvent   uint64 `toml:"notifier-dead-event"`
	MaxNotifiers        uint32 `toml:"max-notifiers"`
	MaxListeners        uint32 `toml:"max-listeners"`
	MaxNodes            uint32 `toml:"max-nodes"`
}

type Defaults struct {
	PublishSubscribe PublishSubscribeDefaults `toml:"publish-subscribe"`
	Event            EventDefaults             `toml:"event"`
}

type Config struct {
	Global   Global   `toml:"global"`
	Defaults Defaults `toml:"defaults"`
}

func defaultConfig() *Config {
	return &Config{
		Global: Global{
			Prefix:        fname.DefaultPrefix,
			ServiceSuffix: fname.StaticSuffix,
			NodeSuffix:    fname.NodeSuffix,
		},
		Defaults: Defaults{
			PublishSubscribe: PublishSubscribeDefaults{
				MaxSubscribers:              16,
				MaxPublishers:               4,
				SubscriberMaxBufferSize:     8,
				SubscriberMaxBorrowedSamples: 4,
				HistorySize:                 1,
				EnableSafeOverflow:          true,
				MaxNodes:                    64,
			},
			Event: EventDefaults{
				EventIdMaxValue: 1 << 16,
				DeadlineMillis:  0,
				MaxNotifiers:    4,
				MaxListeners:    16,
				MaxNodes:        64,
			},
		},
	}
}

// Load resolves the configuration from, in order: explicitPath (if
// non-empty), the IOX2_CONFIG_FILE environment variable, the user config
// directory, the system config directory, falling back to built-in
// defaults if none of those exist. Unrecognized keys are logged at Debug,
// never treated as an error.
func Load(explicitPath string) (*Config, error) {
	for _, candidate := range candidatePaths(explicitPath) {
		if candidate == "" || !cos.FileExists(candidate) {
			continue
		}
		return loadFile(candidate)
	}
	nlog.Debugln("config: no config file found in any resolution path, using built-in defaults")
	return defaultConfig(), nil
}

func candidatePaths(explicitPath string) []string {
	paths := []string{explicitPath}
	paths = append(paths, os.Getenv(configFileEnvVar))
	if home := cos.HomeDir(); home != "" {
		paths = append(paths, filepath.Join(home, fname.HomeConfigsDir, fname.HomeShmbus, fname.GlobalConfig))
	}
	paths = append(paths, filepath.Join("/etc", fname.HomeShmbus, fname.GlobalConfig))
	return paths
}

func loadFile(path string) (*Config, error) {
	cfg := defaultConfig()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	for _, key := range meta.Undecoded() {
		nlog.Debugf("config: ignoring unrecognized key %q in %s", key, path)
	}
	nlog.Infof("config: loaded %s", path)
	return cfg, nil
}
