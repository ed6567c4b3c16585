// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds the thresholds and budgets of a Domain.
type Config struct {
	// WarnPendingMessages is the queue depth at which a warning is reported.
	WarnPendingMessages int `toml:"warn_pending_messages"`
	// MaxPendingMessages is the queue depth beyond which the queue is
	// reported to the Policy as over quota. Writes still succeed.
	MaxPendingMessages int `toml:"max_pending_messages"`
	// QuotaReportEvery reports every write beyond MaxPendingMessages instead
	// of only the write that crosses it.
	QuotaReportEvery bool `toml:"quota_report_every"`
	// MaxMessageBytes and MaxMessageRefs bound a single message.
	MaxMessageBytes int `toml:"max_message_bytes"`
	MaxMessageRefs  int `toml:"max_message_refs"`
	// MaxPairs bounds the number of live pairs. Zero means unlimited.
	MaxPairs int `toml:"max_pairs"`
	// MaxInflightBytes bounds the bytes held in queues and undelivered
	// replies across the domain. Zero means unlimited.
	MaxInflightBytes int64 `toml:"max_inflight_bytes"`
	// FlowBufferSize is the capacity of a FlowRecorder's event queue.
	FlowBufferSize int `toml:"flow_buffer_size"`
}

// DefaultConfig returns the thresholds of the kernel channel:
// a quota of 3500 pending messages with a warning at half of it,
// and 64 KiB / 64 refs per message.
func DefaultConfig() Config {
	return Config{
		WarnPendingMessages: 1750,
		MaxPendingMessages:  3500,
		MaxMessageBytes:     65536,
		MaxMessageRefs:      64,
		FlowBufferSize:      1024,
	}
}

// Validate reports inconsistent thresholds.
func (c Config) Validate() error {
	var errs []error
	if c.MaxPendingMessages <= 0 {
		errs = append(errs, fmt.Errorf("max_pending_messages must be positive, got %d", c.MaxPendingMessages))
	}
	if c.WarnPendingMessages <= 0 || c.WarnPendingMessages > c.MaxPendingMessages {
		errs = append(errs, fmt.Errorf("warn_pending_messages must be in 1..%d, got %d", c.MaxPendingMessages, c.WarnPendingMessages))
	}
	if c.MaxMessageBytes < 0 || c.MaxMessageRefs < 0 {
		errs = append(errs, errors.New("message limits must not be negative"))
	}
	if c.MaxPairs < 0 || c.MaxInflightBytes < 0 {
		errs = append(errs, errors.New("budgets must not be negative"))
	}
	if c.FlowBufferSize < 2 {
		errs = append(errs, fmt.Errorf("flow_buffer_size must be at least 2, got %d", c.FlowBufferSize))
	}
	return errors.Join(errs...)
}

// LoadConfig reads a TOML file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load channel config: %w", err)
	}
	return finishConfig(cfg, md)
}

// ParseConfig decodes TOML text over DefaultConfig.
func ParseConfig(data string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("parse channel config: %w", err)
	}
	return finishConfig(cfg, md)
}

func finishConfig(cfg Config, md toml.MetaData) (Config, error) {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("unknown channel config keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
