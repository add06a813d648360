// Package antconfig holds the runtime options for an ANT+ acquisition
// session and their JSON persistence, grounded on the teacher's
// pkg/config/storage.go (load/save) and pkg/config/config.go (the struct
// carrying device settings across runs).
package antconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Defaults per spec.md §5.
const (
	DefaultChannelCount        = 8
	DefaultPollIntervalMS      = 2000
	DefaultChannelStartTimeout = 60
	DefaultSearchTimeout       = 0xFF
)

var (
	ErrInvalidChannelCount = errors.New("antconfig: channel count must be > 0")
	ErrInvalidPollInterval = errors.New("antconfig: poll interval must be > 0")
	ErrInvalidStartTimeout = errors.New("antconfig: channel start timeout must be > 0")
)

// Options configures a Facade session: how many channels to manage, how
// often to poll FE-C trainers, and the shared network key every channel is
// assigned under.
type Options struct {
	ChannelCount         int     `json:"channel_count"`
	PollIntervalMS       int     `json:"poll_interval_ms"`
	ChannelStartTimeoutS int     `json:"channel_start_timeout_s"`
	ExtendedMessages     bool    `json:"extended_messages"`
	SearchTimeout        uint8   `json:"search_timeout"`
	NetworkKey           [8]byte `json:"network_key"`
}

// Default returns the options spec.md §5 lists as defaults.
func Default() Options {
	return Options{
		ChannelCount:         DefaultChannelCount,
		PollIntervalMS:       DefaultPollIntervalMS,
		ChannelStartTimeoutS: DefaultChannelStartTimeout,
		ExtendedMessages:     true,
		SearchTimeout:        DefaultSearchTimeout,
		NetworkKey:           [8]byte{0xB9, 0xA5, 0x21, 0xFB, 0xBD, 0x72, 0xC3, 0x45}, // ANT+ managed network key
	}
}

// Validate checks that Options describes a session the dispatcher can
// actually run.
func (o Options) Validate() error {
	if o.ChannelCount <= 0 {
		return ErrInvalidChannelCount
	}
	if o.PollIntervalMS <= 0 {
		return ErrInvalidPollInterval
	}
	if o.ChannelStartTimeoutS <= 0 {
		return ErrInvalidStartTimeout
	}
	return nil
}

// SaveToFile writes opts as indented JSON, creating parent directories as
// needed.
func SaveToFile(opts Options, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("antconfig: create directory: %w", err)
	}

	data, err := json.MarshalIndent(opts, "", "  ")
	if err != nil {
		return fmt.Errorf("antconfig: marshal options: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("antconfig: write file: %w", err)
	}
	return nil
}

// LoadFromFile reads Options back from JSON, falling back to Default() for
// any field the file omits.
func LoadFromFile(path string) (Options, error) {
	opts := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("antconfig: read file: %w", err)
	}
	if err := json.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("antconfig: unmarshal options: %w", err)
	}
	return opts, nil
}
