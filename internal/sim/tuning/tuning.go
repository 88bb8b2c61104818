package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	RegionID        string `yaml:"region_id"`
	TickRateHz      int    `yaml:"tick_rate_hz"`
	PendingCapacity int    `yaml:"pending_capacity"`
	SelfCollision   bool   `yaml:"self_collision"`
	ObserverBuffer  int    `yaml:"observer_buffer"`

	Journal Journal `yaml:"journal"`
	Index   Index   `yaml:"index"`
}

type Journal struct {
	Enabled bool `yaml:"enabled"`
	// Rotate is "hour" or "day".
	Rotate     string `yaml:"rotate"`
	FlushEvery int    `yaml:"flush_every"`
}

type Index struct {
	Enabled bool `yaml:"enabled"`
	Queue   int  `yaml:"queue"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		RegionID:        "region_1",
		TickRateHz:      20,
		PendingCapacity: 1024,
		ObserverBuffer:  8,
		Journal:         Journal{Enabled: true, Rotate: "hour", FlushEvery: 1},
		Index:           Index{Enabled: true, Queue: 4096},
	}
}

// Load overlays the YAML file on Defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.RegionID == "" {
		return fmt.Errorf("region_id is required")
	}
	if t.TickRateHz <= 0 || t.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz out of range: %d", t.TickRateHz)
	}
	if t.PendingCapacity <= 0 {
		return fmt.Errorf("pending_capacity must be > 0")
	}
	if t.ObserverBuffer <= 0 {
		return fmt.Errorf("observer_buffer must be > 0")
	}
	switch t.Journal.Rotate {
	case "", "hour", "day":
	default:
		return fmt.Errorf("journal.rotate must be hour or day: %q", t.Journal.Rotate)
	}
	if t.Journal.FlushEvery < 0 {
		return fmt.Errorf("journal.flush_every must be >= 0")
	}
	if t.Index.Enabled && t.Index.Queue <= 0 {
		return fmt.Errorf("index.queue must be > 0")
	}
	return nil
}
