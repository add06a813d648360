// Package export snapshots observed devices into the hierarchical layout
// described in spec.md's supplemented HDF5-shaped export (originally a
// literal HDF5 group tree in original_source/; reinterpreted here as a
// nested JSON document, written with the teacher's pkg/config/storage.go
// load/save idiom), suitable for archiving a session's recorded data.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/herlein/antplus/internal/device"
)

// Point is one exported sample: a value and its offset from the facade's
// start time in milliseconds, per spec.md §6's u64[] TIMESTAMP group.
type Point struct {
	Value       float32 `json:"value"`
	TimestampMS uint64  `json:"timestamp_ms"`
}

// DeviceSnapshot is one device's exported state: its metric time series
// under "DATA", its last metadata values under "METADATA", and its last
// observed time (ms since the facade's start) under "TIMESTAMP" -- the
// three top-level groups original_source/ keeps per signal.
type DeviceSnapshot struct {
	Name        string             `json:"name"`
	DeviceID    uint16             `json:"device_id"`
	DeviceType  uint8              `json:"device_type"`
	Data        map[string][]Point `json:"DATA"`
	Metadata    map[string]float32 `json:"METADATA"`
	TimestampMS uint64             `json:"TIMESTAMP"`
}

// Snapshot is the top-level exported document: one entry per observed
// device, keyed "<name>_<id>" the way original_source/ names its HDF5
// groups.
type Snapshot struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	Devices     map[string]DeviceSnapshot `json:"devices"`
}

// msSince converts t to whole milliseconds elapsed since start, the
// reference point every exported TIMESTAMP is relative to. Samples from
// before start (there shouldn't be any) clamp to 0 rather than wrapping.
func msSince(start, t time.Time) uint64 {
	d := t.Sub(start)
	if d < 0 {
		return 0
	}
	return uint64(d.Milliseconds())
}

// Build walks every device in devices and produces a Snapshot with every
// timestamp expressed as milliseconds since start (the facade's
// Facade.StartTime()).
func Build(devices []*device.Device, start time.Time) Snapshot {
	snap := Snapshot{Devices: make(map[string]DeviceSnapshot, len(devices))}

	for _, d := range devices {
		ds := DeviceSnapshot{
			Name:        d.Name,
			DeviceID:    d.ID.ID,
			DeviceType:  d.ID.Type,
			Data:        make(map[string][]Point),
			Metadata:    make(map[string]float32),
			TimestampMS: msSince(start, d.LastSeen()),
		}

		for _, metric := range d.Metrics() {
			samples := d.TimeSeries(metric)
			points := make([]Point, len(samples))
			for i, s := range samples {
				points[i] = Point{Value: s.Value, TimestampMS: msSince(start, s.Timestamp)}
			}
			ds.Data[metric] = points
		}

		for _, key := range d.MetadataKeys() {
			v, _ := d.Metadata(key)
			ds.Metadata[key] = v
		}

		// d.Name already disambiguates by id (device.defaultName renders
		// "<Kind>_<id>"), matching the "<name>_<id>" group naming
		// original_source/ uses for its per-signal groups.
		snap.Devices[d.Name] = ds
	}
	return snap
}

// SaveToFile writes snap as indented JSON, creating parent directories as
// needed.
func SaveToFile(snap Snapshot, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("export: create directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("export: marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("export: write file: %w", err)
	}
	return nil
}

// LoadFromFile reads a Snapshot back from JSON, primarily for tests and
// tooling that inspects a previously exported session.
func LoadFromFile(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("export: read file: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("export: unmarshal snapshot: %w", err)
	}
	return snap, nil
}
