// Package device implements the application-layer page decoders for Heart
// Rate, Power, and Fitness Equipment Controls devices, and the per-channel
// device registry that owns them, per spec.md §4.E/§4.F.
package device

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/herlein/antplus/internal/frame"
	"github.com/herlein/antplus/internal/profile"
)

// Sample is one (value, timestamp) point in a device's per-metric time
// series.
type Sample struct {
	Value     float32
	Timestamp time.Time
}

// Device is a single observed ANT+ sensor: a stable (id, type) pair with
// append-only per-metric time series and last-write-wins metadata. All
// reads and writes go through mu; inserts happen on a single goroutine per
// device (its owning channel worker), so readers only need to guard against
// concurrent facade snapshot reads, not concurrent writers.
type Device struct {
	ID   frame.DeviceID
	Kind profile.ChannelType
	Name string

	mu       sync.RWMutex
	metadata map[string]float32
	series   map[string][]Sample
	lastSeen time.Time

	// Decoder-local state, populated lazily by the matching parser.
	hrToggleBit uint8 // sentinel 0xFF == not yet observed
	hrToggled   bool
	fecCmdSeq   int16 // -1 == not yet observed
}

// newDevice constructs a Device of the given kind, ready to receive pages.
func newDevice(id frame.DeviceID, kind profile.ChannelType) *Device {
	return &Device{
		ID:          id,
		Kind:        kind,
		Name:        defaultName(kind, id),
		metadata:    make(map[string]float32),
		series:      make(map[string][]Sample),
		hrToggleBit: 0xFF,
		fecCmdSeq:   -1,
	}
}

func defaultName(kind profile.ChannelType, id frame.DeviceID) string {
	return kind.String() + "_" + strconv.Itoa(int(id.ID))
}

// Parse dispatches a decoded application frame (BROADCAST_DATA or
// ACK_DATA) to the decoder matching this device's kind.
func (d *Device) Parse(f frame.Frame) {
	d.mu.Lock()
	d.lastSeen = f.Timestamp
	d.mu.Unlock()

	switch d.Kind {
	case profile.HeartRate:
		d.parseHR(f)
	case profile.Power:
		d.parsePower(f)
	case profile.FitnessEquipment:
		d.parseFEC(f)
	}
}

// TimeSeries returns a copy of the named metric's samples, safe to read
// without holding the device lock afterward.
func (d *Device) TimeSeries(metric string) []Sample {
	d.mu.RLock()
	defer d.mu.RUnlock()
	src := d.series[metric]
	out := make([]Sample, len(src))
	copy(out, src)
	return out
}

// Metrics returns the names of every metric this device has ever emitted,
// sorted for stable iteration.
func (d *Device) Metrics() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.series))
	for k := range d.series {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Metadata returns the named metadata value and whether it has ever been
// set.
func (d *Device) Metadata(key string) (float32, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.metadata[key]
	return v, ok
}

// MetadataKeys returns every metadata key set so far, sorted.
func (d *Device) MetadataKeys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	keys := make([]string, 0, len(d.metadata))
	for k := range d.metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LastSeen returns the timestamp of the most recently parsed frame.
func (d *Device) LastSeen() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastSeen
}

func (d *Device) appendSample(metric string, value float32, ts time.Time) {
	d.mu.Lock()
	d.series[metric] = append(d.series[metric], Sample{Value: value, Timestamp: ts})
	d.mu.Unlock()
}

func (d *Device) setMetadata(key string, value float32) {
	d.mu.Lock()
	d.metadata[key] = value
	d.mu.Unlock()
}

// Registry is a (device-id, device-type) -> *Device map, lazily populated
// as new devices are observed on a channel, per spec.md §4.D item 2.
// Grounded on the teacher's pkg/scanner.SignalTracker: a mutex-guarded map
// of lazily-created tracked entities, here repurposed from signals to
// devices.
type Registry struct {
	mu      sync.RWMutex
	byID    map[frame.DeviceID]*Device
	ordered []frame.DeviceID
}

// NewRegistry creates an empty device registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[frame.DeviceID]*Device)}
}

// GetOrCreate returns the Device for id, creating one of the given kind if
// this is the first time id has been observed.
func (r *Registry) GetOrCreate(id frame.DeviceID, kind profile.ChannelType) *Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.byID[id]; ok {
		return d
	}
	d := newDevice(id, kind)
	r.byID[id] = d
	r.ordered = append(r.ordered, id)
	return d
}

// Devices returns a snapshot of observed devices, ordered by device type
// and then by device number for stable iteration (spec.md §3: "Ordering
// used only for container stability").
func (r *Registry) Devices() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]frame.DeviceID, len(r.ordered))
	copy(ids, r.ordered)
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Type != ids[j].Type {
			return ids[i].Type < ids[j].Type
		}
		return ids[i].ID < ids[j].ID
	})

	out := make([]*Device, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.byID[id])
	}
	return out
}
