package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herlein/antplus/internal/frame"
	"github.com/herlein/antplus/internal/profile"
)

func TestRegistryGetOrCreateIsLazyAndStable(t *testing.T) {
	r := NewRegistry()
	id := frame.DeviceID{ID: 42, Type: 0x78}

	d1 := r.GetOrCreate(id, profile.HeartRate)
	d2 := r.GetOrCreate(id, profile.HeartRate)
	assert.Same(t, d1, d2)
}

func TestRegistryDevicesOrderedByTypeThenID(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate(frame.DeviceID{ID: 5, Type: 0x0B}, profile.Power)
	r.GetOrCreate(frame.DeviceID{ID: 2, Type: 0x78}, profile.HeartRate)
	r.GetOrCreate(frame.DeviceID{ID: 1, Type: 0x78}, profile.HeartRate)

	devices := r.Devices()
	require.Len(t, devices, 3)
	assert.Equal(t, uint16(5), devices[0].ID.ID)
	assert.Equal(t, uint16(1), devices[1].ID.ID)
	assert.Equal(t, uint16(2), devices[2].ID.ID)
}

func TestTimeSeriesCopyIsIndependent(t *testing.T) {
	d := newDevice(frame.DeviceID{ID: 1, Type: 0x78}, profile.HeartRate)
	d.appendSample("X", 1, time.Now())

	got := d.TimeSeries("X")
	got[0].Value = 999

	fresh := d.TimeSeries("X")
	assert.Equal(t, float32(1), fresh[0].Value)
}

func TestMetricsAndMetadataKeysSorted(t *testing.T) {
	d := newDevice(frame.DeviceID{ID: 1, Type: 0x78}, profile.HeartRate)
	d.appendSample("B", 1, time.Now())
	d.appendSample("A", 2, time.Now())
	d.setMetadata("Z", 1)
	d.setMetadata("Y", 2)

	assert.Equal(t, []string{"A", "B"}, d.Metrics())
	assert.Equal(t, []string{"Y", "Z"}, d.MetadataKeys())
}

func TestLastSeenUpdatesOnParse(t *testing.T) {
	d := newDevice(frame.DeviceID{ID: 1, Type: 0x78}, profile.HeartRate)
	ts := time.Now()
	d.Parse(frame.Frame{Payload: []byte{0, 0, 0, 0, 0, 0, 0, 0}, Timestamp: ts})
	assert.Equal(t, ts, d.LastSeen())
}
