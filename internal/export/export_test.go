package export

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herlein/antplus/internal/device"
	"github.com/herlein/antplus/internal/frame"
	"github.com/herlein/antplus/internal/profile"
)

func TestBuildSnapshotGroupsByNameAndID(t *testing.T) {
	start := time.Now()
	reg := device.NewRegistry()
	d := reg.GetOrCreate(frame.DeviceID{ID: 7, Type: 0x78}, profile.HeartRate)
	d.Parse(frame.Frame{
		Payload:   []byte{0x00, 0, 0, 0, 0, 0, 60, 72},
		Timestamp: start.Add(250 * time.Millisecond),
	})

	snap := Build(reg.Devices(), start)
	require.Len(t, snap.Devices, 1)

	ds, ok := snap.Devices["HeartRate_7"]
	require.True(t, ok)
	assert.Equal(t, uint16(7), ds.DeviceID)
	require.NotEmpty(t, ds.Data["HEARTRATE"])
	assert.Equal(t, uint64(250), ds.Data["HEARTRATE"][0].TimestampMS)
	assert.Equal(t, uint64(250), ds.TimestampMS)
}

func TestSaveLoadSnapshotRoundTrip(t *testing.T) {
	start := time.Now()
	reg := device.NewRegistry()
	d := reg.GetOrCreate(frame.DeviceID{ID: 1, Type: 0x0B}, profile.Power)
	d.Parse(frame.Frame{
		Payload:   []byte{0x10, 0, 0x32 | 0x80, 90, 0, 0, 0xC8, 0},
		Timestamp: start,
	})

	snap := Build(reg.Devices(), start)
	path := filepath.Join(t.TempDir(), "out", "snap.json")

	require.NoError(t, SaveToFile(snap, path))
	got, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Len(t, got.Devices, 1)
}
