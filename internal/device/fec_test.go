package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herlein/antplus/internal/frame"
	"github.com/herlein/antplus/internal/profile"
	"github.com/herlein/antplus/internal/wire"
)

func TestParseFECGeneralPage(t *testing.T) {
	d := newDevice(frame.DeviceID{ID: 1, Type: 0x11}, profile.FitnessEquipment)

	payload := []byte{wire.PageFECGeneral, 0, 0, 0, 0x88, 0x13, 0, 0} // speed = 0x1388 = 5000 -> 5.0 m/s
	d.Parse(frame.Frame{Payload: payload, Timestamp: time.Now()})

	speed := d.TimeSeries(MetricGeneralInstSpeed)
	require.Len(t, speed, 1)
	assert.InDelta(t, 5.0, speed[0].Value, 0.001)
}

func TestParseFECTrainerPage(t *testing.T) {
	d := newDevice(frame.DeviceID{ID: 1, Type: 0x11}, profile.FitnessEquipment)

	// cadence=80, accPower LE=1000, instPower low byte=0xF4(244)+high nibble 0x01 -> 0x1F4=500
	payload := []byte{wire.PageFECTrainer, 0, 80, 0xE8, 0x03, 0xF4, 0x11, 0x20}
	d.Parse(frame.Frame{Payload: payload, Timestamp: time.Now()})

	cadence := d.TimeSeries(MetricTrainerCadence)
	require.Len(t, cadence, 1)
	assert.Equal(t, float32(80), cadence[0].Value)

	inst := d.TimeSeries(MetricTrainerInstPower)
	require.Len(t, inst, 1)
	assert.Equal(t, float32(500), inst[0].Value)

	status := d.TimeSeries(MetricTrainerStatus)
	require.Len(t, status, 1)
	assert.Equal(t, float32(1), status[0].Value)
}

func TestParseFECCommonStatusSuppressesDuplicateSequence(t *testing.T) {
	d := newDevice(frame.DeviceID{ID: 1, Type: 0x11}, profile.FitnessEquipment)

	payload := []byte{wire.PageCommonStatus, wire.FECCommandResistance, 0x05, 0x00, 0, 0, 0, 0x64}
	d.Parse(frame.Frame{Payload: payload, Timestamp: time.Now()})
	d.Parse(frame.Frame{Payload: payload, Timestamp: time.Now()})

	res := d.TimeSeries(MetricTargetResistance)
	require.Len(t, res, 1, "repeated status with the same sequence number must not duplicate the sample")
	assert.InDelta(t, 50.0, res[0].Value, 0.01)
}

func TestParseFECCommonStatusEmitsOnSequenceAdvance(t *testing.T) {
	d := newDevice(frame.DeviceID{ID: 1, Type: 0x11}, profile.FitnessEquipment)

	first := []byte{wire.PageCommonStatus, wire.FECCommandResistance, 0x01, 0x00, 0, 0, 0, 0x64}
	second := []byte{wire.PageCommonStatus, wire.FECCommandResistance, 0x02, 0x00, 0, 0, 0, 0x32}

	d.Parse(frame.Frame{Payload: first, Timestamp: time.Now()})
	d.Parse(frame.Frame{Payload: second, Timestamp: time.Now()})

	res := d.TimeSeries(MetricTargetResistance)
	require.Len(t, res, 2)
}

func TestParseFECCommonStatusIgnoresRejectedCommand(t *testing.T) {
	d := newDevice(frame.DeviceID{ID: 1, Type: 0x11}, profile.FitnessEquipment)

	payload := []byte{wire.PageCommonStatus, wire.FECCommandPower, 0x01, 0x01 /* non-zero = rejected */, 0, 0, 0x10, 0x00}
	d.Parse(frame.Frame{Payload: payload, Timestamp: time.Now()})

	assert.Empty(t, d.TimeSeries(MetricTargetPower))
}
