package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herlein/antplus/internal/frame"
	"github.com/herlein/antplus/internal/profile"
	"github.com/herlein/antplus/internal/transport/transporttest"
	"github.com/herlein/antplus/internal/wire"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestRouteBroadcastDataCreatesDevice(t *testing.T) {
	m := transporttest.New()
	d := New(m, 1, 0, false, 60000, nil)
	require.NoError(t, d.Start())
	defer d.Stop()

	devID := &frame.DeviceID{ID: 99, Type: 0x78}
	m.Deliver(frame.Frame{
		MsgType:  wire.MsgBroadcastData,
		Channel:  0,
		Payload:  []byte{wire.PageHRDefault, 0, 0, 0, 0, 0, 10, 60},
		DeviceID: devID,
	})

	waitFor(t, time.Second, func() bool {
		return len(d.Devices(0)) == 1
	})

	devices := d.Devices(0)
	require.Len(t, devices, 1)
	assert.Equal(t, uint16(99), devices[0].ID.ID)
}

func TestRouteIgnoresFramesForOutOfRangeChannel(t *testing.T) {
	m := transporttest.New()
	d := New(m, 1, 0, false, 60000, nil)
	require.NoError(t, d.Start())
	defer d.Stop()

	d.route(frame.Frame{MsgType: wire.MsgBroadcastData, Channel: 5})
	assert.Empty(t, d.Devices(0))
}

func openChannel(t *testing.T, d *Dispatcher, chanIdx int, kind profile.ChannelType) {
	t.Helper()
	ch := d.Channel(chanIdx)
	mock := d.transport.(*transporttest.Mock)
	mock.OnSend = func(f frame.Frame, m *transporttest.Mock) {
		switch f.MsgType {
		case wire.MsgAssignChannel, wire.MsgChannelID, wire.MsgSearchTimeout,
			wire.MsgLPSearchTimeout, wire.MsgChannelPeriod, wire.MsgChannelFrequency,
			wire.MsgOpenChannel:
			ch.OnEvent(frame.Frame{
				MsgType: wire.MsgChannelEvent,
				Channel: f.Channel,
				Payload: []byte{f.MsgType, wire.ResponseNoError},
			})
		}
	}
	require.NoError(t, ch.Start(kind, 0, true, true))
}

func TestPollOnceRequestsFromReadyFECChannels(t *testing.T) {
	m := transporttest.New()
	d := New(m, 1, 0, false, 60000, nil)
	openChannel(t, d, 0, profile.FitnessEquipment)

	m.OnSend = nil // stop auto-acking so pollOnce's request is the only new frame
	d.pollOnce()

	sent := m.Sent()
	require.NotEmpty(t, sent)
	last := sent[len(sent)-1]
	assert.Equal(t, byte(wire.MsgAckData), last.MsgType)
	assert.Equal(t, []byte{wire.PageRequestData, 0xFF, 0xFF, 0xFF, 0xFF, 0x81, wire.PageCommonStatus, wire.RequestCommandTypeDataPage}, last.Payload)
}

func TestPollOnceSkipsNonFECChannels(t *testing.T) {
	m := transporttest.New()
	d := New(m, 1, 0, false, 60000, nil)
	openChannel(t, d, 0, profile.HeartRate)

	before := len(m.Sent())
	m.OnSend = nil
	d.pollOnce()

	assert.Equal(t, before, len(m.Sent()))
}
