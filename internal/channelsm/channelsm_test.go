package channelsm

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herlein/antplus/internal/frame"
	"github.com/herlein/antplus/internal/profile"
	"github.com/herlein/antplus/internal/transport/transporttest"
	"github.com/herlein/antplus/internal/wire"
)

func ackEvent(channel uint8, code byte) frame.Frame {
	return frame.Frame{
		MsgType: wire.MsgChannelEvent,
		Channel: channel,
		Payload: []byte{code, wire.ResponseNoError},
	}
}

func TestStartHappyPathReachesOpenUnpaired(t *testing.T) {
	var ch *Channel
	m := transporttest.New()
	m.OnSend = func(f frame.Frame, mock *transporttest.Mock) {
		switch f.MsgType {
		case wire.MsgAssignChannel, wire.MsgChannelID, wire.MsgSearchTimeout,
			wire.MsgLPSearchTimeout, wire.MsgChannelPeriod, wire.MsgChannelFrequency,
			wire.MsgOpenChannel:
			go ch.OnEvent(ackEvent(f.Channel, f.MsgType))
		}
	}
	ch = New(0, 0, m, false, func() bool { return true }, nil)

	err := ch.Start(profile.HeartRate, 0, true, true)
	require.NoError(t, err)
	assert.Equal(t, OpenUnpaired, ch.State())

	sent := m.Sent()
	require.True(t, len(sent) >= 7)
	assert.Equal(t, byte(wire.MsgUnassignChannel), sent[0].MsgType)
	assert.Equal(t, byte(wire.MsgAssignChannel), sent[1].MsgType)
	assert.Equal(t, byte(wire.MsgChannelID), sent[2].MsgType)
	assert.Equal(t, byte(wire.MsgSearchTimeout), sent[3].MsgType)
	assert.Equal(t, byte(wire.MsgLPSearchTimeout), sent[4].MsgType)
	assert.Equal(t, byte(wire.MsgChannelPeriod), sent[5].MsgType)
	assert.Equal(t, byte(wire.MsgChannelFrequency), sent[6].MsgType)
}

func TestStartRejectsWhenNotIdle(t *testing.T) {
	m := transporttest.New()
	ch := New(0, 0, m, false, func() bool { return true }, nil)
	ch.state = Assigned

	err := ch.Start(profile.HeartRate, 0, false, false)
	assert.ErrorIs(t, err, ErrWrongState)
}

func TestSetStartTimeoutOverridesDefault(t *testing.T) {
	m := transporttest.New()
	ch := New(0, 0, m, false, func() bool { return true }, nil)
	ch.SetStartTimeout(50 * time.Millisecond)

	done := make(chan error, 1)
	go func() {
		done <- ch.Start(profile.HeartRate, 0, false, true)
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrTimeout)
	case <-time.After(time.Second):
		t.Fatal("Start did not honor the overridden start timeout")
	}
}

func TestStartTimesOutWithoutAcks(t *testing.T) {
	m := transporttest.New()
	ch := New(0, 0, m, false, func() bool { return true }, nil)

	done := make(chan error, 1)
	go func() {
		done <- ch.waitForOpen(50 * time.Millisecond)
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrTimeout)
	case <-time.After(time.Second):
		t.Fatal("waitForOpen did not return within the deadline")
	}
}

func TestStartStopsEarlyWhenSessionShutsDown(t *testing.T) {
	m := transporttest.New()
	var running sync.Mutex
	alive := true
	ch := New(0, 0, m, false, func() bool {
		running.Lock()
		defer running.Unlock()
		return alive
	}, nil)

	done := make(chan error, 1)
	go func() {
		done <- ch.waitForOpen(10 * time.Second)
	}()

	time.Sleep(50 * time.Millisecond)
	running.Lock()
	alive = false
	running.Unlock()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrTimeout)
	case <-time.After(time.Second):
		t.Fatal("waitForOpen did not observe shutdown predicate")
	}
}

func TestMarkPairedOnlyFromOpenUnpaired(t *testing.T) {
	m := transporttest.New()
	ch := New(0, 0, m, false, func() bool { return true }, nil)

	ch.MarkPaired()
	assert.Equal(t, Idle, ch.State())

	ch.state = OpenUnpaired
	ch.MarkPaired()
	assert.Equal(t, OpenPaired, ch.State())
}

func TestSearchTimeoutEventReturnsToOpenUnpaired(t *testing.T) {
	m := transporttest.New()
	ch := New(0, 0, m, false, func() bool { return true }, nil)
	ch.state = OpenPaired

	ch.OnEvent(frame.Frame{
		MsgType: wire.MsgChannelEvent,
		Channel: 0,
		Payload: []byte{0x01, wire.EventRXSearchTimeout},
	})
	assert.Equal(t, OpenUnpaired, ch.State())
}

func TestChannelClosedEvent(t *testing.T) {
	m := transporttest.New()
	ch := New(0, 0, m, false, func() bool { return true }, nil)
	ch.state = OpenUnpaired

	ch.OnEvent(frame.Frame{
		MsgType: wire.MsgChannelEvent,
		Channel: 0,
		Payload: []byte{0x01, wire.EventChannelClosed},
	})
	assert.Equal(t, Closed, ch.State())
}

func TestOnID(t *testing.T) {
	m := transporttest.New()
	ch := New(0, 0, m, false, func() bool { return true }, nil)

	id, devType, ok := ch.OnID(frame.Frame{Payload: []byte{0x39, 0x30, 0x78, 0x01}})
	require.True(t, ok)
	assert.Equal(t, uint16(12345), id)
	assert.Equal(t, uint8(0x78), devType)
}
