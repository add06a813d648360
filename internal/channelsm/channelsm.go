// Package channelsm implements the per-channel configuration state machine:
// the asynchronous sequence of request/acknowledge exchanges that brings a
// channel from Idle to OpenUnpaired (or OpenPaired once a device has been
// heard), per spec.md §4.C.
package channelsm

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/herlein/antplus/internal/frame"
	"github.com/herlein/antplus/internal/profile"
	"github.com/herlein/antplus/internal/transport"
	"github.com/herlein/antplus/internal/wire"
)

// State is a channel's position in its configuration sequence.
type State int

const (
	Idle State = iota
	Assigned
	IDSet
	SearchTimeoutSet
	PeriodSet
	FreqSet
	OpenUnpaired
	OpenPaired
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Assigned:
		return "Assigned"
	case IDSet:
		return "IDSet"
	case SearchTimeoutSet:
		return "SearchTimeoutSet"
	case PeriodSet:
		return "PeriodSet"
	case FreqSet:
		return "FreqSet"
	case OpenUnpaired:
		return "OpenUnpaired"
	case OpenPaired:
		return "OpenPaired"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Sentinel errors per spec.md §7.
var (
	ErrWrongState = errors.New("channelsm: channel is not Idle")
	ErrTimeout    = errors.New("channelsm: timed out waiting for channel open")
)

// DefaultStartTimeout is channel.start(wait=true)'s default bound.
const DefaultStartTimeout = 60 * time.Second

// DefaultSearchTimeout is the "disabled" low-priority search timeout value.
const DefaultSearchTimeout = 0xFF

// Channel drives one logical radio slot's configuration sequence and holds
// the subset of spec.md §3's Channel entity that belongs to the state
// machine (number, type, state, id filter, network, flags, search
// timeout). Device fan-out and the inbound sub-queue live in
// internal/dispatch, which owns a Channel and feeds it events.
type Channel struct {
	Number  uint8
	Network uint8

	mu            sync.Mutex
	cond          *sync.Cond
	state         State
	typ           profile.ChannelType
	deviceFilter  uint16
	scanning      bool
	searchTimeout uint8
	startTimeout  time.Duration
	pendingCmd    byte

	transport transport.Transport
	extended  bool // LIB_CONFIG before OPEN_CHANNEL, for extended-message discovery

	running func() bool // shared shutdown predicate; returns false once the session is stopping
	debug   func(format string, args ...interface{})
}

// New creates a channel bound to number and network, driving its commands
// through t. running reports whether the owning session is still active;
// Start(wait=true) gives up early once it turns false. debug may be nil.
func New(number, network uint8, t transport.Transport, extended bool, running func() bool, debug func(format string, args ...interface{})) *Channel {
	c := &Channel{
		Number:        number,
		Network:       network,
		state:         Idle,
		searchTimeout: DefaultSearchTimeout,
		startTimeout:  DefaultStartTimeout,
		transport:     t,
		extended:      extended,
		running:       running,
		debug:         debug,
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *Channel) log(format string, args ...interface{}) {
	if c.debug != nil {
		c.debug(format, args...)
	}
}

// State returns the channel's current state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Type returns the channel's configured type.
func (c *Channel) Type() profile.ChannelType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typ
}

// SetSearchTimeout overrides the low-priority search timeout used on the
// next Start call. Must be called while the channel is Idle.
func (c *Channel) SetSearchTimeout(v uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searchTimeout = v
}

// SetStartTimeout overrides how long the next Start(wait=true) call blocks
// waiting for the channel to reach an open state, in place of
// DefaultStartTimeout. Must be called while the channel is Idle.
func (c *Channel) SetStartTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTimeout = d
}

func (c *Channel) send(msgType byte, payload []byte) error {
	return c.transport.SendFrame(frame.Frame{MsgType: msgType, Channel: c.Number, Payload: payload})
}

// Start brings the channel from Idle toward OpenUnpaired/OpenPaired. id is
// the device-id filter (0 = wildcard, enabling discovery). When wait is
// true, Start blocks up to the channel's start timeout (DefaultStartTimeout
// unless overridden by SetStartTimeout) for the channel to reach an open
// state, observing the shared shutdown predicate between wakeups.
func (c *Channel) Start(t profile.ChannelType, id uint16, scanning bool, wait bool) error {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return ErrWrongState
	}
	c.typ = t
	c.deviceFilter = id
	c.scanning = scanning
	timeout := c.startTimeout
	c.mu.Unlock()

	// UNASSIGN is best-effort housekeeping; no ack is awaited for it.
	_ = c.send(wire.MsgUnassignChannel, []byte{c.Number})

	extFlags := uint8(0)
	if scanning {
		extFlags |= wire.AssignExtFlagBackgroundScan
	}

	c.mu.Lock()
	c.pendingCmd = wire.MsgAssignChannel
	c.mu.Unlock()

	if err := c.send(wire.MsgAssignChannel, []byte{c.Number, 0x00, c.Network, extFlags}); err != nil {
		return err
	}

	if !wait {
		return nil
	}
	return c.waitForOpen(timeout)
}

// waitForOpen blocks on c.cond until the channel reaches an open state,
// the deadline passes, or the shared shutdown predicate turns false. Since
// sync.Cond has no timed wait, a ticker goroutine periodically re-broadcasts
// so this loop wakes on its own to re-check the deadline and the predicate
// even when no protocol event ever arrives (e.g. the dongle never acks).
func (c *Channel) waitForOpen(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	stopTicker := make(chan struct{})
	defer close(stopTicker)
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stopTicker:
				return
			case <-ticker.C:
				c.mu.Lock()
				c.cond.Broadcast()
				c.mu.Unlock()
			}
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	for c.state != OpenUnpaired && c.state != OpenPaired && c.state != Closed {
		if c.running != nil && !c.running() {
			return ErrTimeout
		}
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		c.cond.Wait()
	}

	if c.state == Closed {
		return ErrTimeout
	}
	return nil
}

// OnEvent handles a CHANNEL_EVENT frame addressed to this channel, driving
// the state machine on successful acknowledgement and folding in the
// asynchronous events (search timeout, channel closed) described in
// spec.md §4.C.
func (c *Channel) OnEvent(f frame.Frame) {
	if len(f.Payload) < 2 {
		return
	}
	code := f.Payload[0]
	status := f.Payload[1]

	// Event codes arrive with code == 0x01 ("no specific response", an
	// asynchronous notification rather than a command ack).
	if code == 0x01 {
		switch status {
		case wire.EventRXSearchTimeout:
			c.mu.Lock()
			c.state = OpenUnpaired
			c.cond.Broadcast()
			c.mu.Unlock()
			c.log("channel %d: RX search timeout, back to OpenUnpaired", c.Number)
		case wire.EventChannelClosed:
			c.mu.Lock()
			c.state = Closed
			c.cond.Broadcast()
			c.mu.Unlock()
			c.log("channel %d: closed", c.Number)
		}
		return
	}

	if status != wire.ResponseNoError {
		c.log("channel %d: command 0x%02X failed, status=0x%02X", c.Number, code, status)
		return
	}

	c.mu.Lock()

	// SEARCH_TIMEOUT's ack never drives a transition by itself -- its
	// companion LP_SEARCH_TIMEOUT is sent immediately after it and is what
	// actually advances the sequence (spec.md §4.C) -- so it is exempt
	// from the pendingCmd gate below, which may already have moved on.
	if code == wire.MsgSearchTimeout {
		c.mu.Unlock()
		return
	}

	if code != c.pendingCmd {
		c.mu.Unlock()
		return
	}

	switch code {
	case wire.MsgAssignChannel:
		c.state = Assigned
		c.pendingCmd = wire.MsgChannelID
		c.mu.Unlock()
		c.sendChannelID()
	case wire.MsgChannelID:
		c.state = IDSet
		c.pendingCmd = wire.MsgSearchTimeout
		c.mu.Unlock()
		_ = c.send(wire.MsgSearchTimeout, []byte{c.Number, 0x00})
		c.mu.Lock()
		c.pendingCmd = wire.MsgLPSearchTimeout
		c.mu.Unlock()
		_ = c.send(wire.MsgLPSearchTimeout, []byte{c.Number, c.searchTimeout})
	case wire.MsgLPSearchTimeout:
		c.state = SearchTimeoutSet
		c.pendingCmd = wire.MsgChannelPeriod
		c.mu.Unlock()
		period := profile.Lookup(c.Type()).PeriodTicks
		payload := make([]byte, 2)
		binary.LittleEndian.PutUint16(payload, period)
		_ = c.send(wire.MsgChannelPeriod, append([]byte{c.Number}, payload...))
	case wire.MsgChannelPeriod:
		c.state = PeriodSet
		c.pendingCmd = wire.MsgChannelFrequency
		c.mu.Unlock()
		freq := profile.Lookup(c.Type()).RFFreqOffset
		_ = c.send(wire.MsgChannelFrequency, []byte{c.Number, freq})
	case wire.MsgChannelFrequency:
		c.state = FreqSet
		c.mu.Unlock()
		if c.extended {
			_ = c.send(wire.MsgLibConfig, []byte{wire.LibConfigExtendedChannelID})
		}
		c.mu.Lock()
		c.pendingCmd = wire.MsgOpenChannel
		c.mu.Unlock()
		_ = c.send(wire.MsgOpenChannel, []byte{c.Number})
	case wire.MsgOpenChannel:
		c.state = OpenUnpaired
		c.cond.Broadcast()
		c.mu.Unlock()
		c.log("channel %d: open (unpaired)", c.Number)
	default:
		c.mu.Unlock()
	}
}

func (c *Channel) sendChannelID() {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint16(payload[0:2], c.deviceFilter)
	devType := profile.Lookup(c.Type()).DeviceType
	payload[2] = devType
	payload[3] = 0x00 // tx_type: slave
	_ = c.send(wire.MsgChannelID, append([]byte{c.Number}, payload...))
}

// OnID parses a CHANNEL_ID message and returns the device id/type the
// dongle reported for this channel. The channel does not store them.
func (c *Channel) OnID(f frame.Frame) (id uint16, devType uint8, ok bool) {
	if len(f.Payload) < 4 {
		return 0, 0, false
	}
	id = binary.LittleEndian.Uint16(f.Payload[0:2])
	devType = f.Payload[2]
	return id, devType, true
}

// MarkPaired raises the state to OpenPaired on the first valid broadcast
// from a device, per the Open Question resolution in spec.md §9: OpenPaired
// is entered explicitly rather than left as a bare synonym.
func (c *Channel) MarkPaired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == OpenUnpaired {
		c.state = OpenPaired
		c.cond.Broadcast()
	}
}

// Ready reports whether the channel is in a state the poller and
// application-frame router consider "open" (OpenUnpaired or OpenPaired).
func (c *Channel) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == OpenUnpaired || c.state == OpenPaired
}

// Close requests CLOSE_CHANNEL. The state transitions to Closed once the
// dongle's EVENT_CHANNEL_CLOSED notification arrives via OnEvent.
func (c *Channel) Close() error {
	return c.send(wire.MsgCloseChannel, []byte{c.Number})
}
