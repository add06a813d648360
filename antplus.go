// Package antplus is the facade over an ANT+ acquisition session: bring up
// the dongle, configure and open channels against Heart Rate, Power, and
// Fitness Equipment devices, and read back each device's time series and
// metadata as frames arrive. Grounded on the teacher's pkg/scanner.Scanner
// interface (construct from options or a config file, Start/Stop lifecycle,
// accessors for collected state) adapted from a single RF scanner to a
// multi-channel ANT+ session.
package antplus

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/herlein/antplus/internal/antconfig"
	"github.com/herlein/antplus/internal/channelsm"
	"github.com/herlein/antplus/internal/device"
	"github.com/herlein/antplus/internal/dispatch"
	"github.com/herlein/antplus/internal/frame"
	"github.com/herlein/antplus/internal/profile"
	"github.com/herlein/antplus/internal/transport"
	"github.com/herlein/antplus/internal/wire"
)

// Re-exported so callers don't need to import internal/profile directly.
type ChannelType = profile.ChannelType

const (
	ChannelHeartRate        = profile.HeartRate
	ChannelPower            = profile.Power
	ChannelFitnessEquipment = profile.FitnessEquipment
)

// Device is the public alias for an observed sensor's accessors.
type Device = device.Device

// Sample is one (value, timestamp) point in a device metric's time series.
type Sample = device.Sample

var (
	// ErrNotInitialized is returned by session methods called before Init.
	ErrNotInitialized = errors.New("antplus: session not initialized")

	// ErrAlreadyInitialized is returned by a second call to Init.
	ErrAlreadyInitialized = errors.New("antplus: session already initialized")
)

// Facade is a single ANT+ acquisition session bound to one transport.
type Facade struct {
	transport transport.Transport
	opts      antconfig.Options
	dispatch  *dispatch.Dispatcher
	log       *logrus.Entry

	initialized bool
	startTime   time.Time
}

// New creates a session over t with opts. Call Init to bring the dongle up
// and Start to begin dispatching frames.
func New(t transport.Transport, opts antconfig.Options) (*Facade, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Facade{
		transport: t,
		opts:      opts,
		log:       logrus.NewEntry(logrus.StandardLogger()),
	}, nil
}

// NewFromConfigFile creates a session over t using options loaded from
// path (see antconfig.LoadFromFile).
func NewFromConfigFile(t transport.Transport, path string) (*Facade, error) {
	opts, err := antconfig.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	return New(t, opts)
}

// SetLogger overrides the facade's logrus entry, e.g. to attach fields
// identifying this session in a multi-session process.
func (f *Facade) SetLogger(log *logrus.Entry) {
	f.log = log
}

// Init opens the transport, resets the dongle, and programs the session's
// network key. It must be called exactly once before Start.
func (f *Facade) Init() error {
	if f.initialized {
		return ErrAlreadyInitialized
	}

	if err := f.transport.Open(); err != nil {
		return fmt.Errorf("antplus: open transport: %w", err)
	}
	if err := f.transport.Reset(); err != nil {
		return fmt.Errorf("antplus: reset dongle: %w", err)
	}
	if err := f.transport.SetNetworkKey(0, f.opts.NetworkKey); err != nil {
		return fmt.Errorf("antplus: set network key: %w", err)
	}

	f.dispatch = dispatch.New(
		f.transport,
		f.opts.ChannelCount,
		0,
		f.opts.ExtendedMessages,
		f.opts.PollIntervalMS,
		f.log,
	)

	f.initialized = true
	f.startTime = time.Now()
	return nil
}

// Start launches the dispatcher's background goroutines. Init must have
// been called first.
func (f *Facade) Start() error {
	if !f.initialized {
		return ErrNotInitialized
	}
	return f.dispatch.Start()
}

// Shutdown closes the transport and stops the dispatcher. Safe to call even
// if Init was never called. The transport is closed first so the listener
// goroutine's in-flight ReadFrames call (which may block far longer than
// transport.ReadTimeout on some implementations) is guaranteed to return.
func (f *Facade) Shutdown() error {
	err := f.transport.Close()
	if f.dispatch != nil {
		f.dispatch.Stop()
	}
	return err
}

// ChannelCount returns the number of channel slots this session manages.
func (f *Facade) ChannelCount() int {
	if f.dispatch == nil {
		return f.opts.ChannelCount
	}
	return f.dispatch.ChannelCount()
}

// OpenChannel brings channel i up against a device of the given type,
// optionally filtered to a specific device id (0 = wildcard/background
// scan). It blocks until the channel opens or its start timeout elapses.
func (f *Facade) OpenChannel(i int, t ChannelType, deviceID uint16, scanning bool) error {
	ch := f.Channel(i)
	if ch == nil {
		return fmt.Errorf("antplus: channel %d out of range", i)
	}
	if f.opts.SearchTimeout != 0 {
		ch.SetSearchTimeout(f.opts.SearchTimeout)
	}
	if f.opts.ChannelStartTimeoutS > 0 {
		ch.SetStartTimeout(time.Duration(f.opts.ChannelStartTimeoutS) * time.Second)
	}
	return ch.Start(t, deviceID, scanning, true)
}

// Channel returns the state machine for channel i, or nil if out of range
// or the session has not been initialized.
func (f *Facade) Channel(i int) *channelsm.Channel {
	if f.dispatch == nil {
		return nil
	}
	return f.dispatch.Channel(i)
}

// CloseChannel requests that channel i close.
func (f *Facade) CloseChannel(i int) error {
	ch := f.Channel(i)
	if ch == nil {
		return fmt.Errorf("antplus: channel %d out of range", i)
	}
	return ch.Close()
}

// Devices returns every device observed on channel i so far.
func (f *Facade) Devices(i int) []*Device {
	if f.dispatch == nil {
		return nil
	}
	return f.dispatch.Devices(i)
}

// SetPollInterval changes how often the poller requests data pages from
// open Fitness Equipment channels. It has effect only when called before
// Init, which hands the interval to the dispatcher.
func (f *Facade) SetPollInterval(ms int) {
	f.opts.PollIntervalMS = ms
}

// StartTime returns when Init completed, the reference point for
// wall-clock-relative logging.
func (f *Facade) StartTime() time.Time {
	return f.startTime
}

// Version requests the dongle's capabilities/version string (spec.md's
// supplemented VERSION message handling, carried over from
// original_source/'s startup handshake). It sends REQUEST_MESSAGE for
// MESSAGE_VERSION and waits briefly for the reply; call it between Init and
// Start, since afterward the dispatcher's listener owns all transport reads.
func (f *Facade) Version() (string, error) {
	if !f.initialized {
		return "", ErrNotInitialized
	}
	req := frame.Frame{
		MsgType: wire.MsgReqMessage,
		Channel: 0,
		Payload: []byte{0x00, wire.MsgVersion},
	}
	if err := f.transport.SendFrame(req); err != nil {
		return "", fmt.Errorf("antplus: request version: %w", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		frames, err := f.transport.ReadFrames()
		if err != nil {
			return "", fmt.Errorf("antplus: read version reply: %w", err)
		}
		for _, fr := range frames {
			if fr.MsgType == wire.MsgVersion && len(fr.Payload) > 0 {
				return string(fr.Payload), nil
			}
		}
	}
	return "", errors.New("antplus: timed out waiting for version reply")
}
