// Package antusb implements transport.Transport over a USB ANT dongle's
// bulk endpoints, grounded on the teacher's pkg/yardstick.Device: claim the
// interface, resolve IN/OUT bulk endpoints, drain stale data on open. The
// framing differs (ANT has no '@' response marker; every read is scanned by
// frame.StreamScanner instead) so the Send/Recv request-response pairing the
// teacher's device.go does is replaced by independent send/read paths.
package antusb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"

	"github.com/herlein/antplus/internal/frame"
	"github.com/herlein/antplus/internal/transport"
	"github.com/herlein/antplus/internal/wire"
)

// Known ANT USB stick vendor/product pairs (Garmin and Dynastream sticks).
const (
	VendorID          = 0x0FCF
	ProductIDStick2   = 0x1008
	ProductIDStick3   = 0x1009
	ProductIDStickMini = 0x1004
)

// BulkEndpointNum is the endpoint number used for both directions on every
// known ANT USB stick generation.
const BulkEndpointNum = 1

// Selector identifies which USB ANT dongle to open, in the same small
// vocabulary the teacher's yardstick.DeviceSelector supports.
type Selector string

// Transport drives one USB ANT dongle's bulk endpoints.
type Transport struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	cfg    *gousb.Config
	iface  *gousb.Interface
	epIn   *gousb.InEndpoint
	epOut  *gousb.OutEndpoint
	scanner frame.StreamScanner

	mu     sync.Mutex
	closed bool

	log *logrus.Entry
}

// Open enumerates and claims a dongle matching sel. Pass "" to take the
// first ANT stick found, "#N" for the Nth (0-indexed), or "bus:addr".
func Open(sel Selector, log *logrus.Entry) (*Transport, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx := gousb.NewContext()

	dev, err := selectDevice(ctx, sel)
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("antusb: %w: %v", transport.ErrNotFound, err)
	}

	dev.SetAutoDetach(true)
	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("antusb: %w: claim config: %v", transport.ErrIOFailed, err)
	}
	iface, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("antusb: %w: claim interface: %v", transport.ErrIOFailed, err)
	}
	epIn, err := iface.InEndpoint(BulkEndpointNum)
	if err != nil {
		iface.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("antusb: %w: IN endpoint: %v", transport.ErrIOFailed, err)
	}
	epOut, err := iface.OutEndpoint(BulkEndpointNum)
	if err != nil {
		iface.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("antusb: %w: OUT endpoint: %v", transport.ErrIOFailed, err)
	}

	t := &Transport{
		ctx: ctx, dev: dev, cfg: cfg, iface: iface,
		epIn: epIn, epOut: epOut,
		log: log,
	}
	return t, nil
}

func selectDevice(ctx *gousb.Context, sel Selector) (*gousb.Device, error) {
	s := string(sel)

	opener := func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor != gousb.ID(VendorID) {
			return false
		}
		switch gousb.ID(desc.Product) {
		case gousb.ID(ProductIDStick2), gousb.ID(ProductIDStick3), gousb.ID(ProductIDStickMini):
			return true
		default:
			return false
		}
	}

	devices, err := ctx.OpenDevices(opener)
	if err != nil {
		return nil, fmt.Errorf("enumerate: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no ANT USB stick found")
	}

	closeAllBut := func(keep int) {
		for i, d := range devices {
			if i != keep {
				d.Close()
			}
		}
	}

	switch {
	case s == "":
		closeAllBut(0)
		return devices[0], nil

	case strings.HasPrefix(s, "#"):
		idx, err := strconv.Atoi(s[1:])
		if err != nil || idx < 0 || idx >= len(devices) {
			closeAllBut(-1)
			return nil, fmt.Errorf("invalid device index: %s", s)
		}
		closeAllBut(idx)
		return devices[idx], nil

	case strings.Contains(s, ":"):
		parts := strings.SplitN(s, ":", 2)
		bus, err1 := strconv.Atoi(parts[0])
		addr, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			closeAllBut(-1)
			return nil, fmt.Errorf("invalid bus:addr: %s", s)
		}
		for i, d := range devices {
			if d.Desc.Bus == bus && d.Desc.Address == addr {
				closeAllBut(i)
				return d, nil
			}
		}
		closeAllBut(-1)
		return nil, fmt.Errorf("no ANT stick at %s", s)

	default:
		closeAllBut(-1)
		return nil, fmt.Errorf("unrecognized selector: %s", s)
	}
}

// Open implements transport.Transport. The USB link is already claimed by
// the package-level Open constructor; this drains stale data left over from
// a previous session.
func (t *Transport) Open() error {
	buf := make([]byte, 512)
	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		n, err := t.epIn.ReadContext(ctx, buf)
		cancel()
		if err != nil || n == 0 {
			break
		}
	}
	return nil
}

// Close releases the USB interface, config, device, and context. Safe to
// call more than once.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	if t.iface != nil {
		t.iface.Close()
	}
	if t.cfg != nil {
		t.cfg.Close()
	}
	var err error
	if t.dev != nil {
		err = t.dev.Close()
	}
	if t.ctx != nil {
		t.ctx.Close()
	}
	return err
}

// Reset sends SYSTEM_RESET and waits transport.ResetDwell for the dongle to
// come back, discarding whatever arrives during that window.
func (t *Transport) Reset() error {
	if err := t.SendFrame(frame.Frame{MsgType: wire.MsgSystemReset, Channel: 0}); err != nil {
		return err
	}
	time.Sleep(transport.ResetDwell)

	buf := make([]byte, 512)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		n, err := t.epIn.ReadContext(ctx, buf)
		cancel()
		if err != nil || n == 0 {
			break
		}
	}
	return nil
}

// SetNetworkKey programs net number netNum's ANT network key.
func (t *Transport) SetNetworkKey(netNum uint8, key [8]byte) error {
	payload := append([]byte{netNum}, key[:]...)
	return t.SendFrame(frame.Frame{MsgType: wire.MsgSetNetwork, Channel: 0, Payload: payload})
}

// SendFrame writes one encoded frame to the dongle's OUT bulk endpoint.
// Writes are serialized by t.mu.
func (t *Transport) SendFrame(f frame.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return transport.ErrClosed
	}

	buf := frame.Encode(f)
	ctx, cancel := context.WithTimeout(context.Background(), transport.ReadTimeout*4)
	defer cancel()
	n, err := t.epOut.WriteContext(ctx, buf)
	if err != nil {
		t.log.WithError(err).Warn("antusb: write failed")
		return fmt.Errorf("antusb: %w: %v", transport.ErrIOFailed, err)
	}
	if n != len(buf) {
		return fmt.Errorf("antusb: %w: short write %d/%d", transport.ErrIOFailed, n, len(buf))
	}
	return nil
}

// ReadFrames reads one bulk transfer and scans it for complete frames,
// timing out harmlessly (zero frames, nil error) if nothing arrived.
func (t *Transport) ReadFrames() ([]frame.Frame, error) {
	buf := make([]byte, 512)
	ctx, cancel := context.WithTimeout(context.Background(), transport.ReadTimeout)
	defer cancel()

	n, err := t.epIn.ReadContext(ctx, buf)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("antusb: %w: %v", transport.ErrIOFailed, err)
	}
	if n == 0 {
		return nil, nil
	}

	frames := t.scanner.Scan(buf[:n])
	now := time.Now()
	for i := range frames {
		frames[i].Timestamp = now
	}
	return frames, nil
}
