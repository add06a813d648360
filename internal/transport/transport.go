// Package transport defines the Transport port: the boundary between the
// ANT protocol core and whatever moves bytes to and from the dongle (a USB
// bulk endpoint in production, an in-memory queue in tests).
package transport

import (
	"errors"
	"time"

	"github.com/herlein/antplus/internal/frame"
)

// Sentinel transport errors. Fatal to the session per spec.md §7.
var (
	ErrNotFound = errors.New("transport: device not found")
	ErrIOFailed = errors.New("transport: I/O failure")
	ErrClosed   = errors.New("transport: already closed")
)

// ReadTimeout bounds a single ReadFrames call. It only affects shutdown
// responsiveness: a timed-out read returns zero frames and a nil error.
const ReadTimeout = 256 * time.Millisecond

// ResetDwell is how long Reset waits for the dongle to re-initialize after
// SYSTEM_RESET before inbound bytes are trusted again.
const ResetDwell = 500 * time.Millisecond

// Transport is implemented externally for the USB driver or a test harness.
// The core treats partial reads and transient timeouts as empty-result
// success; it fails only on permanent I/O errors.
type Transport interface {
	// Open acquires the underlying link (USB claim, socket connect, ...).
	Open() error

	// Close releases the underlying link. Safe to call more than once.
	Close() error

	// Reset sends SYSTEM_RESET and waits ResetDwell for the dongle to
	// come back up, discarding inbound bytes observed during that window.
	Reset() error

	// SetNetworkKey programs the 8-byte ANT network key for netNum.
	SetNetworkKey(netNum uint8, key [8]byte) error

	// SendFrame writes one encoded frame to the dongle.
	SendFrame(f frame.Frame) error

	// ReadFrames blocks up to ReadTimeout and returns zero or more frames,
	// each stamped with its receive time.
	ReadFrames() ([]frame.Frame, error)
}
