// Package transporttest provides an in-memory transport.Transport for
// exercising the channel state machine and dispatcher without a dongle.
package transporttest

import (
	"sync"

	"github.com/herlein/antplus/internal/frame"
	"github.com/herlein/antplus/internal/transport"
)

// Mock is a transport.Transport backed by two in-memory queues: Sent
// records every frame the core transmitted, the inbound queue is drained by
// ReadFrames and is fed by test code via Deliver to simulate dongle
// responses.
type Mock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	sent    []frame.Frame
	inbound []frame.Frame
	closed  bool
	netKey  map[uint8][8]byte

	// OnSend, if set, is invoked synchronously from SendFrame before the
	// frame is recorded -- tests use it to script an automatic reply.
	OnSend func(f frame.Frame, m *Mock)
}

// New creates an empty mock transport.
func New() *Mock {
	m := &Mock{netKey: make(map[uint8][8]byte)}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *Mock) Open() error { return nil }

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cond.Broadcast()
	return nil
}

func (m *Mock) Reset() error {
	m.mu.Lock()
	m.inbound = nil
	m.mu.Unlock()
	return nil
}

func (m *Mock) SetNetworkKey(netNum uint8, key [8]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.netKey[netNum] = key
	return nil
}

func (m *Mock) SendFrame(f frame.Frame) error {
	if m.OnSend != nil {
		m.OnSend(f, m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return transport.ErrClosed
	}
	m.sent = append(m.sent, f)
	return nil
}

// ReadFrames returns and clears whatever is queued in Inbound, blocking
// until either a frame is available or the mock is closed. It never
// honors transport.ReadTimeout -- tests drive timing explicitly via Deliver.
func (m *Mock) ReadFrames() ([]frame.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.inbound) == 0 && !m.closed {
		m.cond.Wait()
	}
	if m.closed && len(m.inbound) == 0 {
		return nil, nil
	}
	out := m.inbound
	m.inbound = nil
	return out, nil
}

// Deliver queues frames for the next ReadFrames call, as if they had just
// arrived from the dongle.
func (m *Mock) Deliver(frames ...frame.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbound = append(m.inbound, frames...)
	m.cond.Broadcast()
}

// Sent returns a snapshot of every frame SendFrame has recorded, in order.
func (m *Mock) Sent() []frame.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]frame.Frame, len(m.sent))
	copy(out, m.sent)
	return out
}

// NetworkKey returns the key last programmed for netNum, for assertions.
func (m *Mock) NetworkKey(netNum uint8) [8]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.netKey[netNum]
}
