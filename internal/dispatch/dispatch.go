// Package dispatch wires a transport.Transport to a set of channelsm.Channel
// state machines and device.Registry instances: a listener goroutine pulls
// raw frames off the wire and routes each one straight to its channel's
// sub-queue (there is no separate processor goroutine), one worker
// goroutine per channel drains that
// sub-queue into the state machine and device decoders, and a poller
// goroutine periodically requests data pages from Fitness Equipment
// channels. Grounded on the teacher's pkg/scanner.scanner: a running flag
// and stopChan guarded by a mutex, a ticker-driven loop for periodic work,
// and a DebugLog-style callback for diagnostics (here via logrus instead of
// a bare callback, per SPEC_FULL.md's ambient-stack section).
package dispatch

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/herlein/antplus/internal/channelsm"
	"github.com/herlein/antplus/internal/device"
	"github.com/herlein/antplus/internal/frame"
	"github.com/herlein/antplus/internal/profile"
	"github.com/herlein/antplus/internal/transport"
	"github.com/herlein/antplus/internal/wire"
)

// channelWorker pairs one channelsm.Channel with the device registry that
// collects everything heard on it and the sub-queue that feeds it frames
// in order.
type channelWorker struct {
	ch       *channelsm.Channel
	registry *device.Registry
	queue    *messageQueue
}

// Dispatcher owns the transport and every channel worker for one ANT
// session, plus the listener and poller goroutines; the listener moves
// frames from the wire into the per-channel queues.
type Dispatcher struct {
	transport transport.Transport
	log       *logrus.Entry

	mu             sync.RWMutex
	running        bool
	stopCh         chan struct{}
	pollIntervalMS int

	workers []*channelWorker
	wg      sync.WaitGroup
}

// New creates a Dispatcher over t with n channel slots, each on network
// netNum. pollIntervalMS governs how often the poller requests data pages
// from Fitness Equipment channels.
func New(t transport.Transport, n int, netNum uint8, extended bool, pollIntervalMS int, log *logrus.Entry) *Dispatcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	d := &Dispatcher{
		transport:      t,
		log:            log,
		pollIntervalMS: pollIntervalMS,
	}

	running := func() bool { return d.isRunning() }
	debug := func(format string, args ...interface{}) { d.log.Debugf(format, args...) }

	for i := 0; i < n; i++ {
		w := &channelWorker{
			ch:       channelsm.New(uint8(i), netNum, t, extended, running, debug),
			registry: device.NewRegistry(),
			queue:    newMessageQueue(defaultQueueCapacity),
		}
		d.workers = append(d.workers, w)
	}
	return d
}

func (d *Dispatcher) isRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// Channel returns the state machine for channel i, or nil if out of range.
func (d *Dispatcher) Channel(i int) *channelsm.Channel {
	if i < 0 || i >= len(d.workers) {
		return nil
	}
	return d.workers[i].ch
}

// Devices returns the devices observed so far on channel i.
func (d *Dispatcher) Devices(i int) []*device.Device {
	if i < 0 || i >= len(d.workers) {
		return nil
	}
	return d.workers[i].registry.Devices()
}

// ChannelCount returns the number of channel slots this dispatcher manages.
func (d *Dispatcher) ChannelCount() int {
	return len(d.workers)
}

// Start launches the listener and poller goroutines along with one worker
// goroutine per channel. Calling Start on a running dispatcher does nothing
// and returns nil.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.mu.Unlock()

	d.wg.Add(2 + len(d.workers))
	go d.listenLoop()
	go d.pollLoop()
	for _, w := range d.workers {
		go d.channelLoop(w)
	}
	return nil
}

// Stop signals every goroutine to exit and waits for them to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stopCh)
	d.mu.Unlock()

	for _, w := range d.workers {
		w.queue.close()
	}
	d.wg.Wait()
}

// listenLoop reads raw frames off the transport and routes each to its
// channel's sub-queue. CHANNEL_ID and CHANNEL_EVENT frames, as well as
// broadcast/ack application data, are all routed the same way: by the
// Channel field every ANT message carries.
func (d *Dispatcher) listenLoop() {
	defer d.wg.Done()
	for d.isRunning() {
		frames, err := d.transport.ReadFrames()
		if err != nil {
			d.log.WithError(err).Error("dispatch: transport read failed, stopping session")
			// Stop waits for this goroutine, so it must run on another one.
			go d.Stop()
			return
		}
		for _, f := range frames {
			d.route(f)
		}
	}
}

func (d *Dispatcher) route(f frame.Frame) {
	if int(f.Channel) >= len(d.workers) {
		return
	}
	d.workers[f.Channel].queue.push(f)
}

// channelLoop drains one channel's sub-queue, feeding state-machine events
// to channelsm and application data to the device registry.
func (d *Dispatcher) channelLoop(w *channelWorker) {
	defer d.wg.Done()
	for {
		f, ok := w.queue.pop()
		if !ok {
			return
		}

		switch f.MsgType {
		case wire.MsgChannelEvent:
			w.ch.OnEvent(f)
		case wire.MsgChannelID:
			if id, devType, ok := w.ch.OnID(f); ok {
				d.log.WithFields(logrus.Fields{
					"channel": w.ch.Number,
					"device":  id,
					"type":    devType,
				}).Info("dispatch: device id reported")
			}
		case wire.MsgBroadcastData, wire.MsgAckData:
			d.handleApplicationData(w, f)
		}
	}
}

func (d *Dispatcher) handleApplicationData(w *channelWorker, f frame.Frame) {
	kind := w.ch.Type()
	id := frame.DeviceID{}
	if f.DeviceID != nil {
		id = *f.DeviceID
	}
	if !id.IsValid() {
		return
	}

	dev := w.registry.GetOrCreate(id, kind)
	dev.Parse(f)
	w.ch.MarkPaired()
}

// pollLoop periodically requests a data page from every Fitness Equipment
// channel that has reached an open state, standing in for a head unit's
// display refresh cadence (spec.md §4.D item 6).
func (d *Dispatcher) pollLoop() {
	defer d.wg.Done()

	d.mu.RLock()
	interval := time.Duration(d.pollIntervalMS) * time.Millisecond
	d.mu.RUnlock()
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.pollOnce()
		}
	}
}

func (d *Dispatcher) pollOnce() {
	for _, w := range d.workers {
		if w.ch.Type() != profile.FitnessEquipment || !w.ch.Ready() {
			continue
		}
		payload := []byte{
			wire.PageRequestData,
			0xFF, 0xFF, 0xFF, 0xFF,
			0x81, // transmission response: 1 extra transmission requested
			wire.PageCommonStatus,
			wire.RequestCommandTypeDataPage,
		}
		if err := d.transport.SendFrame(frame.Frame{
			MsgType: wire.MsgAckData,
			Channel: w.ch.Number,
			Payload: payload,
		}); err != nil {
			d.log.WithError(err).Warn("dispatch: poll request failed")
		}
	}
}
