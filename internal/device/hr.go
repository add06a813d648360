package device

import (
	"encoding/binary"

	"github.com/herlein/antplus/internal/frame"
	"github.com/herlein/antplus/internal/wire"
)

// Metric names emitted by the Heart Rate decoder.
const (
	MetricHeartRate   = "HEARTRATE"
	MetricHBEventTime = "HB_EVENT_TIME"
	MetricHBCount     = "HB_COUNT"
	MetricRRInterval  = "RR_INTERVAL"
)

// rrIntervalScale converts 1/1024 s ticks to milliseconds. spec.md §9 flags
// the reference implementation's integer `1000/1024` (== 0) as a bug; this
// core uses the floating-point form.
const rrIntervalScale = 1000.0 / 1024.0

func (d *Device) parseHR(f frame.Frame) {
	p := f.Payload
	if len(p) < 8 {
		return
	}

	pageByte := p[0] & 0x7F
	toggle := p[0] & 0x80

	d.mu.Lock()
	prevToggle := d.hrToggleBit
	if prevToggle != 0xFF && prevToggle != toggle {
		d.hrToggled = true
	}
	d.hrToggleBit = toggle
	d.mu.Unlock()

	d.appendSample(MetricHeartRate, float32(p[7]), f.Timestamp)

	hbEventTime := binary.LittleEndian.Uint16(p[4:6])
	hbCount := p[6]
	d.appendSample(MetricHBEventTime, float32(hbEventTime), f.Timestamp)
	d.appendSample(MetricHBCount, float32(hbCount), f.Timestamp)

	switch pageByte {
	case wire.PageHRPrevious:
		prevEventTime := binary.LittleEndian.Uint16(p[2:4])
		rr := float32(hbEventTime-prevEventTime) * rrIntervalScale
		d.appendSample(MetricRRInterval, rr, f.Timestamp)
	case wire.PageHRInfo:
		meta := map[string]float32{}
		applyCommonDataPage(p, meta)
		for k, v := range meta {
			d.setMetadata(k, v)
		}
	case wire.PageHRMfgInfo:
		meta := map[string]float32{}
		applyCommonInfoPage(p, meta)
		for k, v := range meta {
			d.setMetadata(k, v)
		}
	}
}

// Toggled reports whether this device's HR toggle bit has ever flipped
// since it started being observed (spec.md §4.E: "some streams only emit
// RR data after toggle").
func (d *Device) Toggled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.hrToggled
}
