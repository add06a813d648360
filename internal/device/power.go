package device

import (
	"encoding/binary"

	"github.com/herlein/antplus/internal/frame"
	"github.com/herlein/antplus/internal/wire"
)

// Metric names emitted by the Power Meter decoder.
const (
	MetricBalance    = "BALANCE"
	MetricCadence    = "CADENCE"
	MetricAccPower   = "ACC_POWER"
	MetricInstPower  = "INST_POWER"
	MetricLeftTE     = "LEFT_TE"
	MetricRightTE    = "RIGHT_TE"
	MetricLeftPS     = "LEFT_PS"
	MetricRightPS    = "RIGHT_PS"
	MetricNBatteries = "N_BATTERIES"
	MetricOpTime     = "OPERATING_TIME"
	MetricBattVolt   = "BATTERY_VOLTAGE"

	MetricCrankLength  = "CRANK_LENGTH"
	MetricCrankStatus  = "CRANK_STATUS"
	MetricSensorStatus = "SENSOR_STATUS"
	MetricPeakTorque   = "PEAK_TORQUE_THRESHOLD"
)

func (d *Device) parsePower(f frame.Frame) {
	p := f.Payload
	if len(p) < 8 {
		return
	}

	page := p[0]
	switch page {
	case wire.PagePowerStandard:
		if p[2]&0x80 != 0 && p[2] != 0xFF {
			d.appendSample(MetricBalance, float32(p[2]&0x7F), f.Timestamp)
		}
		d.appendSample(MetricCadence, float32(p[3]), f.Timestamp)
		d.appendSample(MetricAccPower, float32(binary.LittleEndian.Uint16(p[4:6])), f.Timestamp)
		d.appendSample(MetricInstPower, float32(binary.LittleEndian.Uint16(p[6:8])), f.Timestamp)

	case wire.PagePowerTEPS:
		d.appendSample(MetricLeftTE, float32(p[2])*0.5, f.Timestamp)
		d.appendSample(MetricRightTE, float32(p[3])*0.5, f.Timestamp)
		d.appendSample(MetricLeftPS, float32(p[4])*0.5, f.Timestamp)
		d.appendSample(MetricRightPS, float32(p[5])*0.5, f.Timestamp)

	case wire.PagePowerBattery:
		d.appendSample(MetricNBatteries, float32(p[2]&0x0F), f.Timestamp)
		opTime := uint32(p[3]) | uint32(p[4])<<8 | uint32(p[5])<<16
		d.appendSample(MetricOpTime, float32(opTime), f.Timestamp)
		d.appendSample(MetricBattVolt, float32(p[6])/256.0, f.Timestamp)

	case wire.PagePowerParams:
		sub := p[1]
		switch sub {
		case wire.PagePowerParamSubCrank:
			d.appendSample(MetricCrankLength, float32(p[4])*0.5+110.0, f.Timestamp)
			d.appendSample(MetricCrankStatus, float32(p[5]&0x03), f.Timestamp)
			d.appendSample(MetricSensorStatus, float32((p[6]>>3)&0x01), f.Timestamp)
		case wire.PagePowerParamSubTorque:
			d.appendSample(MetricPeakTorque, float32(p[7])*0.5, f.Timestamp)
		}

	case wire.PageCommonData:
		meta := map[string]float32{}
		applyCommonDataPage(p, meta)
		for k, v := range meta {
			d.setMetadata(k, v)
		}
	case wire.PageCommonInfo:
		meta := map[string]float32{}
		applyCommonInfoPage(p, meta)
		for k, v := range meta {
			d.setMetadata(k, v)
		}
	}
}
