package device

import (
	"encoding/binary"
	"time"

	"github.com/herlein/antplus/internal/frame"
	"github.com/herlein/antplus/internal/wire"
)

// Metric names emitted by the Fitness Equipment Controls decoder.
const (
	MetricGeneralInstSpeed   = "GENERAL_INST_SPEED"
	MetricSettingsCycleLen   = "SETTINGS_CYCLE_LENGTH"
	MetricSettingsIncline    = "SETTINGS_INCLINE"
	MetricSettingsResistance = "SETTINGS_RESISTANCE"
	MetricTrainerCadence     = "TRAINER_CADENCE"
	MetricTrainerAccPower    = "TRAINER_ACC_POWER"
	MetricTrainerInstPower   = "TRAINER_INST_POWER"
	MetricTrainerStatus      = "TRAINER_STATUS"
	MetricTrainerFlags       = "TRAINER_FLAGS"
	MetricTargetResistance   = "TRAINER_TARGET_RESISTANCE"
	MetricTargetPower        = "TRAINER_TARGET_POWER"
)

func (d *Device) parseFEC(f frame.Frame) {
	p := f.Payload
	if len(p) < 8 {
		return
	}

	page := p[0]
	switch page {
	case wire.PageFECGeneral:
		speed := binary.LittleEndian.Uint16(p[4:6])
		d.appendSample(MetricGeneralInstSpeed, float32(speed)*0.001, f.Timestamp)

	case wire.PageFECGeneralSettings:
		d.appendSample(MetricSettingsCycleLen, float32(p[3])*0.01, f.Timestamp)
		incline := int16(binary.LittleEndian.Uint16(p[4:6]))
		d.appendSample(MetricSettingsIncline, float32(incline)*0.01, f.Timestamp)
		d.appendSample(MetricSettingsResistance, float32(p[6])*0.5, f.Timestamp)

	case wire.PageFECTrainer:
		d.appendSample(MetricTrainerCadence, float32(p[2]), f.Timestamp)
		accPower := binary.LittleEndian.Uint16(p[3:5])
		d.appendSample(MetricTrainerAccPower, float32(accPower), f.Timestamp)
		instPower := uint16(p[5]) | uint16(p[6]&0x0F)<<8
		d.appendSample(MetricTrainerInstPower, float32(instPower), f.Timestamp)
		d.appendSample(MetricTrainerStatus, float32(p[6]>>4), f.Timestamp)
		d.appendSample(MetricTrainerFlags, float32(p[7]&0x0F), f.Timestamp)

	case wire.PageCommonStatus:
		d.parseFECCommonStatus(p, f.Timestamp)

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

// parseFECCommonStatus decodes the FE-C command-status page (0x47): byte 1
// is the echoed command id, byte 2 is its sequence number, byte 3 is zero on
// acceptance. A trainer resends the last status unsolicited, so a target
// metric is only appended the first time a given sequence number is seen
// (d.fecCmdSeq, sentinel -1) — otherwise every poll response would duplicate
// the prior sample.
func (d *Device) parseFECCommonStatus(p []byte, ts time.Time) {
	cmdID := p[1]
	seq := int16(p[2])
	accepted := p[3] == 0

	d.mu.Lock()
	seen := d.fecCmdSeq == seq
	d.fecCmdSeq = seq
	d.mu.Unlock()

	if seen || !accepted {
		return
	}

	switch cmdID {
	case wire.FECCommandResistance:
		d.appendSample(MetricTargetResistance, float32(p[7])*0.5, ts)
	case wire.FECCommandPower:
		d.appendSample(MetricTargetPower, float32(binary.LittleEndian.Uint16(p[6:8]))*0.25, ts)
	}
}
