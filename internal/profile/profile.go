// Package profile holds the fixed per-channel-type constant triples used
// when bringing up a channel: device type code, message period, and RF
// frequency offset. It plays the role the teacher's pkg/profiles package
// plays for its sub-GHz band presets, but ANT+ has exactly four channel
// variants instead of an open-ended set of radio configurations, so this
// package is a lookup table rather than a family of constructor functions.
package profile

// ChannelType is a tagged variant over the four channel kinds ANT+ defines
// for this core (spec.md §3). Pair is listed in the table, but the facade
// and the CLI tools only expose the other three kinds.
type ChannelType int

const (
	None ChannelType = iota
	HeartRate
	Power
	FitnessEquipment
	Pair
)

// String implements fmt.Stringer for log lines and error messages.
func (t ChannelType) String() string {
	switch t {
	case HeartRate:
		return "HeartRate"
	case Power:
		return "Power"
	case FitnessEquipment:
		return "FitnessEquipment"
	case Pair:
		return "Pair"
	default:
		return "None"
	}
}

// Profile is the fixed configuration triple associated with a ChannelType.
type Profile struct {
	DeviceType    uint8
	PeriodTicks   uint16 // 32768 Hz ticks
	RFFreqOffset  uint8  // offset from 2400 MHz, in MHz
}

var profiles = map[ChannelType]Profile{
	HeartRate:        {DeviceType: 0x78, PeriodTicks: 0x1F86, RFFreqOffset: 0x39},
	Power:            {DeviceType: 0x0B, PeriodTicks: 0x1FF6, RFFreqOffset: 0x39},
	FitnessEquipment: {DeviceType: 0x11, PeriodTicks: 0x2000, RFFreqOffset: 0x39},
	Pair:             {DeviceType: 0x00, PeriodTicks: 0x0000, RFFreqOffset: 0x39},
}

// Lookup returns the fixed triple for a channel type. The zero value is
// returned for None, which never drives a channel open sequence.
func Lookup(t ChannelType) Profile {
	return profiles[t]
}
