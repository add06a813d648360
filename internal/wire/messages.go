// Package wire holds the ANT message-type codes, channel-event codes, and
// application-layer page numbers shared by the channel state machine, the
// dispatcher, and the device decoders. None of these values are codec
// concerns (that's internal/frame); they are the protocol's vocabulary.
package wire

// Message type codes (spec.md §6). Direction is noted per constant.
const (
	MsgVersion          = 0x3E // both
	MsgChannelEvent     = 0x40 // in
	MsgUnassignChannel  = 0x41 // out
	MsgAssignChannel    = 0x42 // out
	MsgChannelPeriod    = 0x43 // out
	MsgSearchTimeout    = 0x44 // out
	MsgChannelFrequency = 0x45 // out
	MsgSetNetwork       = 0x46 // out
	MsgSystemReset      = 0x4A // out
	MsgOpenChannel      = 0x4B // out
	MsgCloseChannel     = 0x4C // out
	MsgReqMessage       = 0x4D // out
	MsgBroadcastData    = 0x4E // in
	MsgAckData          = 0x4F // both
	MsgChannelID        = 0x51 // both
	MsgLPSearchTimeout  = 0x63 // out
	MsgLibConfig        = 0x6E // out
	MsgNotifStartup     = 0x6F // in
)

// Event codes carried in payload[1] of a CHANNEL_EVENT message when
// payload[0] == 0x01 (the "no specific channel" event wrapper).
const (
	EventRXSearchTimeout    = 0x01
	EventRXFail             = 0x02
	EventTX                 = 0x03
	EventTransferRXFailed   = 0x04
	EventTransferTXComplete = 0x05
	EventTransferTXFailed   = 0x06
	EventChannelClosed      = 0x07
)

// ResponseNoError is the success code in a CHANNEL_EVENT acknowledgement's
// second payload byte.
const ResponseNoError = 0x00

// LibConfigExtendedChannelID enables extended channel-ID reporting
// (device discovery on a wildcard id filter) before OPEN_CHANNEL.
const LibConfigExtendedChannelID = 0x80

// AssignChannel ext_flags bit requesting background scan mode.
const AssignExtFlagBackgroundScan = 0x01

// Application-layer page numbers shared across device profiles.
const (
	PageCommonData   = 0x50
	PageCommonInfo   = 0x51
	PageCommonStatus = 0x47

	PageHRDefault  = 0x00
	PageHRPrevious = 0x04
	PageHRInfo     = 0x02
	PageHRMfgInfo  = 0x03

	PagePowerStandard = 0x10
	PagePowerParams   = 0x02
	PagePowerTEPS     = 0x13
	PagePowerBattery  = 0x52

	PagePowerParamSubCrank  = 0x01
	PagePowerParamSubTorque = 0x02

	PageFECGeneral         = 0x10
	PageFECGeneralSettings = 0x11
	PageFECTrainer         = 0x19

	FECCommandResistance = 0x30
	FECCommandPower      = 0x31

	PageRequestData = 0x46

	RequestCommandTypeDataPage = 0x01
)
