package device

import "encoding/binary"

// applyCommonDataPage extracts the vendor's hardware revision, manufacturer
// id, and model number, shared across every device profile's "manufacturer
// info" page (the generic COMMON_DATA page 0x50, and the profile-local
// equivalents each profile exposes under its own small page numbers, e.g.
// HR_INFO 0x02). Grounded on spec.md §4.E's note that common metadata
// extraction is shared via a free function rather than duplicated per
// decoder.
func applyCommonDataPage(payload []byte, meta map[string]float32) {
	if len(payload) < 8 {
		return
	}
	meta["HW_REVISION"] = float32(payload[3])
	meta["MANUFACTURER_ID"] = float32(binary.LittleEndian.Uint16(payload[4:6]))
	meta["MODEL_NUMBER"] = float32(binary.LittleEndian.Uint16(payload[6:8]))
}

// applyCommonInfoPage extracts the serial number, shared across every
// profile's "product info" page (generic COMMON_INFO 0x51, and profile-local
// equivalents such as HR_MF_INFO 0x03).
func applyCommonInfoPage(payload []byte, meta map[string]float32) {
	if len(payload) < 8 {
		return
	}
	meta["SERIAL_NUMBER"] = float32(binary.LittleEndian.Uint32(payload[4:8]))
}
