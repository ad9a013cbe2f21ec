package logic

// MoisturePercent maps a raw analog reading to a moisture percentage in [0,100].
// Readings at or beyond the dry reference are 0%, at or beyond the wet
// reference 100%, and anything between is interpolated linearly (truncated).
func MoisturePercent(raw uint16, cal Calibration) uint8 {
	if raw >= cal.DryReference {
		return 0
	}
	if raw <= cal.WetReference {
		return 100
	}

	// uint32 holds 100 * 65535 without overflow
	span := uint32(cal.DryReference) - uint32(cal.WetReference)
	offset := uint32(cal.DryReference) - uint32(raw)
	percent := offset * 100 / span
	if percent > 100 {
		percent = 100
	}
	return uint8(percent)
}
