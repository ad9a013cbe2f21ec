package logic

// Classify maps a moisture percentage to a soil condition.
// The thresholds are exclusive: percent == Low and percent == High are Optimal.
func Classify(percent uint8, th Thresholds) Condition {
	switch {
	case percent < th.Low:
		return ConditionDry
	case percent > th.High:
		return ConditionWet
	default:
		return ConditionOptimal
	}
}

// Indicator returns whether the indicator LED should be lit for this condition.
// Only dry soil asks for attention.
func (c Condition) Indicator() bool {
	return c == ConditionDry
}

// Label returns the human-readable status text for the condition.
func (c Condition) Label() string {
	switch c {
	case ConditionDry:
		return "DRY - Need Water!"
	case ConditionWet:
		return "WET - Too Much Water!"
	case ConditionOptimal:
		return "OPTIMAL"
	}
	return "UNKNOWN"
}

// PumpActionFor returns the pump instruction for a moisture percentage.
// The policy is stateless: there is no hysteresis or minimum run time.
func PumpActionFor(percent uint8, th Thresholds) PumpAction {
	switch {
	case percent < th.Low:
		return PumpActivate
	case percent > th.High:
		return PumpDeactivate
	default:
		return PumpNoChange
	}
}

// Decide runs a raw reading through calibration, classification and pump policy.
func Decide(raw uint16, cal Calibration, th Thresholds) Decision {
	percent := MoisturePercent(raw, cal)
	cond := Classify(percent, th)
	return Decision{
		Raw:       raw,
		Percent:   percent,
		Condition: cond,
		Command: Command{
			IndicatorOn: cond.Indicator(),
			Pump:        PumpActionFor(percent, th),
		},
	}
}
