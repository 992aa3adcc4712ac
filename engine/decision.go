package engine

import (
	"ecoheat/devicestate"
	"ecoheat/models"
)

// SkipReason explains why a room received no decision this cycle.
type SkipReason string

const (
	SkipManualMode       SkipReason = "manual_mode"
	SkipNoReading        SkipReason = "no_reading"
	SkipNoActiveSchedule SkipReason = "no_active_schedule"
	SkipNoTimeSlot       SkipReason = "no_time_slot"
)

// Decision is either a skip with a reason or a set of actuator targets. A nil
// target means "leave as is".
type Decision struct {
	Skip  SkipReason
	Valve *bool
	Fan   *bool
}

func Skip(reason SkipReason) Decision { return Decision{Skip: reason} }

func (d Decision) Skipped() bool { return d.Skip != "" }

// Outcome is the metric label of the decision.
func (d Decision) Outcome() string {
	switch {
	case d.Skipped():
		return "skip_" + string(d.Skip)
	case d.Valve == nil && d.Fan == nil:
		return "hold"
	default:
		return "apply"
	}
}

// Decide computes actuator targets for a room under schedule authority. It
// only returns targets that differ from the current state.
//
// Heating uses a dead band of +/- threshold around the desired temperature:
// the valve opens strictly below desired-threshold, closes strictly above
// desired+threshold, and is left alone in between.
func Decide(st devicestate.DeviceState, temperature float64, slot models.TimeSlot, threshold float64) Decision {
	var d Decision

	if st.HeatingMode == models.ControlModeSchedule {
		target := st.ValveOn
		switch {
		case !slot.IsHeatingActive:
			target = false
		case temperature < slot.DesiredTemperature-threshold:
			target = true
		case temperature > slot.DesiredTemperature+threshold:
			target = false
		}
		if target != st.ValveOn {
			d.Valve = &target
		}
	}

	if st.FanMode == models.ControlModeSchedule && slot.IsFanActive != st.FanOn {
		target := slot.IsFanActive
		d.Fan = &target
	}
	return d
}
