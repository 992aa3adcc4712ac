package engine

import (
	"testing"

	"ecoheat/devicestate"
	"ecoheat/models"
)

func TestDecideHeatingHysteresis(t *testing.T) {
	slot := models.TimeSlot{DesiredTemperature: 22, IsHeatingActive: true, IsFanActive: false}

	tests := []struct {
		name    string
		valveOn bool
		temp    float64
		want    *bool
	}{
		{"inside band stays off", false, 21.0, nil},
		{"inside band stays on", true, 21.0, nil},
		{"below band opens", false, 19.9, boolPtr(true)},
		{"below band already open", true, 19.9, nil},
		{"above band closes", true, 24.1, boolPtr(false)},
		{"lower edge is inside", false, 20.0, nil},
		{"upper edge is inside", true, 24.0, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := devicestate.Default(1)
			st.ValveOn = tc.valveOn
			d := Decide(st, tc.temp, slot, 2)
			if !sameTarget(d.Valve, tc.want) {
				t.Fatalf("valve: got %s, want %s", fmtTarget(d.Valve), fmtTarget(tc.want))
			}
			if d.Fan != nil {
				t.Errorf("fan should be untouched, got %s", fmtTarget(d.Fan))
			}
		})
	}
}

func TestDecideInactiveHeatingClosesValve(t *testing.T) {
	slot := models.TimeSlot{DesiredTemperature: 22, IsHeatingActive: false}
	st := devicestate.Default(1)
	st.ValveOn = true

	d := Decide(st, 10, slot, 2)
	if !sameTarget(d.Valve, boolPtr(false)) {
		t.Fatalf("valve: got %s, want off", fmtTarget(d.Valve))
	}
}

func TestDecideRespectsManualActuators(t *testing.T) {
	slot := models.TimeSlot{DesiredTemperature: 22, IsHeatingActive: true, IsFanActive: true}

	st := devicestate.Default(1)
	st.HeatingMode = models.ControlModeManual
	d := Decide(st, 10, slot, 2)
	if d.Valve != nil {
		t.Errorf("manual heating: valve should be untouched, got %s", fmtTarget(d.Valve))
	}
	if !sameTarget(d.Fan, boolPtr(true)) {
		t.Errorf("schedule fan: got %s, want on", fmtTarget(d.Fan))
	}

	st = devicestate.Default(1)
	st.FanMode = models.ControlModeManual
	d = Decide(st, 10, slot, 2)
	if d.Fan != nil {
		t.Errorf("manual fan: fan should be untouched, got %s", fmtTarget(d.Fan))
	}
	if !sameTarget(d.Valve, boolPtr(true)) {
		t.Errorf("schedule heating: got %s, want on", fmtTarget(d.Valve))
	}
}

func TestDecisionOutcome(t *testing.T) {
	if got := Skip(SkipNoReading).Outcome(); got != "skip_no_reading" {
		t.Errorf("skip outcome = %q", got)
	}
	if got := (Decision{}).Outcome(); got != "hold" {
		t.Errorf("empty outcome = %q", got)
	}
	if got := (Decision{Fan: boolPtr(false)}).Outcome(); got != "apply" {
		t.Errorf("apply outcome = %q", got)
	}
}

func boolPtr(b bool) *bool { return &b }

func sameTarget(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func fmtTarget(b *bool) string {
	switch {
	case b == nil:
		return "unchanged"
	case *b:
		return "on"
	default:
		return "off"
	}
}
