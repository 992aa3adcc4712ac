// Package simulator emulates the room controllers: it publishes telemetry and
// answers valve and fan commands the way the devices do.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"sync"

	"github.com/looplab/fsm"
)

// Valve stepper states.
const (
	ValveClosed  = "closed"
	ValveOpening = "opening"
	ValveOpen    = "open"
	ValveClosing = "closing"
)

const (
	eventRotateCCW = "rotate_ccw"
	eventRotateCW  = "rotate_cw"
	eventFinish    = "finish"
)

// ErrNotRotating is returned when a rotation is completed that never started.
var ErrNotRotating = errors.New("valve stepper is not rotating")

// Device is one simulated room controller.
type Device struct {
	RoomID uint

	mu          sync.Mutex
	valve       *fsm.FSM
	fanOn       bool
	battery     int
	signal      string
	pinned      *float64
	lastReading Reading
}

// Reading is one round of sensor values as published.
type Reading struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Presence    bool    `json:"presence"`
}

// Snapshot is the externally visible state of a device.
type Snapshot struct {
	RoomID      uint     `json:"roomId"`
	Valve       string   `json:"valve"`
	FanOn       bool     `json:"fanOn"`
	Battery     int      `json:"battery"`
	Signal      string   `json:"signal"`
	Pinned      *float64 `json:"pinnedTemperature,omitempty"`
	LastReading Reading  `json:"lastReading"`
}

func NewDevice(roomID uint) *Device {
	d := &Device{RoomID: roomID, battery: 100, signal: "Strong"}
	d.valve = fsm.NewFSM(
		ValveClosed,
		fsm.Events{
			{Name: eventRotateCCW, Src: []string{ValveClosed, ValveClosing}, Dst: ValveOpening},
			{Name: eventRotateCW, Src: []string{ValveOpen, ValveOpening}, Dst: ValveClosing},
			{Name: eventFinish, Src: []string{ValveOpening}, Dst: ValveOpen},
			{Name: eventFinish, Src: []string{ValveClosing}, Dst: ValveClosed},
		},
		fsm.Callbacks{},
	)
	return d
}

// StartRotation begins moving the valve. It reports false when the valve
// already rests in the requested position.
func (d *Device) StartRotation(open bool) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	target, moving, event := ValveClosed, ValveClosing, eventRotateCW
	if open {
		target, moving, event = ValveOpen, ValveOpening, eventRotateCCW
	}
	switch {
	case d.valve.Is(target):
		return false, nil
	case d.valve.Is(moving):
		return true, nil
	}
	if err := d.valve.Event(context.Background(), event); err != nil {
		return false, fmt.Errorf("start rotation: %w", err)
	}
	return true, nil
}

// FinishRotation stops the stepper and returns the status line the device
// reports for the completed rotation.
func (d *Device) FinishRotation() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.valve.Is(ValveOpening) && !d.valve.Is(ValveClosing) {
		return "", ErrNotRotating
	}
	if err := d.valve.Event(context.Background(), eventFinish); err != nil {
		return "", fmt.Errorf("finish rotation: %w", err)
	}
	return rotationStatus(d.valve.Is(ValveOpen)), nil
}

func rotationStatus(open bool) string {
	if open {
		return "Stepper completed CCW rotation (valve open)"
	}
	return "Stepper completed CW rotation (valve closed)"
}

// SetFan switches the fan and returns the status line for it.
func (d *Device) SetFan(on bool) string {
	d.mu.Lock()
	d.fanOn = on
	d.mu.Unlock()
	if on {
		return "Fans: ON"
	}
	return "Fans: OFF"
}

// PinTemperature fixes the reported temperature. Nil releases it.
func (d *Device) PinTemperature(t *float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t == nil {
		d.pinned = nil
		return
	}
	v := *t
	d.pinned = &v
}

// Sample draws the next sensor round: temperature 19..25 °C, humidity 40..70 %
// and a random presence flag, rounded to one decimal like the firmware.
func (d *Device) Sample(rng *rand.Rand) Reading {
	d.mu.Lock()
	defer d.mu.Unlock()

	r := Reading{
		Temperature: round1(19 + rng.Float64()*6),
		Humidity:    round1(40 + rng.Float64()*30),
		Presence:    rng.Intn(2) == 1,
	}
	if d.pinned != nil {
		r.Temperature = *d.pinned
	}
	d.lastReading = r
	return r
}

// Status draws one of the unsolicited status lines the firmware sends.
func (d *Device) Status(rng *rand.Rand) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch rng.Intn(4) {
	case 0:
		return "System online"
	case 1:
		if d.battery > 5 && rng.Intn(3) == 0 {
			d.battery--
		}
		return "Battery: " + strconv.Itoa(d.battery) + "%"
	case 2:
		if rng.Intn(5) == 0 {
			d.signal = "Weak"
		} else {
			d.signal = "Strong"
		}
		return "Network signal: " + d.signal
	default:
		return "Valve position: Normal"
	}
}

func (d *Device) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := Snapshot{
		RoomID:      d.RoomID,
		Valve:       d.valve.Current(),
		FanOn:       d.fanOn,
		Battery:     d.battery,
		Signal:      d.signal,
		LastReading: d.lastReading,
	}
	if d.pinned != nil {
		v := *d.pinned
		s.Pinned = &v
	}
	return s
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
