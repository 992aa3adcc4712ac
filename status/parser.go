// Package status turns free-text controller status lines into device state
// updates.
package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"ecoheat/devicestate"
	"ecoheat/metrics"
	"ecoheat/models"
)

// rule maps a phrase onto one field of the patch. Rules of the same field are
// tried in order and the first match wins.
type rule struct {
	field  string
	phrase string
	apply  func(rest string, p *devicestate.Patch) error
}

var rules = []rule{
	{"fan", "Fans: ON", setFan(true)},
	{"fan", "Fans: OFF", setFan(false)},
	{"valve", "Stepper completed CW", setValve(false)},
	{"valve", "Stepper completed CCW", setValve(true)},
	{"battery", "Battery:", parseBattery},
	{"link", "Network signal:", parseLink},
}

func setFan(on bool) func(string, *devicestate.Patch) error {
	return func(_ string, p *devicestate.Patch) error {
		p.FanOn = devicestate.Bool(on)
		return nil
	}
}

func setValve(open bool) func(string, *devicestate.Patch) error {
	return func(_ string, p *devicestate.Patch) error {
		p.ValveOn = devicestate.Bool(open)
		return nil
	}
}

// parseBattery reads the integer between "Battery:" and "%". Text without a
// percent sign carries no level.
func parseBattery(rest string, p *devicestate.Patch) error {
	idx := strings.Index(rest, "%")
	if idx < 0 {
		return nil
	}
	level, err := strconv.Atoi(strings.TrimSpace(rest[:idx]))
	if err != nil {
		return fmt.Errorf("battery level %q: %w", strings.TrimSpace(rest[:idx]), err)
	}
	level = max(0, min(100, level))
	p.BatteryLevel = devicestate.Int(level)
	return nil
}

func parseLink(rest string, p *devicestate.Patch) error {
	switch {
	case strings.Contains(rest, "Strong"):
		p.LinkQuality = devicestate.Link(models.LinkStable)
	case strings.Contains(rest, "Weak"):
		p.LinkQuality = devicestate.Link(models.LinkWeak)
	default:
		p.LinkQuality = devicestate.Link(models.LinkUnstable)
	}
	return nil
}

// Parse extracts every recognised field from payload. Matching is
// case-sensitive. A field whose value cannot be parsed is left out of the
// patch and reported in the returned error; the other fields still apply.
func Parse(payload string) (devicestate.Patch, error) {
	var (
		p    devicestate.Patch
		seen = make(map[string]bool, len(rules))
		errs []error
	)
	for _, r := range rules {
		if seen[r.field] {
			continue
		}
		idx := strings.Index(payload, r.phrase)
		if idx < 0 {
			continue
		}
		seen[r.field] = true
		if err := r.apply(payload[idx+len(r.phrase):], &p); err != nil {
			errs = append(errs, err)
		}
	}
	return p, errors.Join(errs...)
}

// RoomProvisioner makes sure a room row exists before state is attached to it.
type RoomProvisioner interface {
	EnsureRoom(ctx context.Context, roomID uint) error
}

// StateUpdater is the part of the device state store the parser writes to.
type StateUpdater interface {
	Update(ctx context.Context, roomID uint, p devicestate.Patch) (devicestate.DeviceState, error)
}

type Parser struct {
	rooms   RoomProvisioner
	store   StateUpdater
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewParser(rooms RoomProvisioner, store StateUpdater, m *metrics.Metrics, logger *slog.Logger) *Parser {
	return &Parser{
		rooms:   rooms,
		store:   store,
		metrics: m,
		logger:  logger.With("component", "status_parser"),
	}
}

// Apply parses payload and writes the resulting patch in a single update.
// The room is provisioned even when the payload carries no recognised phrase.
func (sp *Parser) Apply(ctx context.Context, roomID uint, payload string) error {
	logger := sp.logger.With("room_id", roomID)

	if err := sp.rooms.EnsureRoom(ctx, roomID); err != nil {
		return fmt.Errorf("status for room %d: %w", roomID, err)
	}

	p, err := Parse(payload)
	if err != nil {
		logger.Warn("Could not parse part of status message", "payload", payload, slog.Any("error", err))
	}
	if p.IsEmpty() {
		logger.Debug("Status message carries no state", "payload", payload)
		return nil
	}

	st, err := sp.store.Update(ctx, roomID, p)
	if err != nil {
		return fmt.Errorf("status for room %d: %w", roomID, err)
	}
	sp.metrics.StatusUpdates.Inc()
	logger.Info("Device status updated", "payload", payload, "fields", fieldNames(p),
		"valve_on", st.ValveOn, "fan_on", st.FanOn,
		"battery_level", st.BatteryLevel, "link_quality", st.LinkQuality)
	return nil
}

func fieldNames(p devicestate.Patch) []string {
	var names []string
	if p.FanOn != nil {
		names = append(names, "fan")
	}
	if p.ValveOn != nil {
		names = append(names, "valve")
	}
	if p.BatteryLevel != nil {
		names = append(names, "battery")
	}
	if p.LinkQuality != nil {
		names = append(names, "link")
	}
	return names
}
