package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"ecoheat/topic"
	"ecoheat/utils"
)

// ErrUnknownRoom is returned for rooms the simulator does not run.
var ErrUnknownRoom = errors.New("room is not simulated")

// Publisher sends one MQTT message.
type Publisher interface {
	Publish(topic, payload string) error
}

type Config struct {
	FirstRoom   uint
	Rooms       int
	Interval    time.Duration
	StepDelay   time.Duration
	StatusRatio float64
	Seed        int64
}

type Simulator struct {
	cfg     Config
	pub     Publisher
	logger  *utils.Logger
	devices map[uint]*Device

	rngMu sync.Mutex
	rng   *rand.Rand
	// after schedules the end of a valve rotation; replaced in tests.
	after func(d time.Duration, f func())
}

func New(cfg Config, pub Publisher, logger *utils.Logger) (*Simulator, error) {
	if cfg.Rooms <= 0 || cfg.FirstRoom == 0 {
		return nil, fmt.Errorf("invalid room range: first %d, count %d", cfg.FirstRoom, cfg.Rooms)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %v", cfg.Interval)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Simulator{
		cfg:     cfg,
		pub:     pub,
		logger:  logger,
		devices: make(map[uint]*Device, cfg.Rooms),
		rng:     rand.New(rand.NewSource(seed)),
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
	for i := 0; i < cfg.Rooms; i++ {
		id := cfg.FirstRoom + uint(i)
		s.devices[id] = NewDevice(id)
	}
	return s, nil
}

func (s *Simulator) roomIDs() []uint {
	ids := make([]uint, 0, len(s.devices))
	for id := range s.devices {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CommandTopics lists the valve and fan topics of every simulated room.
func (s *Simulator) CommandTopics() []string {
	var topics []string
	for _, id := range s.roomIDs() {
		topics = append(topics, topic.ValveCommandTopic(id), topic.FanCommandTopic(id))
	}
	return topics
}

// Run publishes a round of telemetry every interval until ctx is done.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.Tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick publishes temperature, humidity and presence for every room and, with
// probability StatusRatio, one unsolicited status line.
func (s *Simulator) Tick() {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()

	for _, id := range s.roomIDs() {
		d := s.devices[id]
		r := d.Sample(s.rng)
		presence := "0"
		if r.Presence {
			presence = "1"
		}

		s.publish(id, topic.TelemetryTopic(id, topic.ChannelTemperature), strconv.FormatFloat(r.Temperature, 'f', 1, 64))
		s.publish(id, topic.TelemetryTopic(id, topic.ChannelHumidity), strconv.FormatFloat(r.Humidity, 'f', 1, 64))
		s.publish(id, topic.TelemetryTopic(id, topic.ChannelPresence), presence)
		s.logger.WithRoom(id).Debugf("Telemetry: %.1f°C %.1f%% presence=%s", r.Temperature, r.Humidity, presence)

		if s.rng.Float64() < s.cfg.StatusRatio {
			status := d.Status(s.rng)
			s.publish(id, topic.StatusTopic(id), status)
			s.logger.WithRoom(id).Infof("Status: %s", status)
		}
	}
}

func (s *Simulator) publish(roomID uint, t, payload string) {
	if err := s.pub.Publish(t, payload); err != nil {
		s.logger.WithRoom(roomID).Errorf("Failed to publish %s: %v", t, err)
	}
}

// HandleCommand reacts to a message on a command topic the way the firmware
// does: fan commands answer at once, valve commands after the stepper delay.
func (s *Simulator) HandleCommand(t string, payload []byte) {
	id, err := commandRoomID(t)
	if err != nil {
		s.logger.Warnf("Ignoring command on %s: %v", t, err)
		return
	}
	d, ok := s.devices[id]
	if !ok {
		s.logger.WithRoom(id).Warnf("Ignoring command for unsimulated room on %s", t)
		return
	}
	cmd := strings.TrimSpace(string(payload))
	logger := s.logger.WithRoom(id)

	switch t {
	case topic.FanCommandTopic(id):
		switch cmd {
		case topic.FanOn, topic.FanOff:
			logger.Infof("Fan %s", cmd)
			s.publish(id, topic.StatusTopic(id), d.SetFan(cmd == topic.FanOn))
		default:
			logger.Warnf("Invalid fan command %q", cmd)
		}

	case topic.ValveCommandTopic(id):
		if cmd != topic.ValveOpen && cmd != topic.ValveClose {
			logger.Warnf("Invalid stepper command %q", cmd)
			return
		}
		open := cmd == topic.ValveOpen
		moving, err := d.StartRotation(open)
		if err != nil {
			logger.Errorf("Stepper rejected %s: %v", cmd, err)
			return
		}
		if !moving {
			s.publish(id, topic.StatusTopic(id), rotationStatus(open))
			return
		}
		logger.Infof("Stepper rotating %s", cmd)
		s.after(s.cfg.StepDelay, func() { s.finishRotation(d) })

	default:
		logger.Warnf("Ignoring message on %s", t)
	}
}

func (s *Simulator) finishRotation(d *Device) {
	status, err := d.FinishRotation()
	if errors.Is(err, ErrNotRotating) {
		return
	}
	if err != nil {
		s.logger.WithRoom(d.RoomID).Errorf("Stepper failed: %v", err)
		return
	}
	s.logger.WithRoom(d.RoomID).Infof("Stepper done: %s", status)
	s.publish(d.RoomID, topic.StatusTopic(d.RoomID), status)
}

func commandRoomID(t string) (uint, error) {
	i := strings.LastIndexByte(t, '/')
	if i < 0 {
		return 0, fmt.Errorf("no room id in topic")
	}
	id, err := strconv.ParseUint(t[i+1:], 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid room id %q", t[i+1:])
	}
	return uint(id), nil
}

func (s *Simulator) device(roomID uint) (*Device, error) {
	d, ok := s.devices[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRoom, roomID)
	}
	return d, nil
}

func (s *Simulator) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(s.devices))
	for _, id := range s.roomIDs() {
		out = append(out, s.devices[id].Snapshot())
	}
	return out
}

func (s *Simulator) Snapshot(roomID uint) (Snapshot, error) {
	d, err := s.device(roomID)
	if err != nil {
		return Snapshot{}, err
	}
	return d.Snapshot(), nil
}

// PinTemperature fixes the temperature a room reports. Nil releases it.
func (s *Simulator) PinTemperature(roomID uint, t *float64) error {
	d, err := s.device(roomID)
	if err != nil {
		return err
	}
	d.PinTemperature(t)
	return nil
}

// SendStatus publishes a raw status line for a room.
func (s *Simulator) SendStatus(roomID uint, message string) error {
	if _, err := s.device(roomID); err != nil {
		return err
	}
	return s.pub.Publish(topic.StatusTopic(roomID), message)
}
