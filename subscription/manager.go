// Package subscription keeps the broker session subscribed to every known
// room.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"ecoheat/metrics"
	"ecoheat/topic"
)

// Subscriber is the part of the MQTT client the manager drives.
type Subscriber interface {
	Subscribe(topic string) error
	IsConnected() bool
}

// RoomLister lists all known room ids.
type RoomLister interface {
	ListRoomIDs(ctx context.Context) ([]uint, error)
}

// Manager tracks which rooms are subscribed in the current session. The set
// only grows until the next (re)connect resets it.
type Manager struct {
	client       Subscriber
	rooms        RoomLister
	interval     time.Duration
	defaultRooms []uint
	metrics      *metrics.Metrics
	logger       *slog.Logger

	// passMu serializes whole passes so a room is never subscribed by a
	// reconnect and a scan at the same time.
	passMu sync.Mutex

	mu         sync.Mutex
	subscribed map[uint]struct{}
}

// Options configures a Manager.
type Options struct {
	ScanInterval    time.Duration
	DefaultRoomFrom uint
	DefaultRoomTo   uint
}

func NewManager(client Subscriber, rooms RoomLister, opts Options, m *metrics.Metrics, logger *slog.Logger) *Manager {
	var defaults []uint
	for id := opts.DefaultRoomFrom; id > 0 && id <= opts.DefaultRoomTo; id++ {
		defaults = append(defaults, id)
	}
	return &Manager{
		client:       client,
		rooms:        rooms,
		interval:     opts.ScanInterval,
		defaultRooms: defaults,
		metrics:      m,
		logger:       logger.With("component", "subscription_manager"),
		subscribed:   make(map[uint]struct{}),
	}
}

// OnConnect resets the set and subscribes every known room, or the default
// range when no room exists yet.
func (m *Manager) OnConnect(ctx context.Context) {
	m.passMu.Lock()
	defer m.passMu.Unlock()

	m.mu.Lock()
	m.subscribed = make(map[uint]struct{})
	m.mu.Unlock()
	m.metrics.SubscribedRooms.Set(0)

	ids, err := m.rooms.ListRoomIDs(ctx)
	if err != nil {
		m.logger.Error("Failed to list rooms, subscribing default range", slog.Any("error", err))
		ids = nil
	}
	if len(ids) == 0 {
		ids = m.defaultRooms
		m.logger.Info("No rooms known yet, subscribing default range", "count", len(ids))
	}

	added := m.subscribeMissing(ids)
	m.logger.Info("Subscribed rooms after connect", "added", added, "total", m.Count())
}

// Scan subscribes rooms that appeared since the last pass. It is a no-op
// while disconnected.
func (m *Manager) Scan(ctx context.Context) (int, error) {
	if !m.client.IsConnected() {
		m.logger.Debug("Skipping subscription scan while disconnected")
		return 0, nil
	}

	m.passMu.Lock()
	defer m.passMu.Unlock()

	ids, err := m.rooms.ListRoomIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list rooms: %w", err)
	}
	added := m.subscribeMissing(ids)
	if added > 0 {
		m.logger.Info("Subscribed new rooms", "added", added, "total", m.Count())
	}
	return added, nil
}

// Run scans on every tick until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("Subscription scanner started", "interval", m.interval.String())
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Subscription scanner stopped")
			return
		case <-ticker.C:
			if _, err := m.Scan(ctx); err != nil {
				m.logger.Error("Subscription scan failed", slog.Any("error", err))
			}
		}
	}
}

func (m *Manager) subscribeMissing(ids []uint) int {
	added := 0
	for _, id := range ids {
		if m.has(id) {
			continue
		}
		if err := m.subscribeRoom(id); err != nil {
			m.logger.Warn("Room not fully subscribed, will retry on next scan", "room_id", id, slog.Any("error", err))
			continue
		}
		m.mu.Lock()
		m.subscribed[id] = struct{}{}
		n := len(m.subscribed)
		m.mu.Unlock()
		m.metrics.SubscribedRooms.Set(float64(n))
		added++
	}
	return added
}

// subscribeRoom subscribes all topics of a room. A partial failure leaves the
// room out of the set so the next scan retries it.
func (m *Manager) subscribeRoom(id uint) error {
	for _, t := range topic.RoomTopics(id) {
		if err := m.client.Subscribe(t); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) has(id uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subscribed[id]
	return ok
}

// Subscribed returns the subscribed room ids in ascending order.
func (m *Manager) Subscribed() []uint {
	m.mu.Lock()
	ids := make([]uint, 0, len(m.subscribed))
	for id := range m.subscribed {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribed)
}
