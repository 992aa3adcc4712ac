package devicestate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ecoheat/models"
	"ecoheat/repositories/base"
	"ecoheat/repositories/interfaces"
)

// Snapshotter receives a copy of every persisted state.
type Snapshotter interface {
	SaveDeviceStatus(ctx context.Context, status *models.DeviceStatus) error
}

// Store caches device state per room and writes every change through to the
// repository. All mutations of one room are serialized by that room's lock.
type Store struct {
	repo     interfaces.DeviceStatusRepositoryInterface
	snapshot Snapshotter
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	cache map[uint]DeviceState
	locks map[uint]*sync.Mutex
}

// NewStore builds a store. snapshot may be nil.
func NewStore(repo interfaces.DeviceStatusRepositoryInterface, snapshot Snapshotter, logger *slog.Logger) *Store {
	return &Store{
		repo:     repo,
		snapshot: snapshot,
		logger:   logger.With("component", "device_state"),
		now:      time.Now,
		cache:    make(map[uint]DeviceState),
		locks:    make(map[uint]*sync.Mutex),
	}
}

func (s *Store) roomLock(roomID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[roomID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[roomID] = l
	}
	return l
}

func (s *Store) cached(roomID uint) (DeviceState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.cache[roomID]
	return st, ok
}

func (s *Store) remember(st DeviceState) {
	s.mu.Lock()
	s.cache[st.RoomID] = st
	s.mu.Unlock()
}

// load must be called with the room lock held.
func (s *Store) load(ctx context.Context, roomID uint) (DeviceState, bool, error) {
	if st, ok := s.cached(roomID); ok {
		return st, true, nil
	}
	row, err := s.repo.GetDeviceStatus(ctx, roomID)
	if err != nil {
		if base.IsEntityNotFound(err) {
			return DeviceState{}, false, nil
		}
		return DeviceState{}, false, fmt.Errorf("load device state of room %d: %w", roomID, err)
	}
	st := fromModel(*row)
	s.remember(st)
	return st, true, nil
}

// persist must be called with the room lock held. The cache is only updated
// once the repository accepted the row.
func (s *Store) persist(ctx context.Context, st DeviceState) error {
	row := st.Model()
	if err := s.repo.SaveDeviceStatus(ctx, &row); err != nil {
		return fmt.Errorf("persist device state of room %d: %w", st.RoomID, err)
	}
	s.remember(st)
	if s.snapshot != nil {
		if err := s.snapshot.SaveDeviceStatus(ctx, &row); err != nil {
			s.logger.Warn("Failed to write device snapshot", "room_id", st.RoomID, slog.Any("error", err))
		}
	}
	return nil
}

// loadOrCreate must be called with the room lock held.
func (s *Store) loadOrCreate(ctx context.Context, roomID uint) (DeviceState, error) {
	st, found, err := s.load(ctx, roomID)
	if err != nil || found {
		return st, err
	}
	st = Default(roomID)
	st.LastUpdated = s.now()
	if err := s.persist(ctx, st); err != nil {
		return DeviceState{}, err
	}
	s.logger.Info("Created default device state", "room_id", roomID)
	return st, nil
}

// Get returns the state of a room without creating it.
func (s *Store) Get(ctx context.Context, roomID uint) (DeviceState, bool, error) {
	l := s.roomLock(roomID)
	l.Lock()
	defer l.Unlock()
	return s.load(ctx, roomID)
}

// GetOrCreate returns the state of a room, creating the default state on
// first use.
func (s *Store) GetOrCreate(ctx context.Context, roomID uint) (DeviceState, error) {
	l := s.roomLock(roomID)
	l.Lock()
	defer l.Unlock()
	return s.loadOrCreate(ctx, roomID)
}

// Update applies p. Nothing is written when no field changes.
func (s *Store) Update(ctx context.Context, roomID uint, p Patch) (DeviceState, error) {
	return s.Transition(ctx, roomID, func(DeviceState) (Patch, error) {
		return p, nil
	})
}

// Transition runs fn inside the room's critical section and applies the patch
// it returns. If fn fails, state is left untouched and its error is returned
// together with the current state.
func (s *Store) Transition(ctx context.Context, roomID uint, fn func(current DeviceState) (Patch, error)) (DeviceState, error) {
	l := s.roomLock(roomID)
	l.Lock()
	defer l.Unlock()

	current, err := s.loadOrCreate(ctx, roomID)
	if err != nil {
		return DeviceState{}, err
	}

	p, err := fn(current)
	if err != nil {
		return current, err
	}

	next, changed := p.Apply(current)
	if !changed {
		return current, nil
	}
	next.LastUpdated = s.now()
	if err := s.persist(ctx, next); err != nil {
		return current, err
	}
	return next, nil
}
