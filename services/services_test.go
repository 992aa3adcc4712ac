package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"ecoheat/database"
	"ecoheat/devicestate"
	"ecoheat/dispatcher"
	"ecoheat/events"
	"ecoheat/logging"
	"ecoheat/models"
	"ecoheat/redis"
	"ecoheat/repositories/base"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"gorm.io/driver/sqlite"
)

func newTestDatabase(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))), logging.Discard())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestCache(t *testing.T) (*redis.RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return redis.New(rdb, time.Hour), mr
}

func seedUsers(t *testing.T, db *database.Database, users ...models.User) {
	t.Helper()
	for i := range users {
		if err := db.DB.Create(&users[i]).Error; err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
}

type recorder struct {
	mu  sync.Mutex
	evs []events.Event
}

func (r *recorder) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, ev)
	return nil
}

func TestEnsureRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("no owner available", func(t *testing.T) {
		db := newTestDatabase(t)
		rs := NewRoomService(db.RoomRepo, db.UoW, "", logging.Discard())

		if err := rs.EnsureRoom(ctx, 4); !errors.Is(err, ErrNoOwner) {
			t.Fatalf("want ErrNoOwner, got %v", err)
		}
		if exists, _ := db.RoomRepo.RoomExists(ctx, 4); exists {
			t.Fatal("room must not be created without an owner")
		}
	})

	t.Run("first admin owns the room", func(t *testing.T) {
		db := newTestDatabase(t)
		seedUsers(t, db,
			models.User{ID: 3, Username: "bob"},
			models.User{ID: 8, Username: "root", IsAdmin: true},
			models.User{ID: 5, Username: "ops", IsAdmin: true},
		)
		rs := NewRoomService(db.RoomRepo, db.UoW, "", logging.Discard())

		if err := rs.EnsureRoom(ctx, 12); err != nil {
			t.Fatal(err)
		}
		room, err := db.RoomRepo.GetRoom(ctx, 12)
		if err != nil {
			t.Fatal(err)
		}
		if room.Name != "Room 12" || room.OwnerID != 5 {
			t.Errorf("got name %q owner %d, want \"Room 12\" owner 5", room.Name, room.OwnerID)
		}
	})

	t.Run("configured owner", func(t *testing.T) {
		db := newTestDatabase(t)
		seedUsers(t, db,
			models.User{ID: 1, Username: "root", IsAdmin: true},
			models.User{ID: 2, Username: "facility"},
		)

		rs := NewRoomService(db.RoomRepo, db.UoW, "facility", logging.Discard())
		if err := rs.EnsureRoom(ctx, 1); err != nil {
			t.Fatal(err)
		}
		room, _ := db.RoomRepo.GetRoom(ctx, 1)
		if room.OwnerID != 2 {
			t.Errorf("owner = %d, want 2", room.OwnerID)
		}

		rs = NewRoomService(db.RoomRepo, db.UoW, "nobody", logging.Discard())
		if err := rs.EnsureRoom(ctx, 2); err != nil {
			t.Fatal(err)
		}
		room, _ = db.RoomRepo.GetRoom(ctx, 2)
		if room.OwnerID != 1 {
			t.Errorf("unknown configured owner: owner = %d, want admin 1", room.OwnerID)
		}
	})

	t.Run("existing room is kept", func(t *testing.T) {
		db := newTestDatabase(t)
		seedUsers(t, db, models.User{ID: 1, Username: "root", IsAdmin: true})
		if err := db.DB.Create(&models.Room{ID: 6, Name: "Kitchen", OwnerID: 1}).Error; err != nil {
			t.Fatal(err)
		}
		rs := NewRoomService(db.RoomRepo, db.UoW, "", logging.Discard())

		for i := 0; i < 3; i++ {
			if err := rs.EnsureRoom(ctx, 6); err != nil {
				t.Fatal(err)
			}
		}
		room, _ := db.RoomRepo.GetRoom(ctx, 6)
		if room.Name != "Kitchen" {
			t.Errorf("name = %q, want Kitchen", room.Name)
		}
	})

	t.Run("zero id", func(t *testing.T) {
		db := newTestDatabase(t)
		rs := NewRoomService(db.RoomRepo, db.UoW, "", logging.Discard())
		if err := rs.EnsureRoom(ctx, 0); !base.IsValidationError(err) {
			t.Fatalf("want validation error, got %v", err)
		}
	})
}

func TestReadingService(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	seedUsers(t, db, models.User{ID: 1, Username: "root", IsAdmin: true})
	cache, mr := newTestCache(t)
	rec := &recorder{}
	rooms := NewRoomService(db.RoomRepo, db.UoW, "", logging.Discard())
	svc := NewReadingService(rooms, db.ReadingRepo, cache, rec, logging.Discard())

	if _, found, err := svc.LatestReading(ctx, 3); err != nil || found {
		t.Fatalf("empty room: found=%v err=%v", found, err)
	}

	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i, temp := range []float64{19.5, 20.5, 21.5} {
		r := &models.SensorReading{RoomID: 3, Temperature: temp, Humidity: 55, Timestamp: t0.Add(time.Duration(i) * time.Minute)}
		if err := svc.RecordReading(ctx, r); err != nil {
			t.Fatalf("record %v: %v", temp, err)
		}
	}

	if exists, _ := db.RoomRepo.RoomExists(ctx, 3); !exists {
		t.Fatal("room 3 should be auto-provisioned")
	}
	if len(rec.evs) != 3 || rec.evs[0].Type != events.TypeReadingRecorded || rec.evs[0].RoomID != 3 {
		t.Fatalf("unexpected events %+v", rec.evs)
	}

	latest, found, err := svc.LatestReading(ctx, 3)
	if err != nil || !found {
		t.Fatalf("latest: found=%v err=%v", found, err)
	}
	if latest.Temperature != 21.5 {
		t.Errorf("latest temperature = %v, want 21.5", latest.Temperature)
	}

	t.Run("falls back to database on cache miss", func(t *testing.T) {
		mr.FlushAll()
		latest, found, err := svc.LatestReading(ctx, 3)
		if err != nil || !found || latest.Temperature != 21.5 {
			t.Fatalf("got %+v found=%v err=%v", latest, found, err)
		}
		if !mr.Exists("room:reading:3") {
			t.Error("cache should be warmed after a miss")
		}
	})

	t.Run("falls back to database when redis is down", func(t *testing.T) {
		mr.Close()
		latest, found, err := svc.LatestReading(ctx, 3)
		if err != nil || !found || latest.Temperature != 21.5 {
			t.Fatalf("got %+v found=%v err=%v", latest, found, err)
		}
	})

	t.Run("history", func(t *testing.T) {
		got, err := svc.History(ctx, 3, t0, t0.Add(90*time.Second), 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || got[0].Temperature != 20.5 || got[1].Temperature != 19.5 {
			t.Fatalf("unexpected history %+v", got)
		}
		if _, err := svc.History(ctx, 3, t0, t0.Add(-time.Hour), 0); !base.IsValidationError(err) {
			t.Fatalf("inverted range: want validation error, got %v", err)
		}
	})
}

type fakeActuators struct {
	calls []string
	err   error
}

func (f *fakeActuators) SetValve(_ context.Context, roomID uint, open bool) error {
	f.calls = append(f.calls, fmt.Sprintf("valve %d %v", roomID, open))
	return f.err
}

func (f *fakeActuators) SetFan(_ context.Context, roomID uint, on bool) error {
	f.calls = append(f.calls, fmt.Sprintf("fan %d %v", roomID, on))
	return f.err
}

func TestClimateService(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	seedUsers(t, db, models.User{ID: 1, Username: "root", IsAdmin: true})
	if err := db.DB.Create(&models.Room{ID: 2, Name: "Office", OwnerID: 1}).Error; err != nil {
		t.Fatal(err)
	}
	cache, _ := newTestCache(t)
	store := devicestate.NewStore(db.DeviceRepo, cache, logging.Discard())
	readings := NewReadingService(NewRoomService(db.RoomRepo, db.UoW, "", logging.Discard()), db.ReadingRepo, cache, nil, logging.Discard())
	acts := &fakeActuators{}
	svc := NewClimateService(db.RoomRepo, readings, store, cache, acts, logging.Discard())

	t.Run("unknown room", func(t *testing.T) {
		if _, err := svc.Status(ctx, 99); !base.IsEntityNotFound(err) {
			t.Fatalf("want not found, got %v", err)
		}
		if err := svc.Control(ctx, 99, dispatcher.Valve, true, nil); !base.IsEntityNotFound(err) {
			t.Fatalf("want not found, got %v", err)
		}
	})

	t.Run("status of a fresh room", func(t *testing.T) {
		st, err := svc.Status(ctx, 2)
		if err != nil {
			t.Fatal(err)
		}
		if st.Name != "Office" || st.Reading != nil {
			t.Fatalf("unexpected status %+v", st)
		}
		if st.Device.HeatingControlMode != models.ControlModeSchedule || st.Device.BatteryLevel != 100 {
			t.Errorf("device should be in defaults, got %+v", st.Device)
		}
	})

	t.Run("control with mode", func(t *testing.T) {
		manual := models.ControlModeManual
		if err := svc.Control(ctx, 2, dispatcher.Fan, true, &manual); err != nil {
			t.Fatal(err)
		}
		if len(acts.calls) != 1 || acts.calls[0] != "fan 2 true" {
			t.Fatalf("calls = %v", acts.calls)
		}
		st, _ := store.GetOrCreate(ctx, 2)
		if st.FanMode != models.ControlModeManual || st.HeatingMode != models.ControlModeSchedule {
			t.Errorf("modes = %s/%s, want heating schedule fan manual", st.HeatingMode, st.FanMode)
		}

		status, err := svc.Status(ctx, 2)
		if err != nil {
			t.Fatal(err)
		}
		if status.Device.FanControlMode != models.ControlModeManual {
			t.Errorf("snapshot should reflect the new fan mode, got %+v", status.Device)
		}
	})

	t.Run("actuator errors pass through", func(t *testing.T) {
		acts.err = dispatcher.ErrNotConnected
		defer func() { acts.err = nil }()
		if err := svc.Control(ctx, 2, dispatcher.Valve, true, nil); !errors.Is(err, dispatcher.ErrNotConnected) {
			t.Fatalf("want ErrNotConnected, got %v", err)
		}
	})

	t.Run("control modes", func(t *testing.T) {
		if _, err := svc.SetControlModes(ctx, 2, nil, nil); !base.IsValidationError(err) {
			t.Fatalf("want validation error, got %v", err)
		}
		manual := models.ControlModeManual
		st, err := svc.SetControlModes(ctx, 2, &manual, nil)
		if err != nil {
			t.Fatal(err)
		}
		if !st.BothManual() {
			t.Errorf("both modes should be manual, got %s/%s", st.HeatingMode, st.FanMode)
		}
	})
}
