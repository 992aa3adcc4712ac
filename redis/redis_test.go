package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"ecoheat/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestClient(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, time.Minute), mr
}

func TestLatestReadingRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)

	if _, err := c.GetLatestReading(ctx, 3); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("want ErrCacheMiss, got %v", err)
	}

	ts := time.Date(2026, 1, 5, 7, 30, 0, 0, time.UTC)
	in := &models.SensorReading{ID: 1, RoomID: 3, Temperature: 21.5, Humidity: 55, Timestamp: ts}
	if err := c.SaveLatestReading(ctx, in); err != nil {
		t.Fatal(err)
	}

	got, err := c.GetLatestReading(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got.Temperature != 21.5 || got.Humidity != 55 || !got.Timestamp.Equal(ts) {
		t.Errorf("GetLatestReading = %+v", got)
	}

	if ttl := mr.TTL("room:reading:3"); ttl != time.Minute {
		t.Errorf("ttl = %v, want 1m", ttl)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := c.GetLatestReading(ctx, 3); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expired key: want ErrCacheMiss, got %v", err)
	}
}

func TestDeviceStatusSnapshot(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)

	status := models.NewDefaultDeviceStatus(9)
	status.FanOn = true
	if err := c.SaveDeviceStatus(ctx, &status); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("device:status:9") {
		t.Fatal("expected device:status:9 key")
	}

	got, err := c.GetDeviceStatus(ctx, 9)
	if err != nil {
		t.Fatal(err)
	}
	if !got.FanOn || got.BatteryLevel != 100 || got.HeatingControlMode != models.ControlModeSchedule {
		t.Errorf("GetDeviceStatus = %+v", got)
	}
}

func TestCorruptValue(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)

	if err := mr.Set("device:status:2", "{not json"); err != nil {
		t.Fatal(err)
	}
	_, err := c.GetDeviceStatus(ctx, 2)
	if err == nil || errors.Is(err, ErrCacheMiss) {
		t.Fatalf("want decode error, got %v", err)
	}
}
