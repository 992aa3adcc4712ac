package subscription

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ecoheat/logging"
	"ecoheat/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeClient struct {
	mu        sync.Mutex
	connected bool
	topics    []string
	failOn    string
	delay     time.Duration
}

func (c *fakeClient) Subscribe(topic string) error {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failOn != "" && topic == c.failOn {
		return errors.New("suback timeout")
	}
	c.topics = append(c.topics, topic)
	return nil
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) count(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.topics {
		if strings.HasPrefix(t, prefix) {
			n++
		}
	}
	return n
}

type fakeRooms struct {
	mu  sync.Mutex
	ids []uint
	err error
}

func (r *fakeRooms) ListRoomIDs(context.Context) ([]uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint(nil), r.ids...), r.err
}

func (r *fakeRooms) set(ids ...uint) {
	r.mu.Lock()
	r.ids = ids
	r.mu.Unlock()
}

func newManager(c *fakeClient, r *fakeRooms) (*Manager, *metrics.Metrics) {
	m := metrics.New(nil)
	opts := Options{ScanInterval: 10 * time.Millisecond, DefaultRoomFrom: 1, DefaultRoomTo: 20}
	return NewManager(c, r, opts, m, logging.Discard()), m
}

func TestOnConnectSubscribesDefaultRange(t *testing.T) {
	c := &fakeClient{connected: true}
	mgr, m := newManager(c, &fakeRooms{})

	mgr.OnConnect(context.Background())

	if mgr.Count() != 20 {
		t.Fatalf("Count = %d, want 20", mgr.Count())
	}
	if len(c.topics) != 80 {
		t.Errorf("subscribed %d topics, want 80", len(c.topics))
	}
	if got := testutil.ToFloat64(m.SubscribedRooms); got != 20 {
		t.Errorf("gauge = %v, want 20", got)
	}
}

func TestOnConnectSubscribesKnownRooms(t *testing.T) {
	c := &fakeClient{connected: true}
	mgr, _ := newManager(c, &fakeRooms{ids: []uint{3, 42}})

	mgr.OnConnect(context.Background())

	got := mgr.Subscribed()
	if len(got) != 2 || got[0] != 3 || got[1] != 42 {
		t.Fatalf("Subscribed = %v, want [3 42]", got)
	}
	if c.count("room/42/") != 3 || c.count("esp32/status/42") != 1 {
		t.Errorf("room 42 topics = %v", c.topics)
	}
}

func TestScanIsMonotonic(t *testing.T) {
	ctx := context.Background()
	c := &fakeClient{connected: true}
	rooms := &fakeRooms{ids: []uint{1, 2}}
	mgr, _ := newManager(c, rooms)
	mgr.OnConnect(ctx)

	rooms.set(1, 2, 7)
	added, err := mgr.Scan(ctx)
	if err != nil || added != 1 {
		t.Fatalf("Scan = %d, %v; want 1", added, err)
	}
	before := len(c.topics)

	added, err = mgr.Scan(ctx)
	if err != nil || added != 0 {
		t.Fatalf("second Scan = %d, %v; want 0", added, err)
	}
	if len(c.topics) != before {
		t.Error("already subscribed rooms must not be re-subscribed")
	}

	// rooms deleted from the database stay subscribed
	rooms.set(7)
	mgr.Scan(ctx)
	if mgr.Count() != 3 {
		t.Errorf("Count = %d, want 3", mgr.Count())
	}
}

func TestScanWhileDisconnected(t *testing.T) {
	c := &fakeClient{connected: false}
	rooms := &fakeRooms{ids: []uint{1}}
	mgr, _ := newManager(c, rooms)

	added, err := mgr.Scan(context.Background())
	if err != nil || added != 0 || len(c.topics) != 0 {
		t.Fatalf("Scan while disconnected = %d, %v, topics %v", added, err, c.topics)
	}
}

func TestPartialFailureRetriedNextScan(t *testing.T) {
	ctx := context.Background()
	c := &fakeClient{connected: true, failOn: "esp32/status/5"}
	mgr, _ := newManager(c, &fakeRooms{ids: []uint{4, 5}})

	mgr.OnConnect(ctx)
	if got := mgr.Subscribed(); len(got) != 1 || got[0] != 4 {
		t.Fatalf("Subscribed = %v, want [4]", got)
	}

	c.mu.Lock()
	c.failOn = ""
	c.mu.Unlock()
	if added, _ := mgr.Scan(ctx); added != 1 {
		t.Fatalf("retry added %d, want 1", added)
	}
	if mgr.Count() != 2 {
		t.Errorf("Count = %d, want 2", mgr.Count())
	}
}

func TestReconnectResetsSet(t *testing.T) {
	ctx := context.Background()
	c := &fakeClient{connected: true}
	mgr, _ := newManager(c, &fakeRooms{ids: []uint{1}})

	mgr.OnConnect(ctx)
	mgr.OnConnect(ctx)

	if c.count("room/1/") != 6 {
		t.Errorf("room/1 topics subscribed %d times, want 6 (twice each)", c.count("room/1/"))
	}
	if mgr.Count() != 1 {
		t.Errorf("Count = %d, want 1", mgr.Count())
	}
}

func TestListErrorFallsBackToDefaults(t *testing.T) {
	c := &fakeClient{connected: true}
	mgr, _ := newManager(c, &fakeRooms{err: errors.New("db down")})

	mgr.OnConnect(context.Background())
	if mgr.Count() != 20 {
		t.Errorf("Count = %d, want 20", mgr.Count())
	}
	if _, err := mgr.Scan(context.Background()); err == nil {
		t.Error("Scan should surface the list error")
	}
}

func TestRunPicksUpNewRooms(t *testing.T) {
	c := &fakeClient{connected: true}
	rooms := &fakeRooms{ids: []uint{1}}
	mgr, _ := newManager(c, rooms)
	mgr.OnConnect(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mgr.Run(ctx)
		close(done)
	}()

	rooms.set(1, 9)
	deadline := time.Now().Add(2 * time.Second)
	for mgr.Count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if mgr.Count() != 2 {
		t.Errorf("Count = %d, want 2", mgr.Count())
	}
}

func TestConcurrentScansSubscribeOnce(t *testing.T) {
	c := &fakeClient{connected: true, delay: 2 * time.Millisecond}
	mgr, _ := newManager(c, &fakeRooms{ids: []uint{7}})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := mgr.Scan(context.Background()); err != nil {
				t.Errorf("Scan: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := c.count("room/7/temperature"); n != 1 {
		t.Fatalf("room/7/temperature subscribed %d times, want 1", n)
	}
	if mgr.Count() != 1 {
		t.Errorf("Count = %d, want 1", mgr.Count())
	}
}
