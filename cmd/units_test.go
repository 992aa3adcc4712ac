package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"ecoheat/config"
	"ecoheat/logging"
)

type fakeSession struct {
	mu        sync.Mutex
	hooks     []func()
	connected int
}

func (s *fakeSession) OnConnect(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *fakeSession) Connect(context.Context) error {
	s.mu.Lock()
	s.connected++
	hooks := append([]func(){}, s.hooks...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
	return nil
}

type fakeSubs struct {
	mu        sync.Mutex
	onConnect int
	runs      int
}

func (s *fakeSubs) OnConnect(context.Context) {
	s.mu.Lock()
	s.onConnect++
	s.mu.Unlock()
}

func (s *fakeSubs) Run(ctx context.Context) {
	s.mu.Lock()
	s.runs++
	s.mu.Unlock()
	<-ctx.Done()
}

type fakeStarter struct {
	mu     sync.Mutex
	starts int
}

func (e *fakeStarter) Start(context.Context) error {
	e.mu.Lock()
	e.starts++
	e.mu.Unlock()
	return nil
}

type fixture struct {
	session *fakeSession
	subs    *fakeSubs
	engine  *fakeStarter
	sweeps  chan struct{}
}

func newFixture() *fixture {
	return &fixture{
		session: &fakeSession{},
		subs:    &fakeSubs{},
		engine:  &fakeStarter{},
		sweeps:  make(chan struct{}, 1),
	}
}

func (f *fixture) units() units {
	return units{
		session: f.session,
		subs:    f.subs,
		engine:  f.engine,
		sweep: func(ctx context.Context) {
			f.sweeps <- struct{}{}
			<-ctx.Done()
		},
	}
}

func TestStartUnits(t *testing.T) {
	t.Run("primary starts everything", func(t *testing.T) {
		f := newFixture()
		ctx, cancel := context.WithCancel(context.Background())
		cfg := &config.Config{DecisionAutostart: true}

		wg := startUnits(ctx, cfg, f.units(), logging.Discard())
		select {
		case <-f.sweeps:
		case <-time.After(time.Second):
			t.Fatal("sweep not started")
		}
		cancel()
		if !waitTimeout(wg, time.Second) {
			t.Fatal("loops did not return after cancel")
		}

		if f.session.connected != 1 || f.subs.onConnect != 1 {
			t.Errorf("connect=%d subscribe-on-connect=%d, want 1 and 1", f.session.connected, f.subs.onConnect)
		}
		if f.subs.runs != 1 || f.engine.starts != 1 {
			t.Errorf("scanner runs=%d engine starts=%d, want 1 and 1", f.subs.runs, f.engine.starts)
		}
	})

	t.Run("autostart off leaves the engine stopped", func(t *testing.T) {
		f := newFixture()
		ctx, cancel := context.WithCancel(context.Background())
		wg := startUnits(ctx, &config.Config{}, f.units(), logging.Discard())
		cancel()
		waitTimeout(wg, time.Second)

		if f.engine.starts != 0 {
			t.Errorf("engine starts = %d, want 0", f.engine.starts)
		}
		if f.session.connected != 1 {
			t.Errorf("connect = %d, want 1", f.session.connected)
		}
	})

	t.Run("secondary worker opens no broker session", func(t *testing.T) {
		f := newFixture()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		cfg := &config.Config{DecisionAutostart: true, Worker: config.WorkerSecondary}

		wg := startUnits(ctx, cfg, f.units(), logging.Discard())
		if !waitTimeout(wg, 10*time.Millisecond) {
			t.Fatal("secondary worker should start no loops")
		}

		if len(f.session.hooks) != 0 || f.session.connected != 0 {
			t.Errorf("hooks=%d connect=%d, want none", len(f.session.hooks), f.session.connected)
		}
		if f.subs.onConnect != 0 || f.subs.runs != 0 || f.engine.starts != 0 {
			t.Errorf("subscribe=%d scanner=%d engine=%d, want all 0", f.subs.onConnect, f.subs.runs, f.engine.starts)
		}
		select {
		case <-f.sweeps:
			t.Error("sweep should not run in a secondary worker")
		default:
		}
	})
}
