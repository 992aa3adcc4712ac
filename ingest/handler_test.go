package ingest

import (
	"context"
	"errors"
	"testing"

	"ecoheat/logging"
	"ecoheat/metrics"
	"ecoheat/topic"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fragment struct {
	room    uint
	channel topic.Channel
	payload string
}

type fakeTelemetry struct{ got []fragment }

func (f *fakeTelemetry) Ingest(_ context.Context, roomID uint, ch topic.Channel, payload []byte) error {
	f.got = append(f.got, fragment{roomID, ch, string(payload)})
	return nil
}

type fakeStatus struct {
	got []fragment
	err error
}

func (f *fakeStatus) Apply(_ context.Context, roomID uint, payload string) error {
	f.got = append(f.got, fragment{roomID, topic.ChannelStatus, payload})
	return f.err
}

func TestHandleRoutes(t *testing.T) {
	tel, st := &fakeTelemetry{}, &fakeStatus{}
	m := metrics.New(nil)
	h := NewHandler(tel, st, m, logging.Discard())
	ctx := context.Background()

	msgs := []struct {
		topic   string
		payload string
	}{
		{"room/3/temperature", "21.5"},
		{"room/3/humidity", "55.0"},
		{"room/4/pir", "1"},
		{"esp32/status/3", "Fans: ON"},
		{"esp32/stepper/control/3", "CW"},
		{"homeassistant/status", "online"},
	}
	for _, msg := range msgs {
		if err := h.Handle(ctx, msg.topic, []byte(msg.payload)); err != nil {
			t.Fatalf("%s: %v", msg.topic, err)
		}
	}

	wantTel := []fragment{
		{3, topic.ChannelTemperature, "21.5"},
		{3, topic.ChannelHumidity, "55.0"},
		{4, topic.ChannelPresence, "1"},
	}
	if len(tel.got) != len(wantTel) {
		t.Fatalf("telemetry got %v, want %v", tel.got, wantTel)
	}
	for i := range wantTel {
		if tel.got[i] != wantTel[i] {
			t.Errorf("telemetry[%d] = %v, want %v", i, tel.got[i], wantTel[i])
		}
	}
	if len(st.got) != 1 || st.got[0].room != 3 || st.got[0].payload != "Fans: ON" {
		t.Errorf("status got %v", st.got)
	}
	if got := testutil.ToFloat64(m.FragmentsDropped.WithLabelValues("malformed_topic")); got != 0 {
		t.Errorf("malformed count = %v, want 0", got)
	}
}

func TestHandleDropsMalformedTopics(t *testing.T) {
	tel, st := &fakeTelemetry{}, &fakeStatus{}
	m := metrics.New(nil)
	h := NewHandler(tel, st, m, logging.Discard())

	for _, name := range []string{"room/abc/temperature", "room/0/humidity", "room/3/pressure", "esp32/status/"} {
		if err := h.Handle(context.Background(), name, []byte("1")); !errors.Is(err, topic.ErrMalformedTopic) {
			t.Errorf("%s: want ErrMalformedTopic, got %v", name, err)
		}
	}
	if len(tel.got)+len(st.got) != 0 {
		t.Fatalf("nothing should be routed, got %v %v", tel.got, st.got)
	}
	if got := testutil.ToFloat64(m.FragmentsDropped.WithLabelValues("malformed_topic")); got != 4 {
		t.Errorf("malformed count = %v, want 4", got)
	}
}

func TestMessageHandlerSwallowsErrors(t *testing.T) {
	st := &fakeStatus{err: errors.New("db down")}
	h := NewHandler(&fakeTelemetry{}, st, metrics.New(nil), logging.Discard())

	h.MessageHandler(context.Background())("esp32/status/9", []byte("Battery: 40%"))
	if len(st.got) != 1 || st.got[0].room != 9 {
		t.Fatalf("status got %v", st.got)
	}
}
