package topic

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		want  Route
	}{
		{"temperature", "room/3/temperature", Route{KindTelemetry, 3, ChannelTemperature}},
		{"humidity", "room/12/humidity", Route{KindTelemetry, 12, ChannelHumidity}},
		{"pir", "room/5/pir", Route{KindTelemetry, 5, ChannelPresence}},
		{"presence alias", "room/5/presence", Route{KindTelemetry, 5, ChannelPresence}},
		{"status", "esp32/status/7", Route{KindStatus, 7, ChannelStatus}},
		{"foreign prefix", "home/3/temperature", Route{Kind: KindIgnored}},
		{"command echo", "esp32/stepper/control/3", Route{Kind: KindIgnored}},
		{"empty", "", Route{Kind: KindIgnored}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.topic)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.topic, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.topic, got, tt.want)
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	for _, topic := range []string{
		"room/abc/temperature",
		"room/0/temperature",
		"room/-1/humidity",
		"room/3",
		"room/3/temperature/extra",
		"room/3/co2",
		"esp32/status",
		"esp32/status/x",
		"esp32/status/0",
		"esp32/status/3/extra",
	} {
		t.Run(topic, func(t *testing.T) {
			got, err := Parse(topic)
			if !errors.Is(err, ErrMalformedTopic) {
				t.Fatalf("Parse(%q) = %+v, %v; want ErrMalformedTopic", topic, got, err)
			}
		})
	}
}

func TestBuilders(t *testing.T) {
	got := RoomTopics(4)
	want := []string{"room/4/temperature", "room/4/humidity", "room/4/pir", "esp32/status/4"}
	if len(got) != len(want) {
		t.Fatalf("RoomTopics = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("RoomTopics[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if ValveCommandTopic(4) != "esp32/stepper/control/4" {
		t.Errorf("ValveCommandTopic = %q", ValveCommandTopic(4))
	}
	if FanCommandTopic(4) != "esp32/fan/control/4" {
		t.Errorf("FanCommandTopic = %q", FanCommandTopic(4))
	}
	if ValvePayload(true) != "CCW" || ValvePayload(false) != "CW" {
		t.Error("valve payloads must be CCW to open and CW to close")
	}
	if FanPayload(true) != "ON" || FanPayload(false) != "OFF" {
		t.Error("fan payloads must be ON and OFF")
	}

	// builders and Parse agree
	for _, tp := range RoomTopics(9) {
		r, err := Parse(tp)
		if err != nil || r.RoomID != 9 {
			t.Errorf("Parse(%q) = %+v, %v", tp, r, err)
		}
	}
}
