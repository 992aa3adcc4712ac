package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the control-core collectors.
type Metrics struct {
	ReadingsTotal     prometheus.Counter
	FragmentsDropped  *prometheus.CounterVec
	PartialsDiscarded prometheus.Counter
	StatusUpdates     prometheus.Counter
	CommandsTotal     *prometheus.CounterVec
	DecisionsTotal    *prometheus.CounterVec
	RoomErrors        prometheus.Counter
	CycleDuration     prometheus.Histogram
	SubscribedRooms   prometheus.Gauge
	MQTTConnected     prometheus.Gauge
	EventsDropped     prometheus.Counter
}

// New constructs the collectors and registers them on reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReadingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecoheat_readings_recorded_total",
			Help: "Complete sensor readings persisted",
		}),
		FragmentsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ecoheat_fragments_dropped_total",
				Help: "Inbound messages dropped before reaching state, by reason",
			},
			[]string{"reason"},
		),
		PartialsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecoheat_partial_samples_discarded_total",
			Help: "Partial samples evicted after going stale",
		}),
		StatusUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecoheat_status_updates_total",
			Help: "Status messages that carried at least one device field",
		}),
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ecoheat_commands_total",
				Help: "Actuator commands by actuator and result",
			},
			[]string{"actuator", "result"},
		),
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ecoheat_decisions_total",
				Help: "Per-room decision outcomes",
			},
			[]string{"outcome"},
		),
		RoomErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecoheat_decision_room_errors_total",
			Help: "Rooms whose evaluation failed or panicked",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecoheat_decision_cycle_duration_seconds",
			Help:    "Duration of one decision pass over all rooms",
			Buckets: prometheus.DefBuckets,
		}),
		SubscribedRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ecoheat_subscribed_rooms",
			Help: "Rooms with all topics subscribed in the current session",
		}),
		MQTTConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ecoheat_mqtt_connected",
			Help: "1 while the broker session is up",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecoheat_events_dropped_total",
			Help: "Export events dropped because the queue was full or the write failed",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.ReadingsTotal,
			m.FragmentsDropped,
			m.PartialsDiscarded,
			m.StatusUpdates,
			m.CommandsTotal,
			m.DecisionsTotal,
			m.RoomErrors,
			m.CycleDuration,
			m.SubscribedRooms,
			m.MQTTConnected,
			m.EventsDropped,
		)
	}
	return m
}

// ObserveCycle records the duration since start.
func (m *Metrics) ObserveCycle(start time.Time) {
	m.CycleDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) SetConnected(connected bool) {
	if connected {
		m.MQTTConnected.Set(1)
		return
	}
	m.MQTTConnected.Set(0)
}
