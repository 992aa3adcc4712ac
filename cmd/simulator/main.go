// Command simulator emulates a fleet of room controllers against an MQTT
// broker so the backend can be exercised without hardware.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ecoheat/simulator"
	"ecoheat/utils"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/spf13/pflag"
)

const (
	qosAtLeastOnce = 1
	waitTimeout    = 5 * time.Second
)

func main() {
	var (
		broker      = pflag.String("broker", "tcp://localhost:1883", "MQTT broker URL")
		clientID    = pflag.String("client-id", "ecoheat-simulator", "MQTT client id prefix")
		username    = pflag.String("username", "", "MQTT username")
		password    = pflag.String("password", "", "MQTT password")
		firstRoom   = pflag.Uint("first-room", 1, "id of the first simulated room")
		rooms       = pflag.Int("rooms", 3, "number of simulated rooms")
		interval    = pflag.Duration("interval", 10*time.Second, "telemetry publish interval")
		stepDelay   = pflag.Duration("step-delay", 2*time.Second, "time the valve stepper takes to rotate")
		statusRatio = pflag.Float64("status-ratio", 0.2, "probability of a status line per room and round")
		seed        = pflag.Int64("seed", 0, "random seed, 0 picks one")
		listen      = pflag.String("listen", "", "address of the control API, empty to disable")
		logLevel    = pflag.String("log-level", "info", "log level")
	)
	pflag.Parse()

	logger := utils.NewLogger(*logLevel, nil)

	pub := &publisher{}
	sim, err := simulator.New(simulator.Config{
		FirstRoom:   *firstRoom,
		Rooms:       *rooms,
		Interval:    *interval,
		StepDelay:   *stepDelay,
		StatusRatio: *statusRatio,
		Seed:        *seed,
	}, pub, logger)
	if err != nil {
		logger.Fatalf("Invalid simulator settings: %v", err)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(*broker).
		SetClientID(fmt.Sprintf("%s-%s", *clientID, uuid.NewString()[:8])).
		SetUsername(*username).
		SetPassword(*password).
		SetKeepAlive(60 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(true).
		// command handlers publish their replies and wait for the ack
		SetOrderMatters(false)

	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		sim.HandleCommand(msg.Topic(), msg.Payload())
	})
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		filters := make(map[string]byte)
		for _, t := range sim.CommandTopics() {
			filters[t] = qosAtLeastOnce
		}
		token := c.SubscribeMultiple(filters, nil)
		if !token.WaitTimeout(waitTimeout) {
			logger.Errorf("Subscribing to command topics timed out after %v", waitTimeout)
			return
		}
		if err := token.Error(); err != nil {
			logger.Errorf("Failed to subscribe to command topics: %v", err)
			return
		}
		logger.Infof("Connected to %s, listening on %d command topics", *broker, len(filters))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warnf("Connection lost, reconnecting: %v", err)
	})

	client := mqtt.NewClient(opts)
	pub.client = client

	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Fatalf("Failed to connect to MQTT broker: %v", token.Error())
	}
	defer client.Disconnect(250)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *listen != "" {
		server := &http.Server{
			Addr:         *listen,
			Handler:      apiHandler(sim, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Infof("Control API listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("Control API failed: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), waitTimeout)
			defer shutdownCancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	logger.Infof("Simulating rooms %d..%d every %v", *firstRoom, *firstRoom+uint(*rooms)-1, *interval)
	sim.Run(ctx)
	logger.Info("Simulator stopped")
}

// publisher adapts the PAHO client to simulator.Publisher.
type publisher struct {
	client mqtt.Client
}

func (p *publisher) Publish(topic, payload string) error {
	if !p.client.IsConnectionOpen() {
		return errors.New("not connected to broker")
	}
	token := p.client.Publish(topic, qosAtLeastOnce, false, payload)
	if !token.WaitTimeout(waitTimeout) {
		return fmt.Errorf("publish to %s timed out after %v", topic, waitTimeout)
	}
	return token.Error()
}

func apiHandler(sim *simulator.Simulator, logger *utils.Logger) http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(cors(simulator.NewRouter(sim, logger)))
}
