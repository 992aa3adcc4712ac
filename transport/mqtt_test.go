package transport

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ecoheat/logging"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error { return t.err }

type fakeClient struct {
	connected bool
	token     mqtt.Token
	published []string
}

func (c *fakeClient) IsConnectionOpen() bool { return c.connected }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.published = append(c.published, topic+"="+string(payload.([]byte)))
	return c.token
}

func TestSend(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		c := &fakeClient{connected: true, token: completedToken(nil)}
		tr := NewMQTTTransport(c, time.Second, logging.Discard())
		if err := tr.Send(context.Background(), "esp32/fan/control/1", []byte("ON")); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		if len(c.published) != 1 || c.published[0] != "esp32/fan/control/1=ON" {
			t.Errorf("published = %v", c.published)
		}
	})

	t.Run("not connected", func(t *testing.T) {
		c := &fakeClient{connected: false, token: completedToken(nil)}
		tr := NewMQTTTransport(c, time.Second, logging.Discard())
		if err := tr.Send(context.Background(), "x", []byte("ON")); !errors.Is(err, ErrNotConnected) {
			t.Fatalf("want ErrNotConnected, got %v", err)
		}
		if len(c.published) != 0 {
			t.Error("nothing should be published while disconnected")
		}
	})

	t.Run("broker error", func(t *testing.T) {
		c := &fakeClient{connected: true, token: completedToken(errors.New("refused"))}
		tr := NewMQTTTransport(c, time.Second, logging.Discard())
		err := tr.Send(context.Background(), "x", []byte("CW"))
		if err == nil || !strings.Contains(err.Error(), "refused") {
			t.Fatalf("want wrapped broker error, got %v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		c := &fakeClient{connected: true, token: &fakeToken{done: make(chan struct{})}}
		tr := NewMQTTTransport(c, 20*time.Millisecond, logging.Discard())
		err := tr.Send(context.Background(), "x", []byte("CW"))
		if err == nil || !strings.Contains(err.Error(), "timed out") {
			t.Fatalf("want timeout, got %v", err)
		}
	})

	t.Run("context cancelled", func(t *testing.T) {
		c := &fakeClient{connected: true, token: &fakeToken{done: make(chan struct{})}}
		tr := NewMQTTTransport(c, time.Minute, logging.Discard())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := tr.Send(ctx, "x", []byte("CW")); !errors.Is(err, context.Canceled) {
			t.Fatalf("want context.Canceled, got %v", err)
		}
	})
}
