package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const topicPrefix = "jumpgame/rooms/"

// Client handles MQTT connections to the rendezvous broker. Hosts publish a
// retained announce under their room code topic; joiners subscribe and pick
// up whatever is currently registered.
type Client struct {
	client mqtt.Client
	log    zerolog.Logger
}

// Dial connects to the broker. The clientID must be unique per participant
// or the broker will evict the previous session.
func Dial(brokerURL, clientID string, log zerolog.Logger) (*Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		log.Warn().Err(err).Msg("broker connection lost")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect failed: %w", token.Error())
	}
	return &Client{client: client, log: log}, nil
}

// Announce registers the room under its code with a retained message, so
// joiners that subscribe later still see it. The returned function withdraws
// the registration by replacing it with a retained tombstone.
func (c *Client) Announce(ctx context.Context, code, addr string) (func(), error) {
	payload, err := json.Marshal(RoomAnnounce{Code: code, Addr: addr})
	if err != nil {
		return nil, err
	}
	topic := topicPrefix + code
	if token := c.client.Publish(topic, 1, true, payload); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("announce failed: %w", token.Error())
	}
	c.log.Debug().Str("code", code).Str("addr", addr).Msg("room announced")

	var once sync.Once
	withdraw := func() {
		once.Do(func() {
			tomb, _ := json.Marshal(RoomAnnounce{Code: code, Closed: true})
			c.client.Publish(topic, 1, true, tomb).Wait()
			// clear the retained slot entirely
			c.client.Publish(topic, 1, true, []byte{}).Wait()
		})
	}
	return withdraw, nil
}

// Resolve subscribes to the room topic and waits for the first signal: a
// live announce resolves to its address, a tombstone or context expiry fails.
// Whichever arrives first wins; later signals for the same lookup are
// ignored.
func (c *Client) Resolve(ctx context.Context, code string) (string, error) {
	topic := topicPrefix + code
	res := newDialResult()

	handler := func(client mqtt.Client, msg mqtt.Message) {
		if len(msg.Payload()) == 0 {
			return // retained slot cleared
		}
		var ann RoomAnnounce
		if err := json.Unmarshal(msg.Payload(), &ann); err != nil {
			c.log.Warn().Err(err).Str("topic", msg.Topic()).Msg("invalid announce")
			return
		}
		if ann.Closed {
			res.fail(fmt.Errorf("room %s is closed", code))
			return
		}
		res.resolve(ann.Addr)
	}
	if token := c.client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
		return "", fmt.Errorf("subscribe failed: %w", token.Error())
	}
	defer c.client.Unsubscribe(topic)

	select {
	case out := <-res.done:
		return out.addr, out.err
	case <-ctx.Done():
		return "", fmt.Errorf("room %s not found: %w", code, ctx.Err())
	}
}

// Close disconnects from the broker
func (c *Client) Close() {
	if c.client != nil {
		c.client.Disconnect(uint(250 * time.Millisecond / time.Millisecond))
	}
}

// dialResult resolves exactly once. The broker can deliver both an announce
// and a tombstone for the same topic; the first signal decides the outcome
// and the rest are dropped.
type dialResult struct {
	once sync.Once
	done chan outcome
}

type outcome struct {
	addr string
	err  error
}

func newDialResult() *dialResult {
	return &dialResult{done: make(chan outcome, 1)}
}

func (r *dialResult) resolve(addr string) {
	r.once.Do(func() { r.done <- outcome{addr: addr} })
}

func (r *dialResult) fail(err error) {
	r.once.Do(func() { r.done <- outcome{err: err} })
}
