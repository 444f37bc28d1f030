// Package mqttbridge implements MQTT Integration (C9): connect/reconnect
// with Last Will, subscribe-on-connect, and dispatch of inbound messages
// to write intents, per SPEC_FULL.md §4.9.
package mqttbridge

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"mbbridge/pkg/logger"
	"mbbridge/pkg/registry"
)

// Config carries the mqtt.* configuration keys of SPEC_FULL.md §6.
type Config struct {
	Broker      string
	Port        int
	Username    string
	Password    string
	ClientID    string
	KeepAlive   time.Duration
	RetryDelay  time.Duration
	StatusTopic string // bridge-level LWT online/offline topic (§4.9)
}

// inboundWrite is one decoded write intent handed off from a paho callback
// goroutine to the single-threaded main loop (SPEC_FULL.md §5).
type inboundWrite struct {
	writeIndex int
	value      uint16
	retained   bool
}

// Client is the C9 component: a paho client plus the single channel that
// hands inbound write intents off to the main loop.
type Client struct {
	client  paho.Client
	cfg     Config
	reg     *registry.Registry
	inbound chan inboundWrite

	mu          sync.RWMutex
	connected   bool
}

// New creates an MQTT client bound to reg for inbound topic → write-tag
// resolution. The client is not yet connected.
func New(cfg Config, reg *registry.Registry) *Client {
	c := &Client{cfg: cfg, reg: reg, inbound: make(chan inboundWrite, 64)}

	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)

	keepAlive := cfg.KeepAlive
	if keepAlive == 0 {
		keepAlive = 60 * time.Second
	}
	opts.SetKeepAlive(keepAlive)
	opts.SetPingTimeout(10 * time.Second)

	if cfg.StatusTopic != "" {
		opts.SetWill(cfg.StatusTopic, "offline", 1, true)
	}

	opts.SetOnConnectHandler(func(client paho.Client) {
		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
		logger.LogInfo("mqtt client connected to broker")
		c.subscribeAll(client)
		if cfg.StatusTopic != "" {
			if token := client.Publish(cfg.StatusTopic, 1, true, "online"); token.Wait() && token.Error() != nil {
				logger.LogWarn("error publishing bridge online status: %v", token.Error())
			}
		}
	})
	opts.SetConnectionLostHandler(func(client paho.Client, err error) {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		logger.LogError("mqtt client disconnected: %v", err)
	})

	c.client = paho.NewClient(opts)
	return c
}

// Connect implements the Disconnected → Connecting → Connected state
// machine of §4.9, retrying with fixed backoff until ctx is cancelled.
func (c *Client) Connect(ctx context.Context) error {
	retryDelay := c.cfg.RetryDelay
	if retryDelay == 0 {
		retryDelay = 5 * time.Second
	}

	for attempt := 1; ; attempt++ {
		logger.LogDebug("attempting mqtt connection (attempt %d)...", attempt)
		if token := c.client.Connect(); token.Wait() && token.Error() != nil {
			logger.LogError("mqtt connection failed (attempt %d): %v", attempt, token.Error())
			select {
			case <-ctx.Done():
				return fmt.Errorf("mqtt connect cancelled: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}
		return nil
	}
}

// Disconnect closes the MQTT connection, waiting up to 5s for in-flight
// publishes to drain (the shutdown procedure of SPEC_FULL.md §5).
func (c *Client) Disconnect() {
	if c.client.IsConnected() {
		c.client.Disconnect(5000)
	}
}

// Connected reports whether the client is currently connected (implements
// publisher.MQTTClient's connectivity check).
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Publish implements publisher.MQTTClient / liveness.Publisher.
func (c *Client) Publish(ctx context.Context, topic string, payload string, retain bool) error {
	token := c.client.Publish(topic, 0, retain, payload)
	token.Wait()
	return token.Error()
}

func (c *Client) subscribeAll(client paho.Client) {
	for _, topic := range c.reg.SubscribeTopics() {
		if token := client.Subscribe(topic, 0, c.onMessage); token.Wait() && token.Error() != nil {
			logger.LogWarn("error subscribing to %s: %v", topic, token.Error())
		}
	}
}

// onMessage runs on a paho-owned goroutine. It only decodes the payload
// and hands the write intent off through the buffered channel — actually
// mutating tag state happens on the main loop (SPEC_FULL.md §5).
func (c *Client) onMessage(client paho.Client, msg paho.Message) {
	idx, ok := c.reg.WriteTagByTopic(msg.Topic())
	if !ok {
		return
	}
	value, err := strconv.ParseFloat(string(msg.Payload()), 64)
	if err != nil {
		logger.LogWarn("ignoring non-numeric payload on %s: %v", msg.Topic(), err)
		return
	}

	select {
	case c.inbound <- inboundWrite{writeIndex: idx, value: uint16(value), retained: msg.Retained()}:
	default:
		logger.LogWarn("inbound write queue full, dropping message on %s", msg.Topic())
	}
}

// DrainInbound applies every inbound write intent queued since the last
// call, enqueuing each as a pending write on the registry. Called once per
// main-loop tick (§5). A retained message on a tag with ignore_retained set
// is suppressed entirely (§3 Write Tag, scenario 4 of §8).
func (c *Client) DrainInbound(reg *registry.Registry) {
	for {
		select {
		case w := <-c.inbound:
			wt := reg.WriteTags[w.writeIndex]
			if w.retained && wt.IgnoreRetained {
				continue
			}
			wt.RequestWrite(w.value)
		default:
			return
		}
	}
}
