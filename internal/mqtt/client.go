package mqtt

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Options configure a Client.
type Options struct {
	Broker   string // host[:port]; port 1883 when omitted
	User     string
	Password string
	ClientID string // generated when empty
	Queue    int    // buffered messages, default 16
}

// Message is a received publication.
type Message struct {
	Topic   string
	Payload []byte
	At      time.Time
}

// Client subscribes to the TCD and command topics. Messages are handed
// to the device loop through Messages; the loop is the only consumer.
type Client struct {
	opts Options
	cli  paho.Client
	msgs chan Message

	mu        sync.RWMutex
	connected bool
	dropped   uint64
}

// New prepares a client. Nothing is sent until Connect.
func New(opts Options) *Client {
	if opts.ClientID == "" {
		opts.ClientID = "sid-" + uuid.NewString()
	}
	if opts.Queue <= 0 {
		opts.Queue = 16
	}
	return &Client{opts: opts, msgs: make(chan Message, opts.Queue)}
}

// Messages delivers received messages.
func (c *Client) Messages() <-chan Message { return c.msgs }

// Connected reports the broker link state.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Dropped counts messages lost because the loop fell behind.
func (c *Client) Dropped() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dropped
}

// Connect dials the broker. Subscriptions are (re)made on every connect,
// so they survive automatic reconnects.
func (c *Client) Connect(ctx context.Context) error {
	po := paho.NewClientOptions()
	po.AddBroker(brokerURL(c.opts.Broker))
	po.SetClientID(c.opts.ClientID)
	if c.opts.User != "" {
		po.SetUsername(c.opts.User)
		po.SetPassword(c.opts.Password)
	}
	po.SetCleanSession(true)
	po.SetAutoReconnect(true)
	po.SetConnectRetry(true)
	po.SetConnectRetryInterval(2 * time.Second)
	po.SetMaxReconnectInterval(30 * time.Second)

	po.OnConnect = func(pc paho.Client) {
		c.setConnected(true)
		log.Printf("[mqtt] connected to %s as %s", c.opts.Broker, c.opts.ClientID)
		for _, topic := range []string{TopicTCD, TopicCmd} {
			tok := pc.Subscribe(topic, 0, c.onMessage)
			if !tok.WaitTimeout(5 * time.Second) {
				log.Printf("[mqtt] subscribe %s: timeout", topic)
				continue
			}
			if err := tok.Error(); err != nil {
				log.Printf("[mqtt] subscribe %s: %v", topic, err)
			}
		}
	}
	po.OnConnectionLost = func(_ paho.Client, err error) {
		c.setConnected(false)
		log.Printf("[mqtt] connection lost: %v (reconnecting)", err)
	}

	c.cli = paho.NewClient(po)
	log.Printf("[mqtt] connecting to %s", c.opts.Broker)

	tok := c.cli.Connect()
	select {
	case <-tok.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		// Retries continue in the background.
		log.Printf("[mqtt] broker %s not reachable yet", c.opts.Broker)
		return nil
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", c.opts.Broker, err)
	}
	return nil
}

// Run connects and disconnects when ctx ends.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	c.Close()
	return nil
}

// Close disconnects from the broker.
func (c *Client) Close() {
	if c.cli == nil {
		return
	}
	c.cli.Disconnect(250)
	c.setConnected(false)
	log.Printf("[mqtt] disconnected")
}

func (c *Client) onMessage(_ paho.Client, m paho.Message) {
	c.deliver(Message{Topic: m.Topic(), Payload: append([]byte(nil), m.Payload()...), At: time.Now()})
}

func (c *Client) deliver(m Message) {
	select {
	case c.msgs <- m:
	default:
		c.mu.Lock()
		c.dropped++
		c.mu.Unlock()
		log.Printf("[mqtt] queue full, dropping %s", m.Topic)
	}
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func brokerURL(broker string) string {
	if _, _, err := net.SplitHostPort(broker); err != nil {
		broker += ":1883"
	}
	return fmt.Sprintf("tcp://%s", broker)
}
