// Package mqtt connects splitflapd to an MQTT broker: rendered frames are
// published retained on each display's topic, and messages on the command
// topics are handed to OnCommand.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	mqtt "github.com/soypat/natiu-mqtt"
)

// ErrNotConnected is returned by Publish while there is no broker session.
var ErrNotConnected = errors.New("mqtt: not connected")

// Message is a publish received on a subscribed topic.
type Message struct {
	Topic   string
	Payload []byte
}

type Client struct {
	ID        string
	Timeout   time.Duration // Deadline of each broker round trip.
	KeepAlive time.Duration
	Logger    *slog.Logger
	Username  string // MQTT broker username (optional)
	Password  string // MQTT broker password (optional, requires Username)
	// OnCommand receives messages on subscribed topics. It runs on the Run
	// goroutine, never concurrently with itself.
	OnCommand func(ctx context.Context, msg Message)
	// Dial opens the broker connection. Defaults to a net.Dialer.
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)

	mu       sync.Mutex
	client   *mqtt.Client
	conn     net.Conn
	packetID uint16
	received chan Message
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.Logger
}

func (c *Client) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 5 * time.Second
	}
	return c.Timeout
}

func (c *Client) nextPacketID() uint16 {
	c.packetID++
	if c.packetID == 0 {
		c.packetID = 1
	}
	return c.packetID
}

// onPub queues a received publish for Run. A full queue drops the message.
func (c *Client) onPub(_ mqtt.Header, varPub mqtt.VariablesPublish, r io.Reader) error {
	payload, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	msg := Message{Topic: string(varPub.TopicName), Payload: payload}
	select {
	case c.received <- msg:
	default:
		c.logger().Warn("mqtt:command-dropped", slog.String("topic", msg.Topic))
	}
	return nil
}

// Connect dials addr and completes the MQTT handshake.
func (c *Client) Connect(ctx context.Context, addr string) error {
	log := c.logger()
	dial := c.Dial
	if dial == nil {
		var d net.Dialer
		dial = d.DialContext
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.received == nil {
		c.received = make(chan Message, 16)
	}

	log.Info("socket:dialing", slog.String("addr", addr))
	dialCtx, cancel := context.WithTimeout(ctx, c.timeout())
	conn, err := dial(dialCtx, "tcp", addr)
	cancel()
	if err != nil {
		return fmt.Errorf("mqtt: dialing %s: %w", addr, err)
	}

	client := mqtt.NewClient(mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, 4096)},
		OnPub:   c.onPub,
	})
	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT([]byte(c.ID))
	if c.KeepAlive > 0 {
		varconn.KeepAlive = uint16(c.KeepAlive / time.Second)
	}
	// Set authentication credentials if provided
	if c.Username != "" {
		varconn.Username = []byte(c.Username)
		if c.Password != "" {
			varconn.Password = []byte(c.Password)
		}
	}

	log.Info("mqtt:start-connecting")
	conn.SetDeadline(time.Now().Add(c.timeout()))
	if err := client.StartConnect(conn, &varconn); err != nil {
		conn.Close()
		return fmt.Errorf("mqtt: connect: %w", err)
	}
	for retries := 50; retries > 0 && !client.IsConnected(); retries-- {
		if err := ctx.Err(); err != nil {
			conn.Close()
			return err
		}
		if err := client.HandleNext(); err != nil {
			log.Error("mqtt:handle-next-failed", slog.Any("reason", err))
			break
		}
	}
	if !client.IsConnected() {
		conn.Close()
		return fmt.Errorf("mqtt: connect: %w", errors.Join(ErrNotConnected, client.Err()))
	}
	conn.SetDeadline(time.Time{})

	c.client, c.conn = client, conn
	log.Info("mqtt:connected", slog.String("addr", addr), slog.String("client", c.ID))
	return nil
}

// Subscribe asks the broker for every message on topics. The SUBACK is
// consumed by Run.
func (c *Client) Subscribe(topics ...string) error {
	if len(topics) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil || !c.client.IsConnected() {
		return ErrNotConnected
	}
	filters := make([]mqtt.SubscribeRequest, len(topics))
	for i, t := range topics {
		filters[i] = mqtt.SubscribeRequest{TopicFilter: []byte(t), QoS: mqtt.QoS0}
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.timeout()))
	err := c.client.StartSubscribe(mqtt.VariablesSubscribe{
		PacketIdentifier: c.nextPacketID(),
		TopicFilters:     filters,
	})
	if err != nil {
		return fmt.Errorf("mqtt: subscribe: %w", err)
	}
	c.logger().Info("mqtt:subscribed", slog.Any("topics", topics))
	return nil
}

// Publish sends payload on topic with QoS 0. It implements display.Sink.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil || !c.client.IsConnected() {
		return ErrNotConnected
	}
	flags, err := mqtt.NewPublishFlags(mqtt.QoS0, false, retain)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.timeout()))
	err = c.client.PublishPayload(flags, mqtt.VariablesPublish{
		TopicName:        []byte(topic),
		PacketIdentifier: c.nextPacketID(),
	}, payload)
	if err != nil {
		return fmt.Errorf("mqtt: publish: %w", err)
	}
	c.logger().Debug("mqtt:published",
		slog.String("topic", topic),
		slog.Int("bytes", len(payload)),
		slog.Bool("retain", retain),
	)
	return nil
}

func (c *Client) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return ErrNotConnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.timeout()))
	return c.client.StartPing()
}

// readLoop handles incoming packets until the connection fails.
func (c *Client) readLoop(client *mqtt.Client, conn net.Conn, idle time.Duration, errc chan<- error) {
	for {
		if idle > 0 {
			conn.SetReadDeadline(time.Now().Add(idle))
		}
		if err := client.HandleNext(); err != nil {
			errc <- err
			return
		}
		if !client.IsConnected() {
			errc <- errors.Join(ErrNotConnected, client.Err())
			return
		}
	}
}

// Run keeps a broker session alive until ctx is done: it connects, subscribes
// to topics, pings every KeepAlive and passes received messages to OnCommand.
// A lost connection is retried after a pause.
func (c *Client) Run(ctx context.Context, addr string, topics []string) error {
	log := c.logger()
	const retryPause = 2 * time.Second

	for {
		if err := c.Connect(ctx, addr); err != nil {
			log.Error("mqtt:connect-failed", slog.Any("reason", err))
			if !pause(ctx, retryPause) {
				return ctx.Err()
			}
			continue
		}
		if err := c.Subscribe(topics...); err != nil {
			log.Error("mqtt:subscribe-failed", slog.Any("reason", err))
		}

		err := c.serve(ctx)
		c.drop()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error("mqtt:disconnected", slog.Any("reason", err))
		if !pause(ctx, retryPause) {
			return ctx.Err()
		}
	}
}

// serve runs one connected session.
func (c *Client) serve(ctx context.Context) error {
	c.mu.Lock()
	client, conn := c.client, c.conn
	c.mu.Unlock()

	keepAlive := c.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	errc := make(chan error, 1)
	go c.readLoop(client, conn, 2*keepAlive, errc)

	heartbeat := time.NewTicker(keepAlive)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			return err
		case msg := <-c.received:
			if c.OnCommand != nil {
				c.OnCommand(ctx, msg)
			}
		case <-heartbeat.C:
			if err := c.ping(); err != nil {
				return fmt.Errorf("mqtt: ping: %w", err)
			}
		}
	}
}

// drop closes the current connection, if any.
func (c *Client) drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.client, c.conn = nil, nil
}

// Close disconnects from the broker.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.timeout()))
	err := c.client.Disconnect(errors.New("client closing"))
	cerr := c.conn.Close()
	c.client, c.conn = nil, nil
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return errors.Join(err, cerr)
}

func pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
