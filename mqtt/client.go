package mqtt

import (
	"context"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/pkg/errors"
)

const (
	connectTimeout   = 5 * time.Second
	subscribeTimeout = 15 * time.Second
	publishTimeout   = 4 * time.Second
)

// Handler consumes publishes arriving on its subscription topic.
type Handler interface {
	MqttHandle(pub *paho.Publish)
	MqttSubscribeTopic() string
}

// Publisher is the outbound half of the client, narrow enough for fakes.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Client wraps an autopaho connection manager: reconnecting session,
// subscriptions for the registered handlers, QoS 1 publishes.
type Client struct {
	config   autopaho.ClientConfig
	conn     *autopaho.ConnectionManager
	logger   *log.Logger
	handlers []Handler
}

func NewClient(broker, clientId string) (*Client, error) {
	addr, err := url.Parse(broker)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing broker url %q", broker)
	}

	c := &Client{
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "mqtt: ",
			Level:  log.GetLevel(),
		}),
	}

	c.config = autopaho.ClientConfig{
		ServerUrls:            []*url.URL{addr},
		KeepAlive:             20,
		SessionExpiryInterval: 60,
		OnConnectionUp:        c.onConnUp,
		OnConnectError:        c.onConnError,
		ClientConfig: paho.ClientConfig{
			ClientID:           clientId,
			OnClientError:      c.onConnError,
			OnServerDisconnect: c.onSrvDisconnect,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				c.route,
			},
		},
	}

	return c, nil
}

// Connect establishes the session. The handler topics are subscribed on
// every connection up, so they survive broker reconnects.
func (c *Client) Connect(ctx context.Context, handlers []Handler) error {
	c.handlers = handlers

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, err := autopaho.NewConnection(ctx, c.config)
	if err != nil {
		return errors.Wrap(err, "starting mqtt connection manager")
	}
	c.conn = conn

	return errors.Wrap(conn.AwaitConnection(ctx), "awaiting mqtt connection")
}

func (c *Client) Publish(topic string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	_, err := c.conn.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     1,
		Payload: payload,
	})
	return errors.Wrapf(err, "publishing to %s", topic)
}

func (c *Client) Disconnect(ctx context.Context) error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Disconnect(ctx)
}

func (c *Client) onConnUp(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
	c.logger.Info("connected to broker")

	if len(c.handlers) == 0 {
		return
	}
	subs := make([]paho.SubscribeOptions, 0, len(c.handlers))
	for _, h := range c.handlers {
		subs = append(subs, paho.SubscribeOptions{Topic: h.MqttSubscribeTopic(), QoS: 1})
	}

	ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
	defer cancel()
	if _, err := cm.Subscribe(ctx, &paho.Subscribe{Subscriptions: subs}); err != nil {
		c.logger.Error("subscribing handler topics", "err", err)
	}
}

func (c *Client) onConnError(err error) {
	c.logger.Error("mqtt connection error", "err", err)
}

func (c *Client) onSrvDisconnect(d *paho.Disconnect) {
	c.logger.Info("disconnected from broker")
}

// route hands an incoming publish to every handler whose subscription
// matches its topic.
func (c *Client) route(pr paho.PublishReceived) (bool, error) {
	handled := false
	for _, h := range c.handlers {
		if topicMatches(h.MqttSubscribeTopic(), pr.Packet.Topic) {
			h.MqttHandle(pr.Packet)
			handled = true
		}
	}
	return handled, nil
}

// topicMatches supports the single-level + wildcard, enough for the
// subscriptions this package sets up.
func topicMatches(filter, topic string) bool {
	filterParts := strings.Split(filter, "/")
	topicParts := strings.Split(topic, "/")
	if len(filterParts) != len(topicParts) {
		return false
	}
	for i := range filterParts {
		if filterParts[i] != "+" && filterParts[i] != topicParts[i] {
			return false
		}
	}
	return true
}
