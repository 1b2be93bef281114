package mqtt

import (
	"context"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/pkg/errors"
)

const subscribeTimeoutSeconds = 15
const connectionTimeoutSeconds = 5
const publishTimeoutSeconds = 4

// Handler receives publishes arriving on its subscribe topic.
type Handler interface {
	MqttHandle(pub *paho.Publish)
	MqttSubscribeTopic() string
}

type Publisher interface {
	Publish(topic string, payload []byte) error
}

type Client struct {
	config   autopaho.ClientConfig
	conn     *autopaho.ConnectionManager
	logger   *log.Logger
	handlers []Handler
}

func NewClient(broker string, clientId string) (mc *Client, err error) {
	addr, err := url.Parse(broker)
	if err != nil {
		return
	}

	mc = &Client{
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "mqtt: ",
			Level:  log.GetLevel(),
		}),
	}

	mc.config = autopaho.ClientConfig{
		ServerUrls:            []*url.URL{addr},
		KeepAlive:             20,
		SessionExpiryInterval: 60,
		OnConnectionUp:        mc.onConnUp,
		OnConnectError:        mc.onConnError,
		ClientConfig: paho.ClientConfig{
			ClientID:           clientId,
			OnClientError:      mc.onConnError,
			OnServerDisconnect: mc.onSrvDisconnect,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				mc.dispatch,
			},
		},
	}

	return
}

// Connect establishes the broker connection; topics of the given handlers
// are subscribed every time the connection comes up.
func (mc *Client) Connect(handlers []Handler) (err error) {
	mc.handlers = handlers

	// The context given to NewConnection governs the lifetime of the whole
	// connection manager, only the await below gets the timeout.
	mc.conn, err = autopaho.NewConnection(context.Background(), mc.config)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeoutSeconds*time.Second)
	defer cancel()

	err = mc.conn.AwaitConnection(ctx)
	return
}

// Disconnect is safe to call on a client whose Connect never succeeded.
func (mc *Client) Disconnect(ctx context.Context) error {
	mc.handlers = nil
	if mc.conn == nil {
		return nil
	}
	return mc.conn.Disconnect(ctx)
}

func (mc *Client) Publish(topic string, payload []byte) (err error) {
	if mc.conn == nil {
		return errors.New("mqtt client is not connected")
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeoutSeconds*time.Second)
	defer cancel()

	_, err = mc.conn.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     1,
		Payload: payload,
	})
	return
}

func (mc *Client) dispatch(pr paho.PublishReceived) (bool, error) {
	for _, handler := range mc.handlers {
		if handler.MqttSubscribeTopic() == pr.Packet.Topic {
			handler.MqttHandle(pr.Packet)
			return true, nil
		}
	}
	return false, nil
}

func (mc *Client) onConnUp(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
	mc.logger.Info("Connected to MQTT broker")

	subs := []paho.SubscribeOptions{}
	for _, handler := range mc.handlers {
		subs = append(subs, paho.SubscribeOptions{
			QoS:   1,
			Topic: handler.MqttSubscribeTopic(),
		})
	}

	if len(subs) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeoutSeconds*time.Second)
	defer cancel()

	_, err := cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: subs,
	})
	if err != nil {
		mc.logger.Error("Failed to subscribe to topics", "err", err)
	}
}

func (mc *Client) onConnError(err error) {
	mc.logger.Error("Received Mqtt connection error", "err", err)
}

func (mc *Client) onSrvDisconnect(d *paho.Disconnect) {
	mc.logger.Info("Disconnected from MQTT broker")
}
