package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// FrameHandler receives one raw frame payload together with its receipt
// instant. The receipt instant is the timestamp every reading in the frame
// gets, since the source protocol carries no trustworthy clocks.
type FrameHandler func(ctx context.Context, payload []byte, receivedAt time.Time)

// Subscriber delivers raw telemetry frames from the field gateway's MQTT
// broker. Reconnects and redeliveries are the client's business; the
// ingestion side tolerates redelivered frames as harmless duplicates.
type Subscriber struct {
	client mqtt.Client
	topic  string
}

func NewSubscriber(ctx context.Context, brokerURL, clientID, topic string, handler FrameHandler) *Subscriber {
	log := logging.GetFromContext(ctx)

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("connection to broker lost")
	})

	s := &Subscriber{topic: topic}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info().Str("topic", topic).Msg("connected, subscribing")
		token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
			handler(ctx, msg.Payload(), time.Now().UTC())
		})
		if token.Wait() && token.Error() != nil {
			log.Error().Err(token.Error()).Msg("failed to subscribe")
		}
	})

	s.client = mqtt.NewClient(opts)

	return s
}

// Start connects to the broker; the subscription is (re)established by the
// on-connect handler.
func (s *Subscriber) Start() error {
	token := s.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to broker: %s", token.Error().Error())
	}
	return nil
}

func (s *Subscriber) Stop() {
	s.client.Disconnect(250)
}
