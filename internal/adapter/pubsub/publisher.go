package pubsub

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	amqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/webitel/im-presence-service/config"
)

const gochannelBuffer = 64

type PublisherProvider struct {
	cfg    config.PubSubConfig
	logger watermill.LoggerAdapter
}

func NewPublisherProvider(cfg *config.Config, logger watermill.LoggerAdapter) *PublisherProvider {
	return &PublisherProvider{cfg: cfg.PubSub, logger: logger}
}

// Build returns the publisher for pubsub.driver. Topics are routing keys;
// on AMQP every key goes to the single topic exchange named by pubsub.topic.
func (pp *PublisherProvider) Build() (message.Publisher, error) {
	switch pp.cfg.Driver {
	case "gochannel":
		return gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: gochannelBuffer,
		}, pp.logger), nil

	case "amqp":
		exchange := pp.cfg.Topic
		pub, err := amqp.NewPublisher(amqp.Config{
			Connection: amqp.ConnectionConfig{AmqpURI: pp.cfg.AMQPURL},
			Marshaler:  amqp.DefaultMarshaler{},
			Exchange: amqp.ExchangeConfig{
				GenerateName: func(string) string { return exchange },
				Type:         "topic",
				Durable:      true,
			},
			Publish: amqp.PublishConfig{
				GenerateRoutingKey: func(topic string) string { return topic },
			},
			TopologyBuilder: &amqp.DefaultTopologyBuilder{},
		}, pp.logger)
		if err != nil {
			return nil, fmt.Errorf("amqp publisher: %w", err)
		}
		return pub, nil

	default:
		return nil, fmt.Errorf("pubsub driver %q has no publisher", pp.cfg.Driver)
	}
}
