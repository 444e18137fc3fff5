package mqttbus

import (
	"context"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler processes one message from a topic.
type Handler func(topic string, message mqtt.Message) error

// IConsumer is the consuming side of the bus. The type parameter documents
// the payload schema a consumer is expected to carry.
type IConsumer[T any] interface {
	Consume(ctx context.Context)
	SetHandler(h Handler)
}

// qosFor returns the subscription QoS for a topic. Decision and irrigation
// events must survive a broker reconnect; raw observations are cheap to
// lose.
func qosFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasPrefix(t, "event/irrigationDecision") ||
		strings.HasPrefix(t, "event/irrigationResult") {
		return 1
	}
	return 0
}

// Consumer subscribes to a single topic and hands messages to its handler.
type Consumer[T any] struct {
	client  mqtt.Client
	topic   string
	handler Handler
}

func NewConsumer[T any](client mqtt.Client, topic string, h Handler) *Consumer[T] {
	return &Consumer[T]{client: client, topic: topic, handler: h}
}

func (c *Consumer[T]) SetHandler(h Handler) { c.handler = h }

// Consume subscribes and blocks until the context is cancelled, then
// unsubscribes.
func (c *Consumer[T]) Consume(ctx context.Context) {
	token := c.client.Subscribe(c.topic, qosFor(c.topic), func(_ mqtt.Client, msg mqtt.Message) {
		if c.handler == nil {
			log.Printf("mqttbus: no handler for topic %s", c.topic)
			return
		}
		if err := c.handler(c.topic, msg); err != nil {
			log.Printf("mqttbus: handler error on %s: %v", c.topic, err)
		}
	})
	if token.Wait() && token.Error() != nil {
		log.Printf("mqttbus: subscribe %s: %v", c.topic, token.Error())
		return
	}
	log.Printf("mqttbus: subscribed to %s", c.topic)

	<-ctx.Done()
	c.client.Unsubscribe(c.topic).Wait()
}

// MultiConsumer subscribes to several topics with one handler.
type MultiConsumer[T any] struct {
	client  mqtt.Client
	topics  []string
	handler Handler
}

func NewMultiConsumer[T any](client mqtt.Client, topics []string, h Handler) *MultiConsumer[T] {
	return &MultiConsumer[T]{client: client, topics: topics, handler: h}
}

func (m *MultiConsumer[T]) SetHandler(h Handler) { m.handler = h }

func (m *MultiConsumer[T]) Consume(ctx context.Context) {
	for _, topic := range m.topics {
		topic := topic
		token := m.client.Subscribe(topic, qosFor(topic), func(_ mqtt.Client, msg mqtt.Message) {
			if m.handler == nil {
				log.Printf("mqttbus: no handler for topic %s", topic)
				return
			}
			if err := m.handler(topic, msg); err != nil {
				log.Printf("mqttbus: handler error on %s: %v", topic, err)
			}
		})
		token.Wait()
		if token.Error() != nil {
			log.Printf("mqttbus: subscribe %s: %v", topic, token.Error())
		} else {
			log.Printf("mqttbus: subscribed to %s", topic)
		}
	}

	<-ctx.Done()
	for _, topic := range m.topics {
		m.client.Unsubscribe(topic)
	}
}
