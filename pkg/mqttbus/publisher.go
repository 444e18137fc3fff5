package mqttbus

import (
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IPublisher is the publishing side of the bus.
type IPublisher interface {
	Publish(payload string) error
	PublishToQoS(topic string, qos byte, retained bool, payload string) error
	Close()
}

// Publisher publishes to a default topic at QoS 0, or to an explicit topic
// and QoS for messages that must survive redelivery.
type Publisher struct {
	client mqtt.Client
	topic  string
}

func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

func (p *Publisher) Publish(payload string) error {
	return p.PublishToQoS(p.topic, 0, false, payload)
}

func (p *Publisher) PublishToQoS(topic string, qos byte, retained bool, payload string) error {
	token := p.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("mqttbus: publish to %s: %w", topic, token.Error())
	}
	return nil
}

// Close disconnects the underlying client.
func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
		log.Println("mqttbus: publisher disconnected")
	}
}
