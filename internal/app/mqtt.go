package app

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect to %s: %w", broker, token.Error())
	}
	return client, nil
}

// subscribeJSON subscribes to topic and hands every payload that decodes as
// T to fn. component prefixes log lines.
func subscribeJSON[T any](client mqtt.Client, topic, component string, fn func(T)) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var v T
		if err := json.Unmarshal(msg.Payload(), &v); err != nil {
			log.Printf("%s: %s unmarshal error: %v", component, msg.Topic(), err)
			return
		}
		fn(v)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("%s: subscribed to %s", component, topic)
	return nil
}

// mqttPublisher publishes sample batches and poses of every device.
type mqttPublisher struct {
	client       mqtt.Client
	topicSamples string
	topicPose    string
}

func (p *mqttPublisher) publish(topic string, v interface{}, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("mqtt: json marshal error (%s): %v", topic, err)
		return
	}
	if token := p.client.Publish(topic, 0, retained, payload); token.Wait() && token.Error() != nil {
		log.Printf("mqtt: publish error (%s): %v", topic, token.Error())
	}
}

// PublishBatch publishes b on <TOPIC_SAMPLES>/<device>.
func (p *mqttPublisher) PublishBatch(b SampleBatch) {
	p.publish(DeviceTopic(p.topicSamples, b.Device), b, false)
}

// PublishPose publishes m as the retained pose of its device.
func (p *mqttPublisher) PublishPose(m PoseMessage) {
	p.publish(DeviceTopic(p.topicPose, m.Device), m, true)
}
