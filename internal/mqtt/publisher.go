package mqtt

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/avilanova/metermux2mqtt/internal/events"

	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// Publisher pushes sensor updates and discovery documents through the
// MQTT client. Publish failures are logged and dropped; the next scan
// cycle carries fresh values anyway.
type Publisher struct {
	client         *MQTTClient
	discoveryTopic string
	logger         *zap.Logger
}

func NewPublisher(client *MQTTClient, discoveryTopic string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		client:         client,
		discoveryTopic: discoveryTopic,
		logger:         logger.With(zap.String("component", "mqtt_publisher")),
	}
}

func (p *Publisher) PublishBridgeState(online bool) {
	payload := MQTT_PAYLOAD_OFFLINE
	if online {
		payload = MQTT_PAYLOAD_ONLINE
	}
	p.client.Publish(p.client.BridgeStateTopic(), payload, 0, true, p.logResult("bridge state"), publishTimeout)
}

// PublishDiscovery announces the sensor catalog to Home Assistant.
func (p *Publisher) PublishDiscovery(sensors []events.GenericSensor) {
	for _, sensor := range sensors {
		msg := GenericSensorToHADiscoveryMessage(p.client, sensor)
		body, err := json.Marshal(msg)
		if err != nil {
			p.logger.Error("discovery marshal", zap.Error(err), zap.String("sensor", sensor.Id))
			continue
		}
		topic := HADiscoverySensorTopic(p.discoveryTopic, sensor)
		p.client.Publish(topic, body, 0, true, p.logResult("discovery"), publishTimeout)
	}
}

// PublishUpdates sends one state message per sensor update event.
func (p *Publisher) PublishUpdates(evs []any) {
	for _, ev := range evs {
		switch e := ev.(type) {
		case events.SensorUpdateEvent:
			payload := strconv.FormatFloat(e.Value, 'f', int(e.Decimals), 64)
			p.client.Publish(p.client.SensorStateTopic(e.Id), payload, 0, false, p.logResult(e.Id), publishTimeout)
		case events.TextSensorUpdateEvent:
			p.client.Publish(p.client.SensorStateTopic(e.Id), e.Value, 0, false, p.logResult(e.Id), publishTimeout)
		case events.BridgeStateUpdateEvent:
			p.PublishBridgeState(e.Value)
		}
	}
}

func (p *Publisher) logResult(what string) func(error) {
	return func(err error) {
		if err != nil {
			p.logger.Warn("publish failed", zap.String("sensor", what), zap.Error(err))
		}
	}
}
