package engine

import (
	"context"

	"mbbridge/pkg/metrics"
	"mbbridge/pkg/mqttbridge"
)

// metricsPublisher wraps the MQTT client with MQTT publish/error counters
// (A4), satisfying both publisher.MQTTClient and liveness.Publisher so it
// can be handed to either without those packages knowing about metrics.
type metricsPublisher struct {
	client  *mqttbridge.Client
	metrics metrics.MetricsCollector
}

func (p *metricsPublisher) Connected() bool {
	return p.client.Connected()
}

func (p *metricsPublisher) Publish(ctx context.Context, topic string, payload string, retain bool) error {
	err := p.client.Publish(ctx, topic, payload, retain)
	if err != nil {
		p.metrics.IncrementMQTTErrors()
	} else {
		p.metrics.IncrementMQTTPublishes()
	}
	return err
}
