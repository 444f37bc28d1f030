// Package publisher implements the Publisher (C8): turning a read tag's
// current value, or its noread policy, into an MQTT publish.
package publisher

import (
	"context"
	"fmt"

	"mbbridge/pkg/registry"
	"mbbridge/pkg/tag"
)

// MQTTClient is the narrow seam this package needs from the MQTT
// integration layer.
type MQTTClient interface {
	Connected() bool
	Publish(ctx context.Context, topic string, payload string, retain bool) error
}

// Publisher implements §4.8 publish(tag) and clear_all_tags.
type Publisher struct {
	client MQTTClient
}

// New creates a publisher bound to an MQTT client.
func New(client MQTTClient) *Publisher {
	return &Publisher{client: client}
}

// PublishReadTag implements §4.8 publish(tag) for a read tag.
func (p *Publisher) PublishReadTag(ctx context.Context, t *tag.ReadTag) error {
	if !p.client.Connected() || t.Topic == "" {
		return nil
	}

	if !t.InNoread() {
		return p.client.Publish(ctx, t.Topic, formatFloat(t.Format, t.ScaledValue()), t.PublishRetain)
	}

	if !t.NoreadIgnoreExceeded() {
		return nil
	}

	switch t.NoreadAction {
	case tag.NoreadDoNothing:
		return nil
	case tag.NoreadClearRetained:
		return p.client.Publish(ctx, t.Topic, "", true)
	case tag.NoreadPublishValue:
		return p.client.Publish(ctx, t.Topic, formatFloat(t.Format, t.NoreadValue), t.PublishRetain)
	default:
		return nil
	}
}

// PublishLocalTag publishes a local (non-Modbus) tag's current value.
func (p *Publisher) PublishLocalTag(ctx context.Context, t *tag.LocalTag) error {
	if !p.client.Connected() || t.Topic == "" {
		return nil
	}
	return p.client.Publish(ctx, t.Topic, fmt.Sprintf("%f", t.Value), t.Retain)
}

// ClearAllTags implements clear_all_tags(publish_noread, clear_retain),
// the shutdown step of §4.8.
func (p *Publisher) ClearAllTags(ctx context.Context, reg *registry.Registry, publishNoread, clearRetain bool) {
	for _, t := range reg.ReadTags {
		if t.Topic == "" {
			continue
		}
		if publishNoread {
			_ = p.client.Publish(ctx, t.Topic, formatFloat(t.Format, t.NoreadValue), t.PublishRetain)
		}
		if clearRetain {
			_ = p.client.Publish(ctx, t.Topic, "", true)
		}
	}
	for _, lt := range reg.LocalTags() {
		if lt.Topic == "" {
			continue
		}
		if clearRetain {
			_ = p.client.Publish(ctx, lt.Topic, "", true)
		}
	}
}

func formatFloat(format string, value float64) string {
	if format == "" {
		format = "%f"
	}
	return fmt.Sprintf(format, value)
}
