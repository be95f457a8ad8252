// Package alert delivers risk alert events to the notification channel.
// Alerts are raised for HIGH/CRITICAL assessments and for any assessment
// carrying a food-interaction flag.
package alert

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/medsafe-risk-server/internal/domain"
)

// Channel is the Redis pub/sub channel alert events are published on.
const Channel = "medsafe.risk.alerts"

// RedisPublisher publishes alert events on a Redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *logrus.Logger
}

// NewRedisPublisher creates a publisher from a Redis URL and verifies
// connectivity.
func NewRedisPublisher(redisURL string, logger *logrus.Logger) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisPublisher{
		client:  client,
		channel: Channel,
		logger:  logger,
	}, nil
}

// PublishAlert serializes the event and publishes it on the alert channel.
func (p *RedisPublisher) PublishAlert(ctx context.Context, event domain.AlertEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal alert event: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"request_id": event.RequestID,
		"patient_id": event.PatientID,
		"risk_level": event.Level.String(),
		"dfi_flag":   event.DFIFlag,
		"channel":    p.channel,
	}).Info("Risk alert published")
	return nil
}

// Close releases the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// LogPublisher is the fallback publisher used when no Redis endpoint is
// configured: events land in the structured log so they are never
// silently dropped.
type LogPublisher struct {
	logger *logrus.Logger
}

// NewLogPublisher creates a log-only alert publisher.
func NewLogPublisher(logger *logrus.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// PublishAlert writes the event to the structured log.
func (p *LogPublisher) PublishAlert(ctx context.Context, event domain.AlertEvent) error {
	p.logger.WithFields(logrus.Fields{
		"request_id":       event.RequestID,
		"patient_id":       event.PatientID,
		"risk_level":       event.Level.String(),
		"triggering_drugs": event.TriggeringDrugs,
		"dfi_flag":         event.DFIFlag,
	}).Warn("RISK_ALERT")
	return nil
}
