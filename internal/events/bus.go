// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package events

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tomtom215/solutio/internal/logging"
)

// ErrBusClosed is returned by Publish and Subscribe after Close.
var ErrBusClosed = errors.New("event bus closed")

var (
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_published_total",
		Help: "Total number of sync events published",
	}, []string{"type"})

	eventsDecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "events_decode_errors_total",
		Help: "Total number of event messages that could not be decoded",
	})
)

// Publisher is implemented by anything that accepts sync events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Config holds event bus configuration.
type Config struct {
	// OutputBuffer is the per-subscriber channel buffer.
	OutputBuffer int64
}

// DefaultConfig returns the default bus configuration.
func DefaultConfig() Config {
	return Config{OutputBuffer: 64}
}

// Bus is a Watermill gochannel Pub/Sub carrying Event messages.
type Bus struct {
	pubsub *gochannel.GoChannel
	buffer int64
	closed atomic.Bool
}

// NewBus creates an in-memory event bus.
func NewBus(cfg Config) *Bus {
	if cfg.OutputBuffer <= 0 {
		cfg.OutputBuffer = DefaultConfig().OutputBuffer
	}
	logger := watermill.NewSlogLogger(logging.NewSlogLogger())
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: cfg.OutputBuffer,
		}, logger),
		buffer: cfg.OutputBuffer,
	}
}

// Publish sends ev to every current subscriber. ID and Time are filled in
// when empty.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	if ev.ID == "" {
		ev.ID = watermill.NewUUID()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := message.NewMessage(ev.ID, payload)
	msg.Metadata.Set("type", string(ev.Type))
	if cid := logging.CorrelationIDFromContext(ctx); cid != "" {
		msg.Metadata.Set("correlation_id", cid)
	}

	if err := b.pubsub.Publish(Topic, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	eventsPublished.WithLabelValues(string(ev.Type)).Inc()
	return nil
}

// Subscribe returns a channel of decoded events. The channel is closed when
// ctx is canceled or the bus is closed. Messages are acknowledged as they
// are decoded.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Event, error) {
	if b.closed.Load() {
		return nil, ErrBusClosed
	}
	msgs, err := b.pubsub.Subscribe(ctx, Topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", Topic, err)
	}

	out := make(chan Event, b.buffer)
	go func() {
		defer close(out)
		for msg := range msgs {
			var ev Event
			err := json.Unmarshal(msg.Payload, &ev)
			msg.Ack()
			if err != nil {
				eventsDecodeErrors.Inc()
				logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping undecodable sync event")
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close shuts down the bus and closes every subscriber channel.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.pubsub.Close()
}
