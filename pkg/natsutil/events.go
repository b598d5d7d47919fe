/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package natsutil publishes fleet events to NATS JetStream as CloudEvents.
package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/satellitehive/pkg/logger"
	"github.com/carverauto/satellitehive/pkg/models"
)

const (
	eventSource      = "satellitehive/hub"
	defaultQueueSize = 1024
	publishTimeout   = 5 * time.Second
)

// EventPublisher sends CloudEvents to a JetStream stream from one
// background goroutine. Publishing never blocks the caller; events are
// dropped when the queue is full.
type EventPublisher struct {
	js     jetstream.JetStream
	nc     *nats.Conn
	stream string
	prefix string
	logger logger.Logger

	queue    chan *models.CloudEvent
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Connect dials NATS with the configured credentials and returns a
// publisher that owns the connection.
func Connect(ctx context.Context, cfg *models.NATSConfig, log logger.Logger, extraOpts ...nats.Option) (*EventPublisher, error) {
	opts := []nats.Option{
		nats.Name("satellitehive"),
		nats.MaxReconnects(-1),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	tlsConf, err := TLSConfig(cfg.TLS)
	if err != nil {
		return nil, fmt.Errorf("failed to build NATS TLS config: %w", err)
	}

	if tlsConf != nil {
		opts = append(opts, nats.Secure(tlsConf))
	}

	if cfg.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFile))
	}

	opts = append(opts, extraOpts...)

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	p, err := NewEventPublisher(ctx, nc, cfg.Stream, cfg.SubjectPrefix, log)
	if err != nil {
		nc.Close()
		return nil, err
	}

	p.nc = nc

	return p, nil
}

// NewEventPublisher ensures the stream covers prefix.> and starts the
// publishing goroutine. The caller keeps ownership of nc.
func NewEventPublisher(ctx context.Context, nc *nats.Conn, streamName, prefix string, log logger.Logger) (*EventPublisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if err := ensureStream(ctx, js, streamName, prefix+".>"); err != nil {
		return nil, err
	}

	p := &EventPublisher{
		js:     js,
		stream: streamName,
		prefix: prefix,
		logger: log,
		queue:  make(chan *models.CloudEvent, defaultQueueSize),
		stop:   make(chan struct{}),
	}

	p.wg.Add(1)

	go p.run()

	return p, nil
}

func ensureStream(ctx context.Context, js jetstream.JetStream, name, subject string) error {
	stream, err := js.Stream(ctx, name)
	if err != nil {
		if !isStreamMissingErr(err) {
			return fmt.Errorf("failed to look up stream %s: %w", name, err)
		}

		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     name,
			Subjects: []string{subject},
		})
		if err != nil {
			return fmt.Errorf("failed to create stream %s: %w", name, err)
		}

		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stream %s: %w", name, err)
	}

	subjects := ensureSubjectList(info.Config.Subjects, subject)
	if len(subjects) == len(info.Config.Subjects) {
		return nil
	}

	cfg := info.Config
	cfg.Subjects = subjects

	if _, err := js.UpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("failed to add %s to stream %s: %w", subject, name, err)
	}

	return nil
}

func isStreamMissingErr(err error) bool {
	return errors.Is(err, jetstream.ErrStreamNotFound) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrStreamNotFound) ||
		errors.Is(err, nats.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrNoResponders)
}

// ensureSubjectList appends subject unless an existing pattern covers it.
func ensureSubjectList(subjects []string, subject string) []string {
	for _, s := range subjects {
		if matchesSubject(s, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// matchesSubject reports whether pattern, which may use * and >, covers subject.
func matchesSubject(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")

	for i, tok := range pt {
		if tok == ">" {
			return len(st) > i
		}

		if i >= len(st) {
			return false
		}

		if tok != "*" && tok != st[i] {
			return false
		}
	}

	return len(pt) == len(st)
}

func (p *EventPublisher) run() {
	defer p.wg.Done()

	for {
		select {
		case evt := <-p.queue:
			p.publish(evt)
		case <-p.stop:
			for {
				select {
				case evt := <-p.queue:
					p.publish(evt)
				default:
					return
				}
			}
		}
	}
}

func (p *EventPublisher) publish(evt *models.CloudEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		p.logger.Error().Err(err).Str("type", evt.Type).Msg("Failed to marshal event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	ack, err := p.js.Publish(ctx, evt.Subject, payload)
	if err != nil {
		p.logger.Warn().Err(err).Str("subject", evt.Subject).Msg("Failed to publish event")
		return
	}

	p.logger.Debug().
		Str("id", evt.ID).
		Str("subject", evt.Subject).
		Uint64("seq", ack.Sequence).
		Msg("Published event")
}

func (p *EventPublisher) enqueue(eventType string, data interface{}) {
	now := time.Now().UTC()
	evt := &models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            eventType,
		DataContentType: "application/json",
		Subject:         p.prefix + "." + eventType,
		Time:            &now,
		Data:            data,
	}

	select {
	case <-p.stop:
		return
	default:
	}

	select {
	case p.queue <- evt:
	default:
		p.logger.Warn().Str("type", eventType).Msg("Event queue full, dropping event")
	}
}

func (p *EventPublisher) SatelliteConnected(_ context.Context, view *models.DeviceView) {
	if view == nil || view.Device == nil {
		return
	}

	p.enqueue(models.EventSatelliteConnected, models.SatelliteEventData{
		SatelliteID: view.ID,
		Name:        view.Name,
		Version:     view.AgentVersion,
		RemoteAddr:  view.LastIP,
	})
}

func (p *EventPublisher) SatelliteDisconnected(_ context.Context, deviceID string) {
	p.enqueue(models.EventSatelliteDisconnected, models.SatelliteEventData{SatelliteID: deviceID})
}

func (p *EventPublisher) SessionEnded(_ context.Context, s *models.Session) {
	if s == nil {
		return
	}

	p.enqueue(models.EventSessionEnded, models.SessionEventData{
		SessionID:   s.ID,
		SatelliteID: s.DeviceID,
		Reason:      s.EndReason,
		ExitCode:    s.ExitCode,
	})
}

// Close flushes queued events and closes an owned connection.
func (p *EventPublisher) Close() {
	p.stopOnce.Do(func() {
		close(p.stop)
		p.wg.Wait()

		if p.nc != nil {
			p.nc.Close()
		}
	})
}
