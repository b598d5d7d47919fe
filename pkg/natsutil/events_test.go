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

package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/satellitehive/pkg/logger"
	"github.com/carverauto/satellitehive/pkg/models"
)

var errTestFixture = errors.New("fixture")

func runJetStream(t *testing.T) *server.Server {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	require.NoError(t, err)

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS server did not start")
	}

	t.Cleanup(ns.Shutdown)

	return ns
}

func TestEnsureSubjectList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		subjects []string
		subject  string
		want     []string
	}{
		{"adds subject when list empty", nil, "hive.events.>", []string{"hive.events.>"}},
		{"keeps list when wildcard covers", []string{"hive.>"}, "hive.events.>", []string{"hive.>"}},
		{"appends when unmatched", []string{"logs.*"}, "hive.events.>", []string{"logs.*", "hive.events.>"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ensureSubjectList(append([]string(nil), tc.subjects...), tc.subject))
		})
	}
}

func TestMatchesSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern  string
		subject  string
		expected bool
	}{
		{"hive.events.session.ended", "hive.events.session.ended", true},
		{"hive.*.session.ended", "hive.events.session.ended", true},
		{"hive.>", "hive.events.session.ended", true},
		{"hive.events.*", "hive.events.session.ended", false},
		{"logs.*", "hive.events", false},
		{"hive.events.>", "hive.events", false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, matchesSubject(tc.pattern, tc.subject), "%s vs %s", tc.pattern, tc.subject)
	}
}

func TestIsStreamMissingErr(t *testing.T) {
	t.Parallel()

	assert.True(t, isStreamMissingErr(jetstream.ErrStreamNotFound))
	assert.True(t, isStreamMissingErr(nats.ErrNoResponders))
	assert.False(t, isStreamMissingErr(errTestFixture))
}

func TestPublisherDeliversCloudEvents(t *testing.T) {
	ns := runJetStream(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := Connect(ctx, &models.NATSConfig{
		URL:           ns.ClientURL(),
		Stream:        "HIVE_TEST",
		SubjectPrefix: "hive.events",
	}, logger.NewTestLogger())
	require.NoError(t, err)

	code := 0
	p.SatelliteConnected(ctx, &models.DeviceView{Device: &models.Device{ID: "sat_1", Name: "edge"}, IsOnline: true})
	p.SessionEnded(ctx, &models.Session{ID: "sess_1", DeviceID: "sat_1", EndReason: models.EndReasonExited, ExitCode: &code})
	p.SatelliteDisconnected(ctx, "sat_1")
	p.Close()

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)

	defer nc.Close()

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	cons, err := js.OrderedConsumer(ctx, "HIVE_TEST", jetstream.OrderedConsumerConfig{})
	require.NoError(t, err)

	var types []string

	for i := 0; i < 3; i++ {
		msg, err := cons.Next(jetstream.FetchMaxWait(5 * time.Second))
		require.NoError(t, err)

		var evt models.CloudEvent
		require.NoError(t, json.Unmarshal(msg.Data(), &evt))
		assert.Equal(t, "1.0", evt.SpecVersion)
		assert.Equal(t, "hive.events."+evt.Type, msg.Subject())

		types = append(types, evt.Type)
	}

	assert.Equal(t, []string{
		models.EventSatelliteConnected,
		models.EventSessionEnded,
		models.EventSatelliteDisconnected,
	}, types)
}

func TestExistingStreamGainsSubject(t *testing.T) {
	ns := runJetStream(t)
	ctx := context.Background()

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)

	defer nc.Close()

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{Name: "SHARED", Subjects: []string{"other.>"}})
	require.NoError(t, err)

	p, err := NewEventPublisher(ctx, nc, "SHARED", "hive.events", logger.NewTestLogger())
	require.NoError(t, err)

	defer p.Close()

	stream, err := js.Stream(ctx, "SHARED")
	require.NoError(t, err)

	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"other.>", "hive.events.>"}, info.Config.Subjects)
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	p := &EventPublisher{
		prefix: "hive.events",
		logger: logger.NewTestLogger(),
		queue:  make(chan *models.CloudEvent, 1),
		stop:   make(chan struct{}),
	}

	p.Close()
	p.SatelliteDisconnected(context.Background(), "sat_1")
	assert.Empty(t, p.queue)
}
