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

package correlator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/satellitehive/pkg/logger"
	"github.com/carverauto/satellitehive/pkg/models"
)

func TestAwaitReceivesFulfilledResult(t *testing.T) {
	c := New(time.Minute, logger.NewTestLogger())
	require.NoError(t, c.Register("req_1", "sat_1"))

	want := &models.CommandResult{RequestID: "req_1", Success: true, Stdout: "hi\n"}

	go func() {
		time.Sleep(10 * time.Millisecond)
		assert.True(t, c.Fulfill("req_1", want))
	}()

	got, err := c.Await(context.Background(), "req_1", time.Second)
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Equal(t, 0, c.Pending(), "a delivered result is consumed")
}

func TestResultRetainedUntilAwaited(t *testing.T) {
	c := New(time.Minute, logger.NewTestLogger())
	require.NoError(t, c.Register("req_1", "sat_1"))
	require.True(t, c.Fulfill("req_1", &models.CommandResult{RequestID: "req_1"}))

	got, err := c.Await(context.Background(), "req_1", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "req_1", got.RequestID)

	_, err = c.Await(context.Background(), "req_1", 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrUnknownRequest)
}

func TestAwaitTimesOutAfterBound(t *testing.T) {
	c := New(time.Minute, logger.NewTestLogger())
	require.NoError(t, c.Register("req_1", "sat_1"))

	start := time.Now()
	_, err := c.Await(context.Background(), "req_1", 100*time.Millisecond)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, 1, c.Pending(), "timed out registrations are left to the reaper")
}

func TestFulfillUnknownOrDuplicate(t *testing.T) {
	c := New(time.Minute, logger.NewTestLogger())

	assert.False(t, c.Fulfill("req_nope", &models.CommandResult{}))

	require.NoError(t, c.Register("req_1", "sat_1"))
	assert.ErrorIs(t, c.Register("req_1", "sat_1"), ErrDuplicateRequest)

	first := &models.CommandResult{Stdout: "first"}
	assert.True(t, c.Fulfill("req_1", first))
	assert.False(t, c.Fulfill("req_1", &models.CommandResult{Stdout: "second"}))

	got, err := c.Await(context.Background(), "req_1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Stdout)
}

func TestFulfillFromWrongDeviceIsDropped(t *testing.T) {
	c := New(time.Minute, logger.NewTestLogger())
	require.NoError(t, c.Register("req_1", "sat_1"))

	assert.False(t, c.Fulfill("req_1", &models.CommandResult{DeviceID: "sat_2"}))
	assert.True(t, c.Fulfill("req_1", &models.CommandResult{DeviceID: "sat_1"}))
}

func TestRegistrationsAreReaped(t *testing.T) {
	c := New(20*time.Millisecond, logger.NewTestLogger())
	require.NoError(t, c.Register("req_1", "sat_1"))

	require.Eventually(t, func() bool { return c.Pending() == 0 }, time.Second, 5*time.Millisecond)
	assert.False(t, c.Fulfill("req_1", &models.CommandResult{}))
}

func TestForgetAndContextCancel(t *testing.T) {
	c := New(time.Minute, logger.NewTestLogger())
	require.NoError(t, c.Register("req_1", "sat_1"))

	device, ok := c.DeviceFor("req_1")
	require.True(t, ok)
	assert.Equal(t, "sat_1", device)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Await(ctx, "req_1", time.Second)
	assert.ErrorIs(t, err, context.Canceled)

	c.Forget("req_1")
	assert.Equal(t, 0, c.Pending())
}

func TestIndependentRequestsPerDevice(t *testing.T) {
	c := New(time.Minute, logger.NewTestLogger())

	const n = 20

	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		id := models.NewRequestID()
		require.NoError(t, c.Register(id, "sat_1"))

		wg.Add(1)

		go func() {
			defer wg.Done()

			res, err := c.Await(context.Background(), id, time.Second)
			assert.NoError(t, err)
			assert.Equal(t, id, res.RequestID)
		}()

		go c.Fulfill(id, &models.CommandResult{RequestID: id})
	}

	wg.Wait()
	assert.Equal(t, 0, c.Pending())
}
