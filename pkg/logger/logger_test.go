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

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	config := &Config{
		Level:  "debug",
		Debug:  true,
		Output: "stdout",
	}

	require.NoError(t, Init(context.Background(), config))

	l := GetLogger()
	assert.Equal(t, zerolog.DebugLevel, l.GetLevel())
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	err := Init(context.Background(), &Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestSetDebug(t *testing.T) {
	SetDebug(true)

	l := GetLogger()
	assert.Equal(t, zerolog.DebugLevel, l.GetLevel())

	SetDebug(false)

	l = GetLogger()
	assert.Equal(t, zerolog.InfoLevel, l.GetLevel())
}

func TestWithComponentAddsField(t *testing.T) {
	var buf bytes.Buffer

	l := Wrap(zerolog.New(&buf))
	componentLogger := l.WithComponent("agent-hub")
	componentLogger.Info().Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "agent-hub", entry["component"])
	assert.Equal(t, "hello", entry["message"])
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer

	l := Wrap(zerolog.New(&buf))
	fieldLogger := l.WithFields(map[string]interface{}{"device_id": "sat_1", "count": 2})
	fieldLogger.Info().Msg("fields")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sat_1", entry["device_id"])
	assert.InDelta(t, 2, entry["count"], 0)
}

func TestNewWriterLoggerHonoursLevel(t *testing.T) {
	l, err := NewWriterLogger(context.Background(), &Config{Level: "warn", Output: "stderr"})
	require.NoError(t, err)

	assert.Nil(t, l.Info(), "info events should be disabled at warn level")
	assert.NotNil(t, l.Warn())
}

func TestTestLoggerDiscards(t *testing.T) {
	l := NewTestLogger()
	assert.Nil(t, l.Error())
	assert.NotPanics(t, func() { l.SetDebug(true) })
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.NotEmpty(t, config.Level)
	assert.NotEmpty(t, config.Output)
	assert.Equal(t, Duration(5_000_000_000), config.OTel.BatchTimeout)
}

func TestMultiWriter(t *testing.T) {
	var a, b bytes.Buffer

	mw := NewMultiWriter(&a, &b)
	n, err := mw.Write([]byte("line"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "line", a.String())
	assert.Equal(t, "line", b.String())
}
