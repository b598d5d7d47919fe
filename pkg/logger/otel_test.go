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
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
)

func TestOTelWriter_Disabled(t *testing.T) {
	writer, err := NewOTelWriter(context.Background(), OTelConfig{Enabled: false})
	require.ErrorIs(t, err, ErrOTelLoggingDisabled)
	assert.Nil(t, writer)
}

func TestOTelWriter_NoEndpoint(t *testing.T) {
	writer, err := NewOTelWriter(context.Background(), OTelConfig{Enabled: true})
	require.ErrorIs(t, err, ErrOTelEndpointRequired)
	assert.Nil(t, writer)
}

func TestInitializeMetricsDisabled(t *testing.T) {
	provider, err := InitializeMetrics(context.Background(), MetricsConfig{})
	require.ErrorIs(t, err, ErrOTelMetricsDisabled)
	assert.Nil(t, provider)
}

func TestInitializeTracingWithoutExporter(t *testing.T) {
	tp, err := InitializeTracing(context.Background(), TracingConfig{ServiceName: "hive-test"})
	require.NoError(t, err)

	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := GetTracer("test").Start(context.Background(), "op")
	defer span.End()

	assert.True(t, span.SpanContext().IsValid())
}

func TestMapZerologLevelToOTEL(t *testing.T) {
	assert.Equal(t, otellog.SeverityWarn, severityOf("WARN"))
	assert.Equal(t, otellog.SeverityFatal, severityOf("panic"))
	assert.Equal(t, otellog.SeverityInfo, severityOf("unknown"))
}

func TestFormatAttributeValueTruncates(t *testing.T) {
	long := strings.Repeat("x", maxAttributeValueLength+10)

	got := attributeString(long)
	assert.Len(t, got, maxAttributeValueLength)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, "null", attributeString(nil))
	assert.Equal(t, `{"a":1}`, attributeString(map[string]interface{}{"a": 1}))
}

func TestClipKeepsRunesWhole(t *testing.T) {
	s := strings.Repeat("é", 10) // 20 bytes

	got := clip(s, 8)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, "éé...", got)
	assert.Equal(t, "short", clip("short", 8))
}

func TestParseHeaderList(t *testing.T) {
	got := parseHeaderList(" x-api-key = abc ,broken, tenant=hive")

	assert.Equal(t, map[string]string{"x-api-key": "abc", "tenant": "hive"}, got)
	assert.Empty(t, parseHeaderList(""))
}

func TestResolveCollectorMissingCA(t *testing.T) {
	_, err := resolveCollector(&OTelConfig{
		Enabled:  true,
		Endpoint: "collector:4317",
		TLS:      &TLSConfig{CAFile: "/nonexistent/ca.pem"},
	})
	require.Error(t, err)

	col, err := resolveCollector(&OTelConfig{Endpoint: "collector:4317", Insecure: true})
	require.NoError(t, err)
	assert.True(t, col.insecure)
	assert.Nil(t, col.creds)
}
