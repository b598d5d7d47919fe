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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

var (
	ErrOTelLoggingDisabled  = errors.New("OTel logging is disabled")
	ErrOTelEndpointRequired = errors.New("OTel endpoint is required when enabled")
)

const (
	maxAttributeValueLength = 4096
	defaultLoggerScope      = "satellitehive"
	defaultBatchTimeout     = 5 * time.Second
)

//nolint:gochecknoglobals // shared with ShutdownOTEL
var (
	logProvider   *sdklog.LoggerProvider
	logProviderMu sync.Mutex
)

// OTelWriter is an io.Writer that turns zerolog JSON lines into OTel log
// records. The "component" field selects the instrumentation scope.
type OTelWriter struct {
	ctx      context.Context
	provider *sdklog.LoggerProvider

	mu     sync.Mutex
	scopes map[string]otellog.Logger
}

func NewOTelWriter(ctx context.Context, config OTelConfig) (*OTelWriter, error) {
	if !config.Enabled {
		return nil, ErrOTelLoggingDisabled
	}

	if config.Endpoint == "" {
		return nil, ErrOTelEndpointRequired
	}

	exporter, err := newLogExporter(ctx, &config)
	if err != nil {
		return nil, err
	}

	res, err := newResource(ctx, config.ServiceName, "")
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(config.BatchTimeout)
	if timeout <= 0 {
		timeout = defaultBatchTimeout
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter, sdklog.WithExportTimeout(timeout))),
	)

	logProviderMu.Lock()
	logProvider = provider
	logProviderMu.Unlock()

	global.SetLoggerProvider(provider)

	return &OTelWriter{
		ctx:      ctx,
		provider: provider,
		scopes:   make(map[string]otellog.Logger),
	}, nil
}

func newLogExporter(ctx context.Context, c *OTelConfig) (sdklog.Exporter, error) {
	col, err := resolveCollector(c)
	if err != nil {
		return nil, err
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(col.endpoint)}

	switch {
	case col.insecure:
		opts = append(opts, otlploggrpc.WithInsecure())
	case col.creds != nil:
		opts = append(opts, otlploggrpc.WithTLSCredentials(col.creds))
	}

	if len(col.headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(col.headers))
	}

	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create log exporter: %w", err)
	}

	return exporter, nil
}

// Write never fails; lines that are not JSON objects are dropped.
func (w *OTelWriter) Write(p []byte) (int, error) {
	var fields map[string]interface{}
	if w.provider == nil || json.Unmarshal(p, &fields) != nil {
		return len(p), nil
	}

	var record otellog.Record

	if ts, ok := popString(fields, zerologTimeField); ok {
		if at, err := time.Parse(time.RFC3339, ts); err == nil {
			record.SetTimestamp(at)
		}
	}

	if level, ok := popString(fields, "level"); ok {
		record.SetSeverity(severityOf(level))
		record.SetSeverityText(level)
	}

	if msg, ok := popString(fields, "message"); ok {
		record.SetBody(otellog.StringValue(msg))
	}

	scope, ok := popString(fields, "component")
	if !ok || scope == "" {
		scope = defaultLoggerScope
	}

	for key, value := range fields {
		record.AddAttributes(otellog.String(key, attributeString(value)))
	}

	w.scope(scope).Emit(w.ctx, record)

	return len(p), nil
}

const zerologTimeField = "time"

func (w *OTelWriter) scope(name string) otellog.Logger {
	w.mu.Lock()
	defer w.mu.Unlock()

	l, ok := w.scopes[name]
	if !ok {
		l = w.provider.Logger(name)
		w.scopes[name] = l
	}

	return l
}

func popString(fields map[string]interface{}, key string) (string, bool) {
	s, ok := fields[key].(string)
	if ok {
		delete(fields, key)
	}

	return s, ok
}

func attributeString(value interface{}) string {
	var s string

	switch v := value.(type) {
	case nil:
		s = "null"
	case string:
		s = v
	case bool:
		s = strconv.FormatBool(v)
	case float64:
		s = strconv.FormatFloat(v, 'g', -1, 64)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			raw = []byte(fmt.Sprint(v))
		}

		s = string(raw)
	}

	return clip(s, maxAttributeValueLength)
}

// clip shortens s to at most limit bytes, ending in "..." and never splitting
// a rune.
func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut] + "..."
}

func severityOf(level string) otellog.Severity {
	switch strings.ToLower(level) {
	case "trace":
		return otellog.SeverityTrace
	case "debug":
		return otellog.SeverityDebug
	case "warn", "warning":
		return otellog.SeverityWarn
	case "error":
		return otellog.SeverityError
	case "fatal", "panic":
		return otellog.SeverityFatal
	default:
		return otellog.SeverityInfo
	}
}

// ShutdownOTEL flushes the log and metric pipelines.
func ShutdownOTEL() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logProviderMu.Lock()
	provider := logProvider
	logProvider = nil
	logProviderMu.Unlock()

	var errs []error

	if provider != nil {
		errs = append(errs, provider.Shutdown(ctx))
	}

	errs = append(errs, shutdownMeterProvider(ctx))

	return errors.Join(errs...)
}

// MultiWriter fans each line out to every writer and stops at the first
// failure.
type MultiWriter struct {
	writers []io.Writer
}

func NewMultiWriter(writers ...io.Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (mw *MultiWriter) Write(p []byte) (int, error) {
	for _, w := range mw.writers {
		n, err := w.Write(p)

		switch {
		case err != nil:
			return n, err
		case n < len(p):
			return n, io.ErrShortWrite
		}
	}

	return len(p), nil
}
