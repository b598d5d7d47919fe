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

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/satellitehive/pkg/logger"
)

const defaultShutdownTimeout = 10 * time.Second

// Service is a long-running component started before the listener opens
// and stopped after it closes.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ServerOptions configures RunServer.
type ServerOptions struct {
	Service         Service
	HTTPServer      *http.Server
	CertFile        string
	KeyFile         string
	ShutdownTimeout time.Duration
	Logger          logger.Logger
}

var errNoHTTPServer = errors.New("lifecycle: http server is required")

// RunServer starts the service and the HTTP listener, then blocks until ctx
// is cancelled, SIGINT/SIGTERM arrives, or the listener fails. Shutdown
// drains the listener before stopping the service.
func RunServer(ctx context.Context, opts *ServerOptions) error {
	if opts == nil || opts.HTTPServer == nil {
		return errNoHTTPServer
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewTestLogger()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.Service != nil {
		if err := opts.Service.Start(ctx); err != nil {
			return fmt.Errorf("failed to start service: %w", err)
		}
	}

	errCh := make(chan error, 1)

	go func() {
		log.Info().Str("addr", opts.HTTPServer.Addr).Msg("HTTP server listening")

		var err error
		if opts.CertFile != "" && opts.KeyFile != "" {
			err = opts.HTTPServer.ListenAndServeTLS(opts.CertFile, opts.KeyFile)
		} else {
			err = opts.HTTPServer.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	var serveErr error

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err, ok := <-errCh:
		if ok {
			serveErr = fmt.Errorf("http server failed: %w", err)
		}
	}

	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := opts.HTTPServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if opts.Service != nil {
		if err := opts.Service.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Service stop error")

			if serveErr == nil {
				serveErr = err
			}
		}
	}

	return serveErr
}
