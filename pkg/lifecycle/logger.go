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
	"fmt"

	"github.com/carverauto/satellitehive/pkg/logger"
)

// CreateComponentLogger builds the injected logger for a binary and points
// the process-wide logger at the same output. A nil config falls back to
// logger.DefaultConfig.
func CreateComponentLogger(ctx context.Context, component string, config *logger.Config) (logger.Logger, error) {
	if config == nil {
		config = logger.DefaultConfig()
	}

	base, err := logger.NewWriterLogger(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s logger: %w", component, err)
	}

	logger.SetGlobal(base.WithComponent(component))

	return logger.Wrap(base.WithComponent(component)), nil
}

// ShutdownLogger flushes pending OTel log records.
func ShutdownLogger() error {
	return logger.Shutdown()
}
