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

package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/carverauto/satellitehive/pkg/logger"
	"github.com/carverauto/satellitehive/pkg/protocol"
)

const (
	execShell = "sh"
	killGrace = 2 * time.Second
)

// Executor runs one-shot shell commands for exec frames.
type Executor struct {
	defaultTimeout time.Duration
	maxOutput      int
	log            logger.Logger
}

// NewExecutor returns an executor that caps each output stream at
// maxOutput bytes.
func NewExecutor(defaultTimeout time.Duration, maxOutput int, log logger.Logger) *Executor {
	if defaultTimeout <= 0 {
		defaultTimeout = defaultExecTimeout
	}

	if maxOutput <= 0 {
		maxOutput = defaultMaxOutput
	}

	return &Executor{defaultTimeout: defaultTimeout, maxOutput: maxOutput, log: log}
}

// Run executes req with sh -c and always returns a result frame. On timeout
// the whole process group is killed and ExitCode is -1.
func (e *Executor) Run(ctx context.Context, req *protocol.Exec) *protocol.ExecResult {
	timeout := e.defaultTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout := &cappedBuffer{limit: e.maxOutput}
	stderr := &cappedBuffer{limit: e.maxOutput}

	cmd := exec.CommandContext(runCtx, execShell, "-c", req.Command)
	cmd.Env = mergeEnv(os.Environ(), req.Env)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = killGrace
	configureProcessGroup(cmd)

	e.log.Debug().
		Str("request_id", req.RequestID).
		Dur("timeout", timeout).
		Msg("Executing command")

	start := time.Now()
	err := cmd.Run()

	res := &protocol.ExecResult{
		Type:       protocol.TypeExecResult,
		RequestID:  req.RequestID,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMs: time.Since(start).Milliseconds(),
		Truncated:  stdout.truncated || stderr.truncated,
	}

	var exitErr *exec.ExitError

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.ExitCode = -1
		res.Error = fmt.Sprintf("command timed out after %s", timeout)
	case runCtx.Err() != nil:
		res.ExitCode = -1
		res.Error = "command cancelled"
	case err == nil:
		res.Success = true
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
		res.Error = err.Error()
	}

	e.log.Debug().
		Str("request_id", req.RequestID).
		Int("exit_code", res.ExitCode).
		Int64("duration_ms", res.DurationMs).
		Bool("truncated", res.Truncated).
		Msg("Command finished")

	return res
}

// mergeEnv appends extra in key order so later duplicates win.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	out := make([]string, 0, len(base)+len(keys))
	out = append(out, base...)

	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}

	return out
}

// cappedBuffer keeps the first limit bytes and silently discards the rest
// so the child never sees a broken pipe.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	remaining := c.limit - c.buf.Len()
	if remaining <= 0 {
		if len(p) > 0 {
			c.truncated = true
		}

		return len(p), nil
	}

	if len(p) > remaining {
		c.buf.Write(p[:remaining])
		c.truncated = true

		return len(p), nil
	}

	return c.buf.Write(p)
}

func (c *cappedBuffer) String() string { return c.buf.String() }
