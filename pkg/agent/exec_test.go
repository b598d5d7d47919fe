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
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/satellitehive/pkg/logger"
	"github.com/carverauto/satellitehive/pkg/protocol"
)

func execReq(command string) *protocol.Exec {
	return &protocol.Exec{Type: protocol.TypeExec, RequestID: "req-1", Command: command}
}

func TestExecutorSuccess(t *testing.T) {
	e := NewExecutor(10*time.Second, defaultMaxOutput, logger.NewTestLogger())

	res := e.Run(context.Background(), execReq("echo hello; echo oops >&2"))

	assert.Equal(t, protocol.TypeExecResult, res.Type)
	assert.Equal(t, "req-1", res.RequestID)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, "oops\n", res.Stderr)
	assert.False(t, res.Truncated)
	assert.Empty(t, res.Error)
}

func TestExecutorNonZeroExit(t *testing.T) {
	e := NewExecutor(10*time.Second, defaultMaxOutput, logger.NewTestLogger())

	res := e.Run(context.Background(), execReq("exit 3"))

	assert.False(t, res.Success)
	assert.Equal(t, 3, res.ExitCode)
	assert.Empty(t, res.Error)
}

func TestExecutorEnvironment(t *testing.T) {
	e := NewExecutor(10*time.Second, defaultMaxOutput, logger.NewTestLogger())

	req := execReq(`printf %s "$HIVE_TEST_VALUE"`)
	req.Env = map[string]string{"HIVE_TEST_VALUE": "from-hive"}

	res := e.Run(context.Background(), req)

	require.True(t, res.Success)
	assert.Equal(t, "from-hive", res.Stdout)
}

func TestExecutorTimeoutKillsProcessGroup(t *testing.T) {
	e := NewExecutor(10*time.Second, defaultMaxOutput, logger.NewTestLogger())

	req := execReq("sleep 30 & sleep 30; echo finished")
	req.TimeoutSeconds = 1

	start := time.Now()
	res := e.Run(context.Background(), req)

	assert.Less(t, time.Since(start), 10*time.Second)
	assert.False(t, res.Success)
	assert.Equal(t, -1, res.ExitCode)
	assert.Contains(t, res.Error, "timed out")
	assert.NotContains(t, res.Stdout, "finished")
}

func TestExecutorCancelled(t *testing.T) {
	e := NewExecutor(10*time.Second, defaultMaxOutput, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	res := e.Run(ctx, execReq("sleep 30"))

	assert.Equal(t, -1, res.ExitCode)
	assert.Equal(t, "command cancelled", res.Error)
}

func TestExecutorTruncatesOutput(t *testing.T) {
	e := NewExecutor(10*time.Second, 16, logger.NewTestLogger())

	res := e.Run(context.Background(), execReq("printf '%0100d' 0"))

	assert.True(t, res.Success)
	assert.True(t, res.Truncated)
	assert.Equal(t, strings.Repeat("0", 16), res.Stdout)
}

func TestCappedBuffer(t *testing.T) {
	b := &cappedBuffer{limit: 5}

	n, err := b.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.False(t, b.truncated)

	n, err = b.Write([]byte("defg"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.True(t, b.truncated)
	assert.Equal(t, "abcde", b.String())

	n, err = b.Write([]byte("h"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "abcde", b.String())
}

func TestMergeEnv(t *testing.T) {
	base := []string{"PATH=/bin"}

	assert.Equal(t, base, mergeEnv(base, nil))
	assert.Equal(t,
		[]string{"PATH=/bin", "A=1", "B=2"},
		mergeEnv(base, map[string]string{"B": "2", "A": "1"}))
}
