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
	"encoding/base64"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/satellitehive/pkg/logger"
	"github.com/carverauto/satellitehive/pkg/protocol"
)

type frameSink struct {
	frames chan interface{}
}

func newFrameSink() *frameSink {
	return &frameSink{frames: make(chan interface{}, 4096)}
}

func (s *frameSink) send(frame interface{}) bool {
	s.frames <- frame
	return true
}

func requireShell(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("terminals need a unix pty")
	}

	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
}

func encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// awaitEnded drains output until pty_ended arrives, returning the ended
// frame and everything printed before it.
func awaitEnded(t *testing.T, sink *frameSink) (*protocol.PTYEnded, string) {
	t.Helper()

	var out strings.Builder

	deadline := time.After(10 * time.Second)

	for {
		select {
		case f := <-sink.frames:
			switch frame := f.(type) {
			case *protocol.PTYOutput:
				raw, err := base64.StdEncoding.DecodeString(frame.Data)
				require.NoError(t, err)
				out.Write(raw)
			case *protocol.PTYEnded:
				return frame, out.String()
			}
		case <-deadline:
			t.Fatalf("terminal did not end; output so far: %q", out.String())
		}
	}
}

func TestTerminalRoundTrip(t *testing.T) {
	requireShell(t)

	sink := newFrameSink()
	terms := NewTerminals("/bin/sh", sink.send, logger.NewTestLogger())

	require.NoError(t, terms.Start(&protocol.PTYStart{
		Type:      protocol.TypePTYStart,
		RequestID: "req-1",
		SessionID: "s1",
		Cols:      80,
		Rows:      24,
	}))

	started, ok := (<-sink.frames).(*protocol.PTYStarted)
	require.True(t, ok)
	assert.Equal(t, "s1", started.SessionID)
	assert.Equal(t, "req-1", started.RequestID)
	assert.True(t, started.Success)
	assert.Positive(t, started.PID)
	assert.Equal(t, 1, terms.Count())

	require.NoError(t, terms.Resize("s1", 100, 30))
	require.NoError(t, terms.Input("s1", encode("echo ready-$((40+2))\n")))
	require.NoError(t, terms.Input("s1", encode("exit 7\n")))

	ended, output := awaitEnded(t, sink)

	assert.Contains(t, output, "ready-42")
	assert.Equal(t, "s1", ended.SessionID)
	assert.Equal(t, endedExited, ended.Reason)
	require.NotNil(t, ended.ExitCode)
	assert.Equal(t, 7, *ended.ExitCode)
	assert.Equal(t, 0, terms.Count())
}

func TestTerminalEndAndDuplicate(t *testing.T) {
	requireShell(t)

	sink := newFrameSink()
	terms := NewTerminals("", sink.send, logger.NewTestLogger())

	req := &protocol.PTYStart{SessionID: "s2", Shell: "/bin/sh"}
	require.NoError(t, terms.Start(req))
	require.ErrorIs(t, terms.Start(req), errSessionExists)

	require.NoError(t, terms.End("s2"))

	ended, _ := awaitEnded(t, sink)
	assert.Equal(t, "s2", ended.SessionID)
	assert.Equal(t, endedExited, ended.Reason)
	assert.Equal(t, 0, terms.Count())
}

func TestTerminalStartFailure(t *testing.T) {
	sink := newFrameSink()
	terms := NewTerminals("", sink.send, logger.NewTestLogger())

	err := terms.Start(&protocol.PTYStart{SessionID: "s3", Shell: "/nonexistent/shell"})

	require.Error(t, err)
	assert.Equal(t, 0, terms.Count())
	assert.Empty(t, sink.frames)
}

func TestTerminalUnknownSession(t *testing.T) {
	terms := NewTerminals("", newFrameSink().send, logger.NewTestLogger())

	require.ErrorIs(t, terms.Input("nope", encode("x")), errSessionUnknown)
	require.ErrorIs(t, terms.Resize("nope", 10, 10), errSessionUnknown)
	require.ErrorIs(t, terms.End("nope"), errSessionUnknown)
}

func TestTerminalRejectsBadInput(t *testing.T) {
	requireShell(t)

	sink := newFrameSink()
	terms := NewTerminals("/bin/sh", sink.send, logger.NewTestLogger())

	require.NoError(t, terms.Start(&protocol.PTYStart{SessionID: "s4"}))
	t.Cleanup(terms.CloseAll)

	require.Error(t, terms.Input("s4", "!!not-base64!!"))
}

func TestResolveShell(t *testing.T) {
	t.Setenv("SHELL", "/bin/zsh")

	assert.Equal(t, "/bin/bash", NewTerminals("/bin/dash", nil, nil).resolveShell("/bin/bash"))
	assert.Equal(t, "/bin/dash", NewTerminals("/bin/dash", nil, nil).resolveShell(""))
	assert.Equal(t, "/bin/zsh", NewTerminals("", nil, nil).resolveShell(""))

	t.Setenv("SHELL", "")
	assert.Equal(t, fallbackShell, NewTerminals("", nil, nil).resolveShell(""))
}
