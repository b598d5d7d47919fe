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
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"

	"github.com/carverauto/satellitehive/pkg/logger"
	"github.com/carverauto/satellitehive/pkg/protocol"
)

const (
	ptyReadSize   = 4096
	outputDrain   = 500 * time.Millisecond
	hangupGrace   = 3 * time.Second
	defaultCols   = 120
	defaultRows   = 40
	fallbackShell = "/bin/sh"
	endedExited   = "exited"
)

var (
	errSessionExists  = errors.New("terminal session already exists")
	errSessionUnknown = errors.New("terminal session not found")
)

type terminal struct {
	id         string
	ptmx       *os.File
	cmd        *exec.Cmd
	writeMu    sync.Mutex
	closeOnce  sync.Once
	readerDone chan struct{}
	exited     chan struct{}
}

func (t *terminal) close() {
	t.closeOnce.Do(func() { _ = t.ptmx.Close() })
}

// Terminals runs the interactive shells requested over pty_start frames
// and streams their output back as base64 pty_output frames.
type Terminals struct {
	mu       sync.Mutex
	sessions map[string]*terminal
	shell    string
	send     func(frame interface{}) bool
	log      logger.Logger
}

// NewTerminals uses shell when a request names none; an empty shell falls
// back to $SHELL and then /bin/sh.
func NewTerminals(shell string, send func(frame interface{}) bool, log logger.Logger) *Terminals {
	return &Terminals{
		sessions: make(map[string]*terminal),
		shell:    shell,
		send:     send,
		log:      log,
	}
}

func (t *Terminals) resolveShell(requested string) string {
	for _, s := range []string{requested, t.shell, os.Getenv("SHELL")} {
		if s != "" {
			return s
		}
	}

	return fallbackShell
}

// Start spawns the shell, reports pty_started and begins streaming.
func (t *Terminals) Start(req *protocol.PTYStart) error {
	cols, rows := req.Cols, req.Rows
	if cols <= 0 || rows <= 0 {
		cols, rows = defaultCols, defaultRows
	}

	t.mu.Lock()
	if _, ok := t.sessions[req.SessionID]; ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", errSessionExists, req.SessionID)
	}

	cmd := exec.Command(t.resolveShell(req.Shell))
	cmd.Env = mergeEnv(os.Environ(), req.Env)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
	if err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to start terminal: %w", err)
	}

	term := &terminal{
		id:         req.SessionID,
		ptmx:       ptmx,
		cmd:        cmd,
		readerDone: make(chan struct{}),
		exited:     make(chan struct{}),
	}
	t.sessions[req.SessionID] = term
	t.mu.Unlock()

	t.send(&protocol.PTYStarted{
		Type:      protocol.TypePTYStarted,
		RequestID: req.RequestID,
		SessionID: req.SessionID,
		Success:   true,
		PID:       cmd.Process.Pid,
	})

	t.log.Info().
		Str("session_id", req.SessionID).
		Str("shell", cmd.Path).
		Int("pid", cmd.Process.Pid).
		Msg("Terminal started")

	go t.pump(term)
	go t.wait(term)

	return nil
}

func (t *Terminals) pump(term *terminal) {
	defer close(term.readerDone)

	buf := make([]byte, ptyReadSize)

	for {
		n, err := term.ptmx.Read(buf)
		if n > 0 {
			t.send(&protocol.PTYOutput{
				Type:      protocol.TypePTYOutput,
				SessionID: term.id,
				Data:      base64.StdEncoding.EncodeToString(buf[:n]),
			})
		}

		if err != nil {
			return
		}
	}
}

func (t *Terminals) wait(term *terminal) {
	err := term.cmd.Wait()
	close(term.exited)

	exitCode := 0

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	} else if err != nil {
		exitCode = -1
	}

	// Let buffered output reach the hive before the master closes.
	select {
	case <-term.readerDone:
	case <-time.After(outputDrain):
	}

	term.close()
	<-term.readerDone

	t.mu.Lock()
	delete(t.sessions, term.id)
	t.mu.Unlock()

	t.send(&protocol.PTYEnded{
		Type:      protocol.TypePTYEnded,
		SessionID: term.id,
		ExitCode:  &exitCode,
		Reason:    endedExited,
	})

	t.log.Info().Str("session_id", term.id).Int("exit_code", exitCode).Msg("Terminal ended")
}

func (t *Terminals) lookup(sessionID string) (*terminal, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	term, ok := t.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errSessionUnknown, sessionID)
	}

	return term, nil
}

// Input writes base64 keystrokes to the terminal.
func (t *Terminals) Input(sessionID, data string) error {
	term, err := t.lookup(sessionID)
	if err != nil {
		return err
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return fmt.Errorf("invalid terminal input: %w", err)
	}

	term.writeMu.Lock()
	defer term.writeMu.Unlock()

	_, err = term.ptmx.Write(raw)

	return err
}

func (t *Terminals) Resize(sessionID string, cols, rows int) error {
	term, err := t.lookup(sessionID)
	if err != nil {
		return err
	}

	if cols <= 0 || rows <= 0 {
		return nil
	}

	return pty.Setsize(term.ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}

// End hangs up the terminal and kills it if it has not exited after a
// grace period. pty_ended follows from the waiter.
func (t *Terminals) End(sessionID string) error {
	term, err := t.lookup(sessionID)
	if err != nil {
		return err
	}

	t.hangup(term)

	return nil
}

func (t *Terminals) hangup(term *terminal) {
	if err := hangupGroup(term.cmd.Process); err != nil {
		t.log.Debug().Err(err).Str("session_id", term.id).Msg("hangup failed")
	}

	time.AfterFunc(hangupGrace, func() {
		select {
		case <-term.exited:
		default:
			_ = killGroup(term.cmd.Process)
		}
	})
}

// CloseAll ends every terminal, used when the hive connection drops.
func (t *Terminals) CloseAll() {
	t.mu.Lock()
	terms := make([]*terminal, 0, len(t.sessions))
	for _, term := range t.sessions {
		terms = append(terms, term)
	}
	t.mu.Unlock()

	for _, term := range terms {
		t.hangup(term)
	}
}

func (t *Terminals) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.sessions)
}
