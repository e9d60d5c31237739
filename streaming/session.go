/* Copyright (c) 2025 Gregor Riepl
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package streaming

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/onitake/camstream/camera"
	"github.com/onitake/camstream/util"
)

// SessionState is the lifecycle stage of a stream session.
type SessionState int

const (
	// StateGating means the client has not been admitted yet.
	StateGating SessionState = iota
	// StateStreaming means headers were sent and parts are being written.
	StateStreaming
	// StateClosed is terminal.
	StateClosed
)

func (state SessionState) String() string {
	switch state {
	case StateGating:
		return "gating"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// Session is a single client connection on the stream endpoint.
//
// It is owned by the ServeHTTP call that created it and never shared.
type Session struct {
	// ID identifies the session in logs.
	ID string
	// Remote is the client address.
	Remote string
	// Frames is the number of parts sent.
	Frames uint64
	// Bytes is the number of JPEG payload bytes sent.
	Bytes uint64

	state      SessionState
	writer     http.ResponseWriter
	controller *http.ResponseController
	// flushes are skipped if the writer can't
	noflush bool
	// part header scratch space, reused for every frame
	scratch []byte
	started time.Time
	logger  *util.ModuleLogger
}

func newSession(writer http.ResponseWriter, remote string) *Session {
	id := uuid.NewString()
	return &Session{
		ID:         id,
		Remote:     remote,
		state:      StateGating,
		writer:     writer,
		controller: http.NewResponseController(writer),
		scratch:    make([]byte, 0, 128),
		started:    time.Now(),
		logger:     logger.With("session", id, "remote", remote),
	}
}

// State returns the current lifecycle stage.
func (session *Session) State() SessionState {
	return session.state
}

// Duration returns the time since the session was created.
func (session *Session) Duration() time.Duration {
	return time.Since(session.started)
}

// flush pushes buffered data to the client.
func (session *Session) flush() error {
	if session.noflush {
		return nil
	}
	err := session.controller.Flush()
	if errors.Is(err, http.ErrNotSupported) {
		session.noflush = true
		session.logger.Logkv(
			"event", eventSessionError,
			"error", errorSessionNoFlush,
			"message", "ResponseWriter is not flushable!",
		)
		return nil
	}
	return err
}

// writeChunk sends data to the client and flushes it.
func (session *Session) writeChunk(data []byte) error {
	if _, err := session.writer.Write(data); err != nil {
		return err
	}
	return session.flush()
}

// sendPart writes one JPEG part, followed by the delimiter.
// Writing stops at the first failure.
func (session *Session) sendPart(buffer *camera.Buffer) error {
	payload := buffer.Bytes()
	session.scratch = appendPartHeader(session.scratch[:0], len(payload))
	if err := session.writeChunk(session.scratch); err != nil {
		return err
	}
	if err := session.writeChunk(payload); err != nil {
		return err
	}
	if err := session.writeChunk(delimiter); err != nil {
		return err
	}
	session.Frames++
	session.Bytes += uint64(len(payload))
	return nil
}
