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
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"sync"

	"github.com/onitake/camstream/camera"
)

var errBrokenPipe = errors.New("write: broken pipe")

// eventLog records the order of source and writer operations.
type eventLog struct {
	lock   sync.Mutex
	events []string
}

func (log *eventLog) add(event string) {
	if log == nil {
		return
	}
	log.lock.Lock()
	log.events = append(log.events, event)
	log.lock.Unlock()
}

func (log *eventLog) get() []string {
	log.lock.Lock()
	defer log.lock.Unlock()
	return append([]string(nil), log.events...)
}

func testJPEG() []byte {
	var buffer bytes.Buffer
	jpeg.Encode(&buffer, image.NewGray(image.Rect(0, 0, 8, 8)), nil)
	return buffer.Bytes()
}

type mockSource struct {
	lock   sync.Mutex
	log    *eventLog
	format camera.PixelFormat
	data   []byte
	// frames left to deliver before captures fail, negative is unlimited
	frames int
	// width of delivered frames, the data always holds 8x8 pixels
	width    int
	acquired int
	released int
	flushed  int
}

func newMockSource(format camera.PixelFormat, frames int, log *eventLog) *mockSource {
	source := &mockSource{
		log:    log,
		format: format,
		frames: frames,
		width:  8,
	}
	if format == camera.FormatJPEG {
		source.data = testJPEG()
	} else {
		source.data = make([]byte, 8*8*format.BytesPerPixel())
	}
	return source
}

func (source *mockSource) Acquire(ctx context.Context) (*camera.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	source.lock.Lock()
	defer source.lock.Unlock()
	if source.frames == 0 {
		return nil, camera.ErrCaptureFailed
	}
	if source.frames > 0 {
		source.frames--
	}
	source.acquired++
	source.log.add("acquire")
	return &camera.Frame{
		Data:   source.data,
		Format: source.format,
		Width:  source.width,
		Height: 8,
	}, nil
}

func (source *mockSource) Release(frame *camera.Frame) {
	source.lock.Lock()
	defer source.lock.Unlock()
	source.released++
	source.log.add("release")
}

func (source *mockSource) Flush(ctx context.Context, count int) {
	source.lock.Lock()
	source.flushed += count
	source.lock.Unlock()
	for i := 0; i < count; i++ {
		frame, err := source.Acquire(ctx)
		if err == nil {
			source.Release(frame)
		}
	}
}

func (source *mockSource) counts() (int, int) {
	source.lock.Lock()
	defer source.lock.Unlock()
	return source.acquired, source.released
}

// mockStreamWriter is a flushable ResponseWriter that can simulate a client disconnect.
type mockStreamWriter struct {
	lock   sync.Mutex
	header http.Header
	status int
	body   bytes.Buffer
	writes int
	// fail the write with this number, 0 never fails
	failAt  int
	flushes int
	log     *eventLog
}

func newMockStreamWriter(failAt int, log *eventLog) *mockStreamWriter {
	return &mockStreamWriter{
		header: make(http.Header),
		failAt: failAt,
		log:    log,
	}
}

func (writer *mockStreamWriter) Header() http.Header {
	return writer.header
}

func (writer *mockStreamWriter) WriteHeader(status int) {
	writer.lock.Lock()
	defer writer.lock.Unlock()
	if writer.status == 0 {
		writer.status = status
	}
}

func (writer *mockStreamWriter) Write(data []byte) (int, error) {
	writer.lock.Lock()
	defer writer.lock.Unlock()
	if writer.status == 0 {
		writer.status = http.StatusOK
	}
	writer.writes++
	if writer.failAt > 0 && writer.writes >= writer.failAt {
		return 0, errBrokenPipe
	}
	writer.log.add("write")
	return writer.body.Write(data)
}

func (writer *mockStreamWriter) Flush() {
	writer.lock.Lock()
	defer writer.lock.Unlock()
	writer.flushes++
}

func (writer *mockStreamWriter) Bytes() []byte {
	writer.lock.Lock()
	defer writer.lock.Unlock()
	return append([]byte(nil), writer.body.Bytes()...)
}
