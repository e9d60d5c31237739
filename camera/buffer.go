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

package camera

import (
	"bytes"
	"sync"
)

// BufferKind tells where the payload of a Buffer lives.
type BufferKind int

const (
	// PoolBuffer is a frame checked out of a Source.
	PoolBuffer BufferKind = iota
	// HeapBuffer is independently owned encoder output.
	HeapBuffer
)

func (kind BufferKind) String() string {
	switch kind {
	case PoolBuffer:
		return "pool"
	case HeapBuffer:
		return "heap"
	default:
		return "unknown"
	}
}

var heapBuffers = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

// AllocHeap returns an empty, recycled byte buffer for use with NewHeapBuffer.
func AllocHeap() *bytes.Buffer {
	buffer := heapBuffers.Get().(*bytes.Buffer)
	buffer.Reset()
	return buffer
}

// Buffer is an owned frame payload that must be released exactly once,
// regardless of whether it came from the frame pool or from the encoder.
//
// Release is idempotent. A Buffer must not be used from multiple goroutines.
type Buffer struct {
	kind     BufferKind
	source   Source
	frame    *Frame
	heap     *bytes.Buffer
	released bool
}

// NewPoolBuffer wraps a frame checked out of source.
func NewPoolBuffer(source Source, frame *Frame) *Buffer {
	return &Buffer{
		kind:   PoolBuffer,
		source: source,
		frame:  frame,
	}
}

// NewHeapBuffer takes ownership of heap, normally obtained from AllocHeap.
func NewHeapBuffer(heap *bytes.Buffer) *Buffer {
	return &Buffer{
		kind: HeapBuffer,
		heap: heap,
	}
}

// Kind returns the variant of the buffer.
func (buffer *Buffer) Kind() BufferKind {
	return buffer.kind
}

// Bytes returns the payload. It is invalid after Release.
func (buffer *Buffer) Bytes() []byte {
	if buffer.released {
		return nil
	}
	switch buffer.kind {
	case PoolBuffer:
		return buffer.frame.Data
	case HeapBuffer:
		return buffer.heap.Bytes()
	}
	return nil
}

// Len returns the payload length.
func (buffer *Buffer) Len() int {
	return len(buffer.Bytes())
}

// Released reports whether Release was called.
func (buffer *Buffer) Released() bool {
	return buffer.released
}

// Release returns the payload to where it came from.
// Calling it more than once has no effect.
func (buffer *Buffer) Release() {
	if buffer.released {
		return
	}
	buffer.released = true
	switch buffer.kind {
	case PoolBuffer:
		buffer.source.Release(buffer.frame)
		buffer.frame = nil
	case HeapBuffer:
		heapBuffers.Put(buffer.heap)
		buffer.heap = nil
	}
}
