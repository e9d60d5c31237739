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
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/onitake/camstream/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrCaptureFailed is returned when the driver could not deliver a frame.
	ErrCaptureFailed = errors.New("camstream: frame capture failed")
	// ErrClosed is returned by a pool after it was closed.
	ErrClosed = errors.New("camstream: frame source closed")
	// ErrUnsupported is returned by drivers that are not available on this platform.
	ErrUnsupported = errors.New("camstream: camera driver not supported on this platform")
	// ErrNoFrame is returned when no frame arrived within the driver timeout.
	ErrNoFrame = errors.New("camstream: no frame available")
)

var (
	metricBuffersOutstanding = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "camera_buffers_outstanding",
			Help: "Number of frame buffers currently checked out of the pool.",
		},
	)
	metricCaptureFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "camstream_capture_failures",
			Help: "Number of failed frame acquisitions.",
		},
	)
)

func init() {
	metrics.MustRegister(metricBuffersOutstanding)
	metrics.MustRegister(metricCaptureFailures)
}

// Source hands out frames from a bounded set of capture buffers.
//
// Every frame returned by Acquire must be passed to Release exactly once.
type Source interface {
	// Acquire blocks until a frame is available.
	// The context only bounds the wait for a free buffer slot.
	Acquire(ctx context.Context) (*Frame, error)
	// Release returns a frame to the source.
	Release(frame *Frame)
}

// Driver is the hardware boundary.
//
// Grab is never called concurrently with itself, but Return may be called
// while a Grab is in progress.
type Driver interface {
	Grab() (*Frame, error)
	Return(frame *Frame) error
	Close() error
	Status() SensorStatus
}

// Pool is the shared, synchronized Source in front of a Driver.
// At most depth frames can be checked out at any time.
type Pool struct {
	driver Driver
	depth  int
	// one token per checked out frame
	slots chan struct{}
	// serializes Grab
	grab sync.Mutex
	// protects outstanding and Return
	lock        sync.Mutex
	outstanding map[*Frame]struct{}
	closed      atomic.Bool
	// closing is closed on Close, to wake up waiters
	closing chan struct{}
	once    sync.Once
}

// NewPool creates a pool that limits the number of outstanding frames to depth.
func NewPool(driver Driver, depth int) *Pool {
	if depth < 1 {
		depth = 1
	}
	return &Pool{
		driver:      driver,
		depth:       depth,
		slots:       make(chan struct{}, depth),
		outstanding: make(map[*Frame]struct{}),
		closing:     make(chan struct{}),
	}
}

// Depth returns the maximum number of outstanding frames.
func (pool *Pool) Depth() int {
	return pool.depth
}

// Acquire fetches a frame from the driver.
// Capture failures are returned as ErrCaptureFailed and not retried.
func (pool *Pool) Acquire(ctx context.Context) (*Frame, error) {
	if pool.closed.Load() {
		return nil, ErrClosed
	}
	select {
	case pool.slots <- struct{}{}:
	case <-pool.closing:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	pool.grab.Lock()
	var frame *Frame
	var err error
	if pool.closed.Load() {
		err = ErrClosed
	} else {
		frame, err = pool.driver.Grab()
		if err == nil && frame == nil {
			err = ErrNoFrame
		}
	}
	pool.grab.Unlock()

	if err != nil {
		<-pool.slots
		if errors.Is(err, ErrClosed) {
			return nil, err
		}
		metricCaptureFailures.Inc()
		logger.Logkv(
			"event", eventCameraError,
			"error", errorCameraGrab,
			"message", fmt.Sprintf("Camera capture failed: %v", err),
		)
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	pool.lock.Lock()
	pool.outstanding[frame] = struct{}{}
	pool.lock.Unlock()
	metricBuffersOutstanding.Inc()
	return frame, nil
}

// Release hands a frame back to the driver.
// Frames that are not checked out are logged and ignored.
func (pool *Pool) Release(frame *Frame) {
	if frame == nil {
		return
	}
	pool.lock.Lock()
	_, ok := pool.outstanding[frame]
	if !ok {
		pool.lock.Unlock()
		logger.Logkv(
			"event", eventCameraError,
			"error", errorCameraNotOut,
			"message", "Ignoring release of a frame that is not checked out",
		)
		return
	}
	delete(pool.outstanding, frame)
	var err error
	if !pool.closed.Load() {
		err = pool.driver.Return(frame)
	}
	pool.lock.Unlock()

	<-pool.slots
	metricBuffersOutstanding.Dec()
	if err != nil {
		logger.Logkv(
			"event", eventCameraError,
			"error", errorCameraReturn,
			"message", fmt.Sprintf("Error returning frame buffer: %v", err),
		)
	}
}

// Outstanding returns the number of frames currently checked out.
func (pool *Pool) Outstanding() int {
	pool.lock.Lock()
	defer pool.lock.Unlock()
	return len(pool.outstanding)
}

// Flush discards count frames, so the next Acquire returns a fresh one.
// Capture errors are ignored.
func (pool *Pool) Flush(ctx context.Context, count int) {
	logger.Logkv(
		"event", eventCameraFlush,
		"count", count,
	)
	for i := 0; i < count; i++ {
		frame, err := pool.Acquire(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return
			}
			continue
		}
		pool.Release(frame)
	}
}

// Status returns the sensor configuration of the underlying driver.
func (pool *Pool) Status() SensorStatus {
	return pool.driver.Status()
}

// Close shuts down the driver.
// Frames that are still checked out can be released afterwards.
func (pool *Pool) Close() error {
	var err error
	pool.once.Do(func() {
		pool.closed.Store(true)
		close(pool.closing)
		// wait for a running grab or return
		pool.grab.Lock()
		pool.lock.Lock()
		err = pool.driver.Close()
		pool.lock.Unlock()
		pool.grab.Unlock()
		logger.Logkv(
			"event", eventCameraClose,
		)
	})
	return err
}
