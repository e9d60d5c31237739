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
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type mockDriver struct {
	grabs   int32
	returns int32
	fail    atomic.Bool
	closed  atomic.Bool
	format  PixelFormat
	data    []byte
	delay   time.Duration
}

func (driver *mockDriver) Grab() (*Frame, error) {
	atomic.AddInt32(&driver.grabs, 1)
	if driver.delay > 0 {
		time.Sleep(driver.delay)
	}
	if driver.fail.Load() {
		return nil, errors.New("sensor timeout")
	}
	return &Frame{
		Data:   driver.data,
		Format: driver.format,
		Width:  2,
		Height: 2,
	}, nil
}

func (driver *mockDriver) Return(frame *Frame) error {
	atomic.AddInt32(&driver.returns, 1)
	return nil
}

func (driver *mockDriver) Close() error {
	driver.closed.Store(true)
	return nil
}

func (driver *mockDriver) Status() SensorStatus {
	return SensorStatus{Quality: 12}
}

func TestPoolAcquireRelease(t *testing.T) {
	ctx := context.Background()

	d00 := &mockDriver{data: []byte{0xff, 0xd8, 0xff, 0xd9}}
	p00 := NewPool(d00, 3)
	f00, err := p00.Acquire(ctx)
	if err != nil {
		t.Fatalf("t00: Acquire failed: %v", err)
	}
	if p00.Outstanding() != 1 {
		t.Errorf("t00: Expected 1 outstanding frame, got %d", p00.Outstanding())
	}
	p00.Release(f00)
	if p00.Outstanding() != 0 {
		t.Errorf("t00: Expected 0 outstanding frames, got %d", p00.Outstanding())
	}
	if d00.grabs != 1 || d00.returns != 1 {
		t.Errorf("t00: Expected 1 grab and 1 return, got %d and %d", d00.grabs, d00.returns)
	}

	// double release is ignored
	p00.Release(f00)
	if d00.returns != 1 {
		t.Errorf("t01: Double release reached the driver")
	}
	p00.Release(nil)

	// foreign frames are ignored
	p00.Release(&Frame{})
	if d00.returns != 1 {
		t.Errorf("t02: Foreign frame reached the driver")
	}
}

func TestPoolDepth(t *testing.T) {
	d00 := &mockDriver{}
	p00 := NewPool(d00, 3)
	frames := make([]*Frame, 0, 3)
	for i := 0; i < 3; i++ {
		frame, err := p00.Acquire(context.Background())
		if err != nil {
			t.Fatalf("t00: Acquire %d failed: %v", i, err)
		}
		frames = append(frames, frame)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := p00.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("t01: Expected the fourth acquire to block, got %v", err)
	}

	// a release unblocks a waiting acquirer
	done := make(chan *Frame)
	go func() {
		frame, _ := p00.Acquire(context.Background())
		done <- frame
	}()
	p00.Release(frames[0])
	select {
	case frame := <-done:
		if frame == nil {
			t.Errorf("t02: Waiting acquire failed")
		}
		p00.Release(frame)
	case <-time.After(time.Second):
		t.Fatalf("t02: Waiting acquire was not woken up")
	}
	p00.Release(frames[1])
	p00.Release(frames[2])
	if p00.Outstanding() != 0 {
		t.Errorf("t03: Expected an empty pool, got %d", p00.Outstanding())
	}
}

func TestPoolFailure(t *testing.T) {
	d00 := &mockDriver{}
	d00.fail.Store(true)
	p00 := NewPool(d00, 1)
	frame, err := p00.Acquire(context.Background())
	if !errors.Is(err, ErrCaptureFailed) {
		t.Errorf("t00: Expected ErrCaptureFailed, got %v", err)
	}
	if frame != nil {
		t.Errorf("t00: Expected no frame on failure")
	}
	// a failed capture must not hold a slot
	d00.fail.Store(false)
	frame, err = p00.Acquire(context.Background())
	if err != nil {
		t.Fatalf("t01: Acquire after failure: %v", err)
	}
	p00.Release(frame)
}

func TestPoolClose(t *testing.T) {
	d00 := &mockDriver{}
	p00 := NewPool(d00, 1)
	f00, _ := p00.Acquire(context.Background())

	// a waiter blocked on a full pool is woken up by Close
	errs := make(chan error)
	go func() {
		_, err := p00.Acquire(context.Background())
		errs <- err
	}()
	time.Sleep(10 * time.Millisecond)
	if err := p00.Close(); err != nil {
		t.Errorf("t00: Close failed: %v", err)
	}
	select {
	case err := <-errs:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("t00: Expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("t00: Waiter not woken up by Close")
	}
	if !d00.closed.Load() {
		t.Errorf("t01: Driver not closed")
	}
	// late release is still accounted
	p00.Release(f00)
	if p00.Outstanding() != 0 {
		t.Errorf("t02: Late release not accounted")
	}
	if _, err := p00.Acquire(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("t03: Expected ErrClosed, got %v", err)
	}
	p00.Close()
}

func TestPoolFlush(t *testing.T) {
	d00 := &mockDriver{}
	p00 := NewPool(d00, 3)
	p00.Flush(context.Background(), 3)
	if d00.grabs != 3 || d00.returns != 3 {
		t.Errorf("t00: Expected 3 grabs and returns, got %d and %d", d00.grabs, d00.returns)
	}
	if p00.Outstanding() != 0 {
		t.Errorf("t00: Flush left frames outstanding")
	}

	d01 := &mockDriver{}
	d01.fail.Store(true)
	p01 := NewPool(d01, 3)
	p01.Flush(context.Background(), 3)
	if d01.grabs != 3 {
		t.Errorf("t01: Flush should keep going after failures, got %d grabs", d01.grabs)
	}
}

func TestPoolConcurrent(t *testing.T) {
	d00 := &mockDriver{delay: time.Millisecond}
	p00 := NewPool(d00, 3)
	var wait sync.WaitGroup
	var peak, current int32
	for i := 0; i < 10; i++ {
		wait.Add(1)
		go func() {
			defer wait.Done()
			for j := 0; j < 20; j++ {
				frame, err := p00.Acquire(context.Background())
				if err != nil {
					t.Errorf("Acquire failed: %v", err)
					return
				}
				now := atomic.AddInt32(&current, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if now <= old || atomic.CompareAndSwapInt32(&peak, old, now) {
						break
					}
				}
				atomic.AddInt32(&current, -1)
				p00.Release(frame)
			}
		}()
	}
	wait.Wait()
	if peak > 3 {
		t.Errorf("More than 3 frames were checked out at once: %d", peak)
	}
	if d00.grabs != 200 || d00.returns != 200 {
		t.Errorf("Expected 200 grabs and returns, got %d and %d", d00.grabs, d00.returns)
	}
}
