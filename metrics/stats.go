/* Copyright (c) 2016-2018 Gregor Riepl
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

package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// updateInterval is the aggregation period for rate values
	updateInterval = 1 * time.Second
)

// Collector is the public face of a statistics collector.
// It is implemented by the individual endpoint stats.
type Collector interface {
	// ConnectionAdded notifies that a new downstream client connected.
	ConnectionAdded()
	// ConnectionRemoved notifies that a downstream client disconnected.
	ConnectionRemoved()
	// ConnectionDenied notifies that a client was refused (origin or pool limit).
	ConnectionDenied()
	// FrameSent notifies that a complete frame of the given size was written to a client.
	FrameSent(bytes int)
	// FrameEncoded notifies that a raw frame went through the JPEG fallback encoder.
	FrameEncoded()
	// CaptureFailed notifies that the frame source didn't deliver a buffer.
	CaptureFailed()
	// EncodeFailed notifies that the fallback encoder rejected a frame.
	EncodeFailed()
	// StreamDuration reports how long a downstream connection was up
	StreamDuration(duration time.Duration)
}

// realCollector represents per-endpoint state information
// and is continuously updated by the corresponding handler.
type realCollector struct {
	connections   int64
	denied        uint64
	framesSent    uint64
	bytesSent     uint64
	framesEncoded uint64
	captureFailed uint64
	encodeFailed  uint64
	duration      int64
}

func (stats *realCollector) ConnectionAdded() {
	atomic.AddInt64(&stats.connections, 1)
}

func (stats *realCollector) ConnectionRemoved() {
	atomic.AddInt64(&stats.connections, -1)
}

func (stats *realCollector) ConnectionDenied() {
	atomic.AddUint64(&stats.denied, 1)
}

func (stats *realCollector) FrameSent(bytes int) {
	atomic.AddUint64(&stats.framesSent, 1)
	atomic.AddUint64(&stats.bytesSent, uint64(bytes))
}

func (stats *realCollector) FrameEncoded() {
	atomic.AddUint64(&stats.framesEncoded, 1)
}

func (stats *realCollector) CaptureFailed() {
	atomic.AddUint64(&stats.captureFailed, 1)
}

func (stats *realCollector) EncodeFailed() {
	atomic.AddUint64(&stats.encodeFailed, 1)
}

func (stats *realCollector) StreamDuration(duration time.Duration) {
	atomic.AddInt64(&stats.duration, int64(duration))
}

// clone creates a copy of the stats object - useful for
// storing state temporarily.
func (stats *realCollector) clone() *realCollector {
	return &realCollector{
		connections:   atomic.LoadInt64(&stats.connections),
		denied:        atomic.LoadUint64(&stats.denied),
		framesSent:    atomic.LoadUint64(&stats.framesSent),
		bytesSent:     atomic.LoadUint64(&stats.bytesSent),
		framesEncoded: atomic.LoadUint64(&stats.framesEncoded),
		captureFailed: atomic.LoadUint64(&stats.captureFailed),
		encodeFailed:  atomic.LoadUint64(&stats.encodeFailed),
		duration:      atomic.LoadInt64(&stats.duration),
	}
}

// invsub subtracts this stats object from another and sets each
// value to the difference. Should not be used on live values, clone() first.
func (from *realCollector) invsub(to *realCollector) {
	from.connections = to.connections - from.connections
	from.denied = to.denied - from.denied
	from.framesSent = to.framesSent - from.framesSent
	from.bytesSent = to.bytesSent - from.bytesSent
	from.framesEncoded = to.framesEncoded - from.framesEncoded
	from.captureFailed = to.captureFailed - from.captureFailed
	from.encodeFailed = to.encodeFailed - from.encodeFailed
	from.duration = to.duration - from.duration
}

// StreamStatistics is the current state of a single endpoint
// or all endpoints combined.
type StreamStatistics struct {
	Connections          int64
	MaxConnections       int64
	FullConnections      int64
	TotalDenied          uint64
	TotalFramesSent      uint64
	TotalBytesSent       uint64
	TotalFramesEncoded   uint64
	TotalCaptureFailures uint64
	TotalEncodeFailures  uint64
	TotalStreamTime      int64
	FramesPerSecondSent  uint64
	BytesPerSecondSent   uint64
}

// Statistics is the access interface for a stat tracker.
// Endpoints update their state continuously, but data fields are only updated in periodic intervals.
type Statistics interface {
	// Start starts the updater thread.
	Start()
	// Stop stops the updater thread.
	Stop()
	// RegisterStream adds a new endpoint to the map.
	// The name will be used as the lookup key.
	RegisterStream(name string) Collector
	// RemoveStream removes an endpoint from the map.
	RemoveStream(name string)
	// GetStreamStatistics fetches the statistics for an endpoint.
	// The returned object is a copy does not need to be handled with care.
	GetStreamStatistics(name string) *StreamStatistics
	// GetAllStreamStatistics fetches the statistics for all endpoints.
	GetAllStreamStatistics() map[string]*StreamStatistics
	// GetGlobalStatistics fetches the global statistics.
	GetGlobalStatistics() *StreamStatistics
}

// realStatistics implements a full statistics collector.
type realStatistics struct {
	lock     sync.RWMutex
	running  bool
	shutdown chan struct{}
	done     chan struct{}
	internal map[string]*realCollector
	streams  map[string]*StreamStatistics
	global   *StreamStatistics
}

// NewStatistics creates a new statistics container.
// You can start and stop the periodic updater using Start() and Stop().
// Register your endpoints with RegisterStream(), this will return an updateable
// statistics object.
func NewStatistics(maxconns, fullconns uint) Statistics {
	return &realStatistics{
		internal: make(map[string]*realCollector),
		streams:  make(map[string]*StreamStatistics),
		global: &StreamStatistics{
			MaxConnections:  int64(maxconns),
			FullConnections: int64(fullconns),
		},
	}
}

// update updates the aggregated statistics from the current state of each endpoint.
func (stats *realStatistics) update(delta time.Duration, change map[string]*realCollector) {
	stats.lock.Lock()
	defer stats.lock.Unlock()

	global := &StreamStatistics{
		MaxConnections:  stats.global.MaxConnections,
		FullConnections: stats.global.FullConnections,
	}
	seconds := delta.Seconds()

	for name, stream := range stats.streams {
		diff, ok := change[name]
		if ok {
			stream.Connections += diff.connections
			stream.TotalDenied += diff.denied
			stream.TotalFramesSent += diff.framesSent
			stream.TotalBytesSent += diff.bytesSent
			stream.TotalFramesEncoded += diff.framesEncoded
			stream.TotalCaptureFailures += diff.captureFailed
			stream.TotalEncodeFailures += diff.encodeFailed
			stream.TotalStreamTime += diff.duration
			if seconds > 0 {
				stream.FramesPerSecondSent = uint64(float64(diff.framesSent) / seconds)
				stream.BytesPerSecondSent = uint64(float64(diff.bytesSent) / seconds)
			}
		}

		global.Connections += stream.Connections
		global.TotalDenied += stream.TotalDenied
		global.TotalFramesSent += stream.TotalFramesSent
		global.TotalBytesSent += stream.TotalBytesSent
		global.TotalFramesEncoded += stream.TotalFramesEncoded
		global.TotalCaptureFailures += stream.TotalCaptureFailures
		global.TotalEncodeFailures += stream.TotalEncodeFailures
		global.TotalStreamTime += stream.TotalStreamTime
		global.FramesPerSecondSent += stream.FramesPerSecondSent
		global.BytesPerSecondSent += stream.BytesPerSecondSent
	}

	stats.global = global
}

// delta calculates the difference between a previous internal state
// and the current state and returns a copy of the current state.
// The previous state (the argument) is replaced with the difference.
func (stats *realStatistics) delta(previous map[string]*realCollector) map[string]*realCollector {
	stats.lock.RLock()
	defer stats.lock.RUnlock()
	current := make(map[string]*realCollector, len(stats.internal))
	for name, stream := range stats.internal {
		update := stream.clone()
		before, ok := previous[name]
		if !ok {
			// registered after the last tick
			before = &realCollector{}
			previous[name] = before
		}
		before.invsub(update)
		current[name] = update
	}
	return current
}

// loop runs a ticker to update all statistics periodically.
func (stats *realStatistics) loop(shutdown <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(updateInterval)
	defer ticker.Stop()

	logger.Logkv(
		"event", eventMetricsStarted,
		"message", "Statistics updater started",
	)

	before := time.Now()
	// a zero baseline, so everything counted since registration is reported
	previous := make(map[string]*realCollector)
	for {
		select {
		case <-shutdown:
			logger.Logkv(
				"event", eventMetricsStopped,
				"message", "Statistics updater stopped",
			)
			return
		case now := <-ticker.C:
			// delta turns the old snapshot into the difference and returns the new snapshot
			diff := previous
			previous = stats.delta(diff)
			stats.update(now.Sub(before), diff)
			before = now
		}
	}
}

// Start starts the updater thread.
func (stats *realStatistics) Start() {
	stats.lock.Lock()
	defer stats.lock.Unlock()
	if !stats.running {
		stats.running = true
		stats.shutdown = make(chan struct{})
		stats.done = make(chan struct{})
		go stats.loop(stats.shutdown, stats.done)
	}
}

// Stop stops the updater thread and waits for it to finish.
func (stats *realStatistics) Stop() {
	stats.lock.Lock()
	if !stats.running {
		stats.lock.Unlock()
		return
	}
	stats.running = false
	shutdown, done := stats.shutdown, stats.done
	stats.lock.Unlock()
	close(shutdown)
	<-done
}

// RegisterStream adds a new endpoint to the map.
// The name will be used as the lookup key.
func (stats *realStatistics) RegisterStream(name string) Collector {
	current := &realCollector{}
	stats.lock.Lock()
	stats.internal[name] = current
	stats.streams[name] = &StreamStatistics{
		MaxConnections:  stats.global.MaxConnections,
		FullConnections: stats.global.FullConnections,
	}
	stats.lock.Unlock()
	logger.Logkv(
		"event", eventMetricsRegister,
		"stream", name,
		"message", fmt.Sprintf("Registered statistics for %s", name),
	)
	return current
}

// RemoveStream removes an endpoint from the map.
func (stats *realStatistics) RemoveStream(name string) {
	stats.lock.Lock()
	delete(stats.internal, name)
	delete(stats.streams, name)
	stats.lock.Unlock()
}

// GetStreamStatistics fetches the statistics for an endpoint.
// Unknown endpoints return an empty object.
func (stats *realStatistics) GetStreamStatistics(name string) *StreamStatistics {
	stats.lock.RLock()
	defer stats.lock.RUnlock()
	stream, ok := stats.streams[name]
	if !ok {
		logger.Logkv(
			"event", eventMetricsError,
			"error", errorMetricsNoStream,
			"stream", name,
			"message", fmt.Sprintf("No statistics registered for %s", name),
		)
		return &StreamStatistics{}
	}
	scopy := *stream
	return &scopy
}

// GetAllStreamStatistics fetches the statistics for all endpoints.
func (stats *realStatistics) GetAllStreamStatistics() map[string]*StreamStatistics {
	stats.lock.RLock()
	defer stats.lock.RUnlock()
	streams := make(map[string]*StreamStatistics, len(stats.streams))
	for name, stream := range stats.streams {
		scopy := *stream
		streams[name] = &scopy
	}
	return streams
}

// GetGlobalStatistics fetches the global statistics.
func (stats *realStatistics) GetGlobalStatistics() *StreamStatistics {
	stats.lock.RLock()
	global := *stats.global
	stats.lock.RUnlock()
	return &global
}

// DummyStatistics is placeholder for a real stats handler.
type DummyStatistics struct{}

func (*DummyStatistics) Start() {}

func (*DummyStatistics) Stop() {}

func (*DummyStatistics) RegisterStream(name string) Collector {
	return &DummyCollector{}
}

func (*DummyStatistics) RemoveStream(name string) {}

func (*DummyStatistics) GetStreamStatistics(name string) *StreamStatistics {
	return &StreamStatistics{}
}

func (*DummyStatistics) GetAllStreamStatistics() map[string]*StreamStatistics {
	return make(map[string]*StreamStatistics)
}

func (*DummyStatistics) GetGlobalStatistics() *StreamStatistics {
	return &StreamStatistics{}
}

// DummyCollector is placeholder for a real stats collector.
type DummyCollector struct{}

func (*DummyCollector) ConnectionAdded()                      {}
func (*DummyCollector) ConnectionRemoved()                    {}
func (*DummyCollector) ConnectionDenied()                     {}
func (*DummyCollector) FrameSent(bytes int)                   {}
func (*DummyCollector) FrameEncoded()                         {}
func (*DummyCollector) CaptureFailed()                        {}
func (*DummyCollector) EncodeFailed()                         {}
func (*DummyCollector) StreamDuration(duration time.Duration) {}
