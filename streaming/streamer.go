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

// Package streaming serves camera frames as an MJPEG multipart stream and as single captures.
package streaming

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/onitake/camstream/camera"
	"github.com/onitake/camstream/encoder"
	"github.com/onitake/camstream/event"
	"github.com/onitake/camstream/metrics"
	"github.com/onitake/camstream/origin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrCaptureFailed ends a session when no frame could be acquired.
	ErrCaptureFailed = camera.ErrCaptureFailed
	// ErrEncodeFailed ends a session when a raw frame could not be converted.
	ErrEncodeFailed = encoder.ErrEncodeFailed
	// ErrAccessDenied is logged when a client outside the local network is rejected.
	ErrAccessDenied = errors.New("camstream: access denied")
	// ErrPoolFull is logged when the connection pool is full.
	ErrPoolFull = errors.New("camstream: maximum number of active connections exceeded")
	// ErrDisconnected ends a session when writing to the client failed.
	ErrDisconnected = errors.New("camstream: client disconnected")
	// ErrShutdown ends a session when the server is stopping.
	ErrShutdown = errors.New("camstream: server shutting down")
)

var (
	metricFramesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camstream_frames_sent",
			Help: "Total number of JPEG frames sent to clients.",
		},
		[]string{"endpoint"},
	)
	metricBytesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camstream_bytes_sent",
			Help: "Total number of JPEG payload bytes sent to clients.",
		},
		[]string{"endpoint"},
	)
	metricConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "camstream_connections",
			Help: "Number of active stream connections.",
		},
	)
	metricConnectionsDenied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camstream_connections_denied",
			Help: "Number of rejected connections.",
		},
		[]string{"reason"},
	)
	metricDuration = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "camstream_duration",
			Help: "Total time spent streaming, summed over all client connections. In nanoseconds.",
		},
	)
)

func init() {
	metrics.MustRegister(metricFramesSent)
	metrics.MustRegister(metricBytesSent)
	metrics.MustRegister(metricConnections)
	metrics.MustRegister(metricConnectionsDenied)
	metrics.MustRegister(metricDuration)
}

// releaseBuffer frees a part buffer once it was written.
var releaseBuffer = (*camera.Buffer).Release

const (
	endpointStream  = "stream"
	endpointCapture = "capture"
	reasonOrigin    = "origin"
	reasonLimit     = "limit"
)

// Streamer serves the MJPEG stream.
// Every client gets its own session, all sessions share one frame source.
type Streamer struct {
	source camera.Source
	broker ConnectionBroker
	filter origin.Filter
	// stats is the statistics collector for this stream
	stats metrics.Collector
	// events is an event receiver
	events    event.Notifiable
	interval  time.Duration
	framerate int
	quality   int
	// cancelled on Shutdown, ends all sessions
	ctx      context.Context
	shutdown context.CancelFunc
}

// NewStreamer creates a stream handler.
// broker limits the number of concurrent sessions, filter restricts client origins.
func NewStreamer(source camera.Source, broker ConnectionBroker, filter origin.Filter) *Streamer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Streamer{
		source:    source,
		broker:    broker,
		filter:    filter,
		stats:     &metrics.DummyCollector{},
		events:    &event.DummyNotifiable{},
		interval:  DefaultInterval,
		framerate: DefaultFramerate,
		quality:   encoder.FallbackQuality,
		ctx:       ctx,
		shutdown:  cancel,
	}
}

// SetCollector assigns a stats collector
func (streamer *Streamer) SetCollector(stats metrics.Collector) {
	streamer.stats = stats
}

// SetNotifier assigns an event notifier
func (streamer *Streamer) SetNotifier(events event.Notifiable) {
	streamer.events = events
}

// SetPacing sets the pause between frames and the advertised frame rate.
func (streamer *Streamer) SetPacing(interval time.Duration, framerate int) {
	streamer.interval = interval
	streamer.framerate = framerate
}

// SetFallbackQuality sets the JPEG quality for raw frames.
func (streamer *Streamer) SetFallbackQuality(quality int) {
	streamer.quality = quality
}

// Shutdown ends all running sessions.
// Further connections are closed right after the opening delimiter.
// http.Server.Shutdown can be used to wait for the handlers to return.
func (streamer *Streamer) Shutdown() {
	logger.Logkv(
		"event", eventStreamerShutdown,
		"message", "Closing all stream sessions",
	)
	streamer.shutdown()
}

// ServeHTTP handles an incoming HTTP connection.
// Satisfies the http.Handler interface, so it can be used in an HTTP server.
func (streamer *Streamer) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	session := newSession(writer, request.RemoteAddr)

	// fail-fast: verify that this client can access this resource first
	if !origin.HandleOrigin(streamer.filter, request, writer) {
		streamer.deny(session, reasonOrigin, errorSessionForbidden, ErrAccessDenied)
		return
	}
	if !streamer.broker.Accept(request.RemoteAddr) {
		streamer.deny(session, reasonLimit, errorSessionPoolFull, ErrPoolFull)
		ServeStreamError(writer, http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithCancel(request.Context())
	defer cancel()
	stop := context.AfterFunc(streamer.ctx, cancel)
	defer stop()

	// connection will be handled, report
	streamer.stats.ConnectionAdded()
	metricConnections.Inc()
	streamer.events.NotifyConnect(1)

	session.logger.Logkv(
		"event", eventSessionOpen,
		"message", fmt.Sprintf("Streaming to %s", request.RemoteAddr),
	)

	err := streamer.serve(ctx, session)
	session.state = StateClosed
	duration := session.Duration()
	streamer.logClosed(session, err, duration)

	// and report
	streamer.events.NotifyConnect(-1)
	streamer.stats.ConnectionRemoved()
	metricConnections.Dec()
	streamer.stats.StreamDuration(duration)
	metricDuration.Add(float64(duration))

	// also notify the broker
	streamer.broker.Release()
}

func (streamer *Streamer) deny(session *Session, reason, code string, err error) {
	session.state = StateClosed
	streamer.stats.ConnectionDenied()
	metricConnectionsDenied.With(prometheus.Labels{"reason": reason}).Inc()
	session.logger.Logkv(
		"event", eventSessionError,
		"error", code,
		"reason", reason,
		"message", err.Error(),
	)
}

// serve sends the stream headers, then frames until an error occurs.
// It always returns a non-nil error describing why the session ended.
func (streamer *Streamer) serve(ctx context.Context, session *Session) error {
	header := session.writer.Header()
	header.Set("Content-Type", StreamContentType)
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("X-Framerate", strconv.Itoa(streamer.framerate))
	// a stream is always current
	header.Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	setNoCache(header)
	session.writer.WriteHeader(http.StatusOK)
	session.state = StateStreaming

	// the opening delimiter, every part is preceded by one
	if err := session.writeChunk(delimiter); err != nil {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	session.logger.Logkv(
		"event", eventSessionHeaders,
		"message", "Sent header",
	)

	pacing := time.NewTimer(streamer.interval)
	defer pacing.Stop()

	for {
		frame, err := streamer.source.Acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return streamer.cancelled(ctx)
			}
			if errors.Is(err, camera.ErrClosed) {
				return ErrShutdown
			}
			streamer.stats.CaptureFailed()
			return err
		}

		buffer, err := encoder.Fallback(streamer.source, frame, streamer.quality)
		if err != nil {
			streamer.stats.EncodeFailed()
			if !errors.Is(err, ErrEncodeFailed) {
				err = fmt.Errorf("%w: %v", ErrEncodeFailed, err)
			}
			return err
		}
		if buffer.Kind() == camera.HeapBuffer {
			streamer.stats.FrameEncoded()
		}

		length := buffer.Len()
		err = session.sendPart(buffer)
		releaseBuffer(buffer)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDisconnected, err)
		}

		streamer.stats.FrameSent(length)
		metricFramesSent.With(prometheus.Labels{"endpoint": endpointStream}).Inc()
		metricBytesSent.With(prometheus.Labels{"endpoint": endpointStream}).Add(float64(length))

		pacing.Reset(streamer.interval)
		select {
		case <-pacing.C:
		case <-ctx.Done():
			return streamer.cancelled(ctx)
		}
	}
}

// cancelled tells a server shutdown apart from a client that went away.
func (streamer *Streamer) cancelled(ctx context.Context) error {
	if streamer.ctx.Err() != nil {
		return ErrShutdown
	}
	return fmt.Errorf("%w: %v", ErrDisconnected, ctx.Err())
}

func (streamer *Streamer) logClosed(session *Session, err error, duration time.Duration) {
	var code string
	switch {
	case errors.Is(err, ErrShutdown):
		session.logger.Logkv(
			"event", eventSessionShutdown,
			"message", "Session closed by server shutdown",
			"frames", session.Frames,
			"bytes", session.Bytes,
			"duration", duration,
		)
		return
	case errors.Is(err, ErrDisconnected):
		session.logger.Logkv(
			"event", eventSessionClosed,
			"message", fmt.Sprintf("Connection from %s closed", session.Remote),
			"cause", err.Error(),
			"frames", session.Frames,
			"bytes", session.Bytes,
			"duration", duration,
		)
		return
	case errors.Is(err, ErrEncodeFailed), errors.Is(err, encoder.ErrInvalidFrame), errors.Is(err, encoder.ErrUnsupportedFormat):
		code = errorSessionEncode
	case errors.Is(err, ErrCaptureFailed):
		code = errorSessionCapture
	default:
		code = errorSessionWrite
	}
	session.logger.Logkv(
		"event", eventSessionError,
		"error", code,
		"message", err.Error(),
		"frames", session.Frames,
		"bytes", session.Bytes,
		"duration", duration,
	)
}
