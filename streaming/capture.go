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
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/onitake/camstream/camera"
	"github.com/onitake/camstream/encoder"
	"github.com/onitake/camstream/metrics"
	"github.com/onitake/camstream/origin"
	"github.com/prometheus/client_golang/prometheus"
)

// FlushableSource is a frame source that can discard stale frames.
type FlushableSource interface {
	camera.Source
	Flush(ctx context.Context, count int)
}

// Capturer serves a single, freshly captured JPEG image.
type Capturer struct {
	source  FlushableSource
	filter  origin.Filter
	stats   metrics.Collector
	depth   int
	quality int
}

// NewCapturer creates a still image handler.
// depth is the number of buffered frames that are discarded before each capture,
// so the image is not older than the request.
func NewCapturer(source FlushableSource, filter origin.Filter, depth int) *Capturer {
	return &Capturer{
		source:  source,
		filter:  filter,
		stats:   &metrics.DummyCollector{},
		depth:   depth,
		quality: encoder.FallbackQuality,
	}
}

// SetCollector assigns a stats collector
func (capturer *Capturer) SetCollector(stats metrics.Collector) {
	capturer.stats = stats
}

// SetFallbackQuality sets the JPEG quality for raw frames.
func (capturer *Capturer) SetFallbackQuality(quality int) {
	capturer.quality = quality
}

// ServeHTTP handles an incoming HTTP connection.
// Satisfies the http.Handler interface, so it can be used in an HTTP server.
func (capturer *Capturer) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if !origin.HandleOrigin(capturer.filter, request, writer) {
		capturer.stats.ConnectionDenied()
		metricConnectionsDenied.With(prometheus.Labels{"reason": reasonOrigin}).Inc()
		return
	}

	ctx := request.Context()
	capturer.source.Flush(ctx, capturer.depth)
	buffer, err := encoder.Capture(ctx, capturer.source, capturer.quality)
	if err != nil {
		code := errorCaptureFailed
		if errors.Is(err, camera.ErrCaptureFailed) {
			capturer.stats.CaptureFailed()
		} else if ctx.Err() == nil {
			code = errorCaptureEncode
			capturer.stats.EncodeFailed()
		}
		logger.Logkv(
			"event", eventCaptureError,
			"error", code,
			"remote", request.RemoteAddr,
			"message", err.Error(),
		)
		ServeStreamError(writer, http.StatusInternalServerError)
		return
	}
	defer buffer.Release()
	if buffer.Kind() == camera.HeapBuffer {
		capturer.stats.FrameEncoded()
	}

	length := buffer.Len()
	header := writer.Header()
	header.Set("Content-Type", "image/jpeg")
	header.Set("Content-Disposition", "inline; filename=capture.jpg")
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Content-Length", strconv.Itoa(length))
	setNoCache(header)
	writer.WriteHeader(http.StatusOK)
	if _, err := writer.Write(buffer.Bytes()); err != nil {
		logger.Logkv(
			"event", eventCaptureError,
			"error", errorSessionWrite,
			"remote", request.RemoteAddr,
			"message", err.Error(),
		)
		return
	}

	capturer.stats.FrameSent(length)
	metricFramesSent.With(prometheus.Labels{"endpoint": endpointCapture}).Inc()
	metricBytesSent.With(prometheus.Labels{"endpoint": endpointCapture}).Add(float64(length))
	logger.Logkv(
		"event", eventCaptureSent,
		"remote", request.RemoteAddr,
		"length", length,
	)
}
