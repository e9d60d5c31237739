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

// Package api provides JSON status endpoints and the Prometheus scrape handler.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/onitake/camstream/camera"
	"github.com/onitake/camstream/metrics"
	"github.com/onitake/camstream/origin"
)

// sensorReporter is a frame source that knows its sensor configuration.
type sensorReporter interface {
	Status() camera.SensorStatus
}

// bufferReporter is a frame source that knows how many buffers are checked out.
type bufferReporter interface {
	Outstanding() int
	Depth() int
}

// writeJson marshals data and sends it with status 200, or 500 if encoding fails.
func writeJson(writer http.ResponseWriter, data interface{}) {
	response, err := json.Marshal(data)
	if err == nil {
		writer.WriteHeader(http.StatusOK)
		writer.Write(response)
	} else {
		writer.WriteHeader(http.StatusInternalServerError)
		writer.Write([]byte(http.StatusText(http.StatusInternalServerError)))
		logger.Logkv(
			"event", eventApiError,
			"error", errorApiJsonEncode,
			"message", err.Error(),
		)
	}
}

// statusApi reports the sensor configuration.
type statusApi struct {
	sensor sensorReporter
}

// NewStatusApi creates the sensor status handler.
// It is open to all clients, like the rest of the control page.
func NewStatusApi(sensor sensorReporter) http.Handler {
	return &statusApi{
		sensor: sensor,
	}
}

func boolInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// ServeHTTP is the http handler method.
func (api *statusApi) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	writer.Header().Set("Content-Type", "application/json")
	writer.Header().Set("Access-Control-Allow-Origin", "*")

	status := api.sensor.Status()
	// flags are reported as 0/1, like the sensor registers
	writeJson(writer, &struct {
		FrameSize  int `json:"framesize"`
		Quality    int `json:"quality"`
		Brightness int `json:"brightness"`
		Contrast   int `json:"contrast"`
		Saturation int `json:"saturation"`
		HMirror    int `json:"hmirror"`
		VFlip      int `json:"vflip"`
	}{
		FrameSize:  status.FrameSize,
		Quality:    status.Quality,
		Brightness: status.Brightness,
		Contrast:   status.Contrast,
		Saturation: status.Saturation,
		HMirror:    boolInt(status.HMirror),
		VFlip:      boolInt(status.VFlip),
	})
}

// healthApi encapsulates a system status object and
// provides an HTTP/JSON handler for reporting system health.
type healthApi struct {
	stats   metrics.Statistics
	buffers bufferReporter
	// filter restricts access to local clients
	filter origin.Filter
}

// NewHealthApi creates a new health API object,
// serving data from a system Statistics object and the frame pool.
func NewHealthApi(stats metrics.Statistics, buffers bufferReporter, filter origin.Filter) http.Handler {
	return &healthApi{
		stats:   stats,
		buffers: buffers,
		filter:  filter,
	}
}

// ServeHTTP is the http handler method.
// It sends back information about system health.
func (api *healthApi) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	// fail-fast: verify that this client can access this resource first
	if !origin.HandleOrigin(api.filter, request, writer) {
		return
	}
	writer.Header().Set("Content-Type", "application/json")

	global := api.stats.GetGlobalStatistics()
	var stats struct {
		Status    string `json:"status"`
		Viewer    int    `json:"viewer"`
		Limit     int    `json:"limit"`
		Max       int    `json:"max"`
		Bandwidth int    `json:"bandwidth"`
		Buffers   int    `json:"buffers"`
		Depth     int    `json:"depth"`
	}
	// report for both hard and soft, respecting disabled limits
	if global.MaxConnections != 0 && global.Connections >= global.MaxConnections {
		stats.Status = "full"
	} else if global.FullConnections != 0 && global.Connections >= global.FullConnections {
		stats.Status = "full"
	} else {
		stats.Status = "ok"
	}
	stats.Viewer = int(global.Connections)
	stats.Limit = int(global.FullConnections)
	stats.Max = int(global.MaxConnections)
	stats.Bandwidth = int(global.BytesPerSecondSent * 8 / 1024) // kbit/s
	stats.Buffers = api.buffers.Outstanding()
	stats.Depth = api.buffers.Depth()

	writeJson(writer, &stats)
}

// statisticsApi encapsulates a system status object and
// provides an HTTP/JSON handler for reporting total system statistics.
type statisticsApi struct {
	stats metrics.Statistics
	// filter restricts access to local clients
	filter origin.Filter
}

// NewStatisticsApi creates a new statistics API object,
// serving data from a system Statistics object.
func NewStatisticsApi(stats metrics.Statistics, filter origin.Filter) http.Handler {
	return &statisticsApi{
		stats:  stats,
		filter: filter,
	}
}

// ServeHTTP is the http handler method.
// It sends back accumulated counters and rates.
func (api *statisticsApi) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	// fail-fast: verify that this client can access this resource first
	if !origin.HandleOrigin(api.filter, request, writer) {
		return
	}
	writer.Header().Set("Content-Type", "application/json")

	global := api.stats.GetGlobalStatistics()
	var stats struct {
		Status               string `json:"status"`
		Connections          int    `json:"connections"`
		MaxConnections       int    `json:"max_connections"`
		FullConnections      int    `json:"full_connections"`
		TotalDenied          uint64 `json:"total_denied"`
		TotalFramesSent      uint64 `json:"total_frames_sent"`
		TotalBytesSent       uint64 `json:"total_bytes_sent"`
		TotalFramesEncoded   uint64 `json:"total_frames_encoded"`
		TotalCaptureFailures uint64 `json:"total_capture_failures"`
		TotalEncodeFailures  uint64 `json:"total_encode_failures"`
		TotalStreamTime      int64  `json:"total_stream_time_ns"`
		FramesPerSecondSent  uint64 `json:"frames_per_second_sent"`
		BytesPerSecondSent   uint64 `json:"bytes_per_second_sent"`
	}
	// report for both hard and soft, respecting disabled limits
	if global.MaxConnections != 0 && global.Connections >= global.MaxConnections {
		stats.Status = "overload"
	} else if global.FullConnections != 0 && global.Connections >= global.FullConnections {
		stats.Status = "full"
	} else {
		stats.Status = "ok"
	}
	stats.Connections = int(global.Connections)
	stats.MaxConnections = int(global.MaxConnections)
	stats.FullConnections = int(global.FullConnections)
	stats.TotalDenied = global.TotalDenied
	stats.TotalFramesSent = global.TotalFramesSent
	stats.TotalBytesSent = global.TotalBytesSent
	stats.TotalFramesEncoded = global.TotalFramesEncoded
	stats.TotalCaptureFailures = global.TotalCaptureFailures
	stats.TotalEncodeFailures = global.TotalEncodeFailures
	stats.TotalStreamTime = global.TotalStreamTime
	stats.FramesPerSecondSent = global.FramesPerSecondSent
	stats.BytesPerSecondSent = global.BytesPerSecondSent

	writeJson(writer, &stats)
}

// prometheusApi implements a handler for scraping Prometheus metrics.
type prometheusApi struct {
	// filter restricts access to local clients
	filter origin.Filter
	// handler is the delegate HTTP handler
	handler http.Handler
}

// NewPrometheusApi creates a new Prometheus metrics API object,
// serving metrics to a Prometheus instance.
func NewPrometheusApi(filter origin.Filter) http.Handler {
	return &prometheusApi{
		filter:  filter,
		handler: metrics.PromHandler(),
	}
}

// ServeHTTP is the http handler method.
func (api *prometheusApi) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	// fail-fast: verify that this client can access this resource first
	if !origin.HandleOrigin(api.filter, request, writer) {
		return
	}

	// access granted, forward the request to the promhttp handler
	api.handler.ServeHTTP(writer, request)
}
