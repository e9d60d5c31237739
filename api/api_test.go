/* Copyright (c) 2018 Gregor Riepl
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

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/onitake/camstream/camera"
	"github.com/onitake/camstream/metrics"
	"github.com/onitake/camstream/origin"
)

type mockWriter struct {
	bytes.Buffer
	header http.Header
	status int
}

func newMockWriter() *mockWriter {
	return &mockWriter{
		header: make(http.Header),
		status: http.StatusOK,
	}
}
func (writer *mockWriter) Header() http.Header {
	return writer.header
}
func (writer *mockWriter) Write(data []byte) (int, error) {
	return writer.Buffer.Write(data)
}
func (writer *mockWriter) WriteHeader(status int) {
	writer.status = status
}

type mockStatistics struct {
	Streams map[string]*metrics.StreamStatistics
	Global  metrics.StreamStatistics
}

func (*mockStatistics) Start() {}
func (*mockStatistics) Stop()  {}
func (*mockStatistics) RegisterStream(name string) metrics.Collector {
	return &metrics.DummyCollector{}
}
func (*mockStatistics) RemoveStream(name string) {}
func (stats *mockStatistics) GetStreamStatistics(name string) *metrics.StreamStatistics {
	return stats.Streams[name]
}
func (stats *mockStatistics) GetAllStreamStatistics() map[string]*metrics.StreamStatistics {
	return stats.Streams
}
func (stats *mockStatistics) GetGlobalStatistics() *metrics.StreamStatistics {
	return &stats.Global
}

type mockBuffers struct {
	outstanding int
	depth       int
}

func (buffers *mockBuffers) Outstanding() int {
	return buffers.outstanding
}
func (buffers *mockBuffers) Depth() int {
	return buffers.depth
}

type mockSensor struct {
	status camera.SensorStatus
}

func (sensor *mockSensor) Status() camera.SensorStatus {
	return sensor.status
}

func newRequest(path, remote string) *http.Request {
	testurl, _ := url.Parse("http://localhost" + path)
	return &http.Request{
		Method:     http.MethodGet,
		Header:     make(http.Header),
		URL:        testurl,
		RemoteAddr: remote,
	}
}

func decodeStatus(t *testing.T, writer *mockWriter) map[string]interface{} {
	var decoded map[string]interface{}
	err := json.Unmarshal(writer.Bytes(), &decoded)
	if err != nil {
		t.Fatalf("Error decoding JSON: %s", err.Error())
	}
	return decoded
}

func testStatisticsConnections(t *testing.T, connections, full, max int64, status string) {
	stats := &mockStatistics{
		Global: metrics.StreamStatistics{
			Connections:     connections,
			MaxConnections:  max,
			FullConnections: full,
		},
	}
	api := NewStatisticsApi(stats, origin.NewFilter(nil, false))
	writer := newMockWriter()
	api.ServeHTTP(writer, newRequest("/api/statistics", "192.168.1.10:4000"))
	decoded := decodeStatus(t, writer)
	retstatus, ok := decoded["status"].(string)
	if !ok {
		t.Fatalf("No status field or incorrect type returned")
	}
	if retstatus != status {
		t.Errorf("Invalid status returned: expected %s, got %s", status, retstatus)
	}
}

func testHealthConnections(t *testing.T, connections, full, max int64, status string) {
	stats := &mockStatistics{
		Global: metrics.StreamStatistics{
			Connections:     connections,
			MaxConnections:  max,
			FullConnections: full,
		},
	}
	api := NewHealthApi(stats, &mockBuffers{}, origin.NewFilter(nil, false))
	writer := newMockWriter()
	api.ServeHTTP(writer, newRequest("/api/health", "192.168.1.10:4000"))
	decoded := decodeStatus(t, writer)
	retstatus, ok := decoded["status"].(string)
	if !ok {
		t.Fatalf("No status field or incorrect type returned")
	}
	if retstatus != status {
		t.Errorf("Invalid status returned: expected %s, got %s", status, retstatus)
	}
}

func TestStatisticsApi(t *testing.T) {
	testStatisticsConnections(t, 0, 0, 0, "ok")
	testStatisticsConnections(t, 1, 0, 0, "ok")
	testStatisticsConnections(t, 1, 1, 2, "full")
	testStatisticsConnections(t, 1, 1, 0, "full")
	testStatisticsConnections(t, 1, 0, 2, "ok")
	testStatisticsConnections(t, 2, 1, 2, "overload")
	testStatisticsConnections(t, 2, 1, 0, "full")
	testStatisticsConnections(t, 2, 0, 2, "overload")
}

func TestHealthApi(t *testing.T) {
	testHealthConnections(t, 0, 0, 0, "ok")
	testHealthConnections(t, 1, 0, 0, "ok")
	testHealthConnections(t, 1, 1, 2, "full")
	testHealthConnections(t, 1, 1, 0, "full")
	testHealthConnections(t, 1, 0, 2, "ok")
	testHealthConnections(t, 2, 1, 2, "full")
	testHealthConnections(t, 2, 1, 0, "full")
	testHealthConnections(t, 2, 0, 2, "full")
}

func TestStatisticsCounters(t *testing.T) {
	stats := &mockStatistics{
		Global: metrics.StreamStatistics{
			Connections:          1,
			TotalFramesSent:      120,
			TotalBytesSent:       480000,
			TotalCaptureFailures: 2,
			TotalStreamTime:      int64(12 * time.Second),
		},
	}
	api := NewStatisticsApi(stats, origin.NewFilter(nil, false))
	writer := newMockWriter()
	api.ServeHTTP(writer, newRequest("/api/statistics", "192.168.1.10:4000"))
	decoded := decodeStatus(t, writer)
	if decoded["total_frames_sent"] != float64(120) {
		t.Errorf("Invalid frame count: %v", decoded["total_frames_sent"])
	}
	if decoded["total_bytes_sent"] != float64(480000) {
		t.Errorf("Invalid byte count: %v", decoded["total_bytes_sent"])
	}
	if decoded["total_capture_failures"] != float64(2) {
		t.Errorf("Invalid failure count: %v", decoded["total_capture_failures"])
	}
	if decoded["total_stream_time_ns"] != float64(12*time.Second) {
		t.Errorf("Invalid stream time: %v", decoded["total_stream_time_ns"])
	}
}

func TestHealthBuffers(t *testing.T) {
	api := NewHealthApi(&mockStatistics{}, &mockBuffers{outstanding: 1, depth: 2}, origin.NewFilter(nil, false))
	writer := newMockWriter()
	api.ServeHTTP(writer, newRequest("/api/health", "192.168.1.10:4000"))
	decoded := decodeStatus(t, writer)
	if decoded["buffers"] != float64(1) || decoded["depth"] != float64(2) {
		t.Errorf("Invalid buffer report: %v/%v", decoded["buffers"], decoded["depth"])
	}
}

func TestApiOrigin(t *testing.T) {
	network, err := origin.ParseStaticNetwork("192.168.1.1/24")
	if err != nil {
		t.Fatalf("Cannot parse network: %v", err)
	}
	filter := origin.NewFilter(network, true)
	handlers := map[string]http.Handler{
		"/api/health":     NewHealthApi(&mockStatistics{}, &mockBuffers{}, filter),
		"/api/statistics": NewStatisticsApi(&mockStatistics{}, filter),
		"/metrics":        NewPrometheusApi(filter),
	}
	for path, handler := range handlers {
		writer := newMockWriter()
		handler.ServeHTTP(writer, newRequest(path, "10.0.0.5:4000"))
		if writer.status != http.StatusForbidden {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusForbidden, writer.status)
		}
		if writer.String() != origin.DeniedMessage {
			t.Errorf("%s: unexpected body %q", path, writer.String())
		}
		writer = newMockWriter()
		handler.ServeHTTP(writer, newRequest(path, "192.168.1.20:4000"))
		if writer.status != http.StatusOK {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusOK, writer.status)
		}
	}
}

func TestStatusApi(t *testing.T) {
	sensor := &mockSensor{
		status: camera.SensorStatus{
			FrameSize:  5,
			Quality:    12,
			Brightness: 1,
			Contrast:   -1,
			Saturation: 0,
			HMirror:    true,
			VFlip:      false,
		},
	}
	api := NewStatusApi(sensor)
	writer := newMockWriter()
	// no origin restriction on the status page
	api.ServeHTTP(writer, newRequest("/status", "10.0.0.5:4000"))
	if writer.status != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", writer.status)
	}
	if writer.header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("Missing CORS header")
	}
	if writer.header.Get("Content-Type") != "application/json" {
		t.Errorf("Invalid content type: %s", writer.header.Get("Content-Type"))
	}
	decoded := decodeStatus(t, writer)
	expected := map[string]float64{
		"framesize":  5,
		"quality":    12,
		"brightness": 1,
		"contrast":   -1,
		"saturation": 0,
		"hmirror":    1,
		"vflip":      0,
	}
	for key, value := range expected {
		if decoded[key] != value {
			t.Errorf("Invalid %s: expected %v, got %v", key, value, decoded[key])
		}
	}
}
