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

package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onitake/camstream/camera"
	"github.com/onitake/camstream/configuration"
	"github.com/onitake/camstream/origin"
)

func TestOpenCameraPattern(t *testing.T) {
	config := configuration.DefaultConfiguration()
	config.Sensor.VFlip = true
	driver, err := openCamera(&config.Camera, &config.Sensor)
	if err != nil {
		t.Fatalf("Cannot open pattern camera: %v", err)
	}
	defer driver.Close()
	status := driver.Status()
	if status.FrameSize != 5 {
		t.Errorf("Invalid frame size id: %d", status.FrameSize)
	}
	if status.Quality != 12 || !status.VFlip {
		t.Errorf("Sensor settings not passed on: %+v", status)
	}
	frame, err := driver.Grab()
	if err != nil {
		t.Fatalf("Cannot grab frame: %v", err)
	}
	if frame.Format != camera.FormatJPEG {
		t.Errorf("Expected JPEG frame, got %v", frame.Format)
	}
	driver.Return(frame)
}

func TestOpenCameraInvalidFormat(t *testing.T) {
	config := configuration.DefaultConfiguration()
	config.Camera.Format = "h264"
	_, err := openCamera(&config.Camera, &config.Sensor)
	if err == nil {
		t.Errorf("Expected error for invalid format")
	}
}

func TestOpenCameraDirectory(t *testing.T) {
	config := configuration.DefaultConfiguration()
	config.Camera.Driver = configuration.DriverDirectory
	config.Camera.Directory = t.TempDir()
	driver, err := openCamera(&config.Camera, &config.Sensor)
	if err != nil {
		t.Fatalf("Cannot open directory camera: %v", err)
	}
	driver.Close()
}

func TestNewNetwork(t *testing.T) {
	network, err := newNetwork(&configuration.Network{Address: "192.168.4.1/24"})
	if err != nil {
		t.Fatalf("Cannot parse network: %v", err)
	}
	if _, ok := network.(*origin.StaticNetwork); !ok {
		t.Errorf("Expected static network, got %T", network)
	}
	network, err = newNetwork(&configuration.Network{Interface: "eth0", Address: "192.168.4.1/24"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, ok := network.(*origin.InterfaceNetwork); !ok {
		t.Errorf("Expected interface network, got %T", network)
	}
	_, err = newNetwork(&configuration.Network{Address: "nonsense"})
	if err == nil {
		t.Errorf("Expected error for invalid address")
	}
	network, err = newNetwork(&configuration.Network{})
	if network != nil || err != nil {
		t.Errorf("Expected no network, got %v %v", network, err)
	}
}

func TestNewEventQueue(t *testing.T) {
	config := configuration.DefaultConfiguration()
	config.FullConnections = 1
	config.Notifications = []configuration.Notification{
		{Event: "limit_hit", Type: "url", Url: "http://localhost/hit"},
		{Event: "unknown", Type: "url", Url: "http://localhost/unknown"},
		{Event: "heartbeat", Type: "url", Url: "ftp://localhost/beat"},
	}
	queue := newEventQueue(config)
	queue.Start()
	queue.Shutdown()
}

func TestRouter(t *testing.T) {
	ok := http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Write([]byte(request.URL.Path))
	})
	router := newRouter(&routes{
		index:      ok,
		stream:     ok,
		capture:    ok,
		status:     ok,
		health:     ok,
		statistics: ok,
		metrics:    ok,
	})
	paths := []string{"/", streamPath, capturePath, statusPath, healthPath, statisticsPath, metricsPath}
	for _, path := range paths {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
		if recorder.Code != http.StatusOK || recorder.Body.String() != path {
			t.Errorf("GET %s: got %d %q", path, recorder.Code, recorder.Body.String())
		}
		recorder = httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, path, nil))
		if recorder.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: expected 405, got %d", path, recorder.Code)
		}
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if recorder.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown path, got %d", recorder.Code)
	}
}
