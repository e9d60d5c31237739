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
	"time"

	"github.com/gorilla/mux"
	"github.com/onitake/camstream/camera"
	"github.com/onitake/camstream/configuration"
	"github.com/onitake/camstream/event"
	"github.com/onitake/camstream/origin"
)

const (
	streamPath     = "/stream"
	capturePath    = "/capture"
	statusPath     = "/status"
	healthPath     = "/api/health"
	statisticsPath = "/api/statistics"
	metricsPath    = "/metrics"
)

// openCamera creates the frame driver selected in the configuration.
func openCamera(config *configuration.Camera, sensor *configuration.Sensor) (camera.Driver, error) {
	status := camera.SensorStatus{
		FrameSize:  camera.FrameSizeID(config.Width, config.Height),
		Quality:    config.Quality,
		Brightness: sensor.Brightness,
		Contrast:   sensor.Contrast,
		Saturation: sensor.Saturation,
		HMirror:    sensor.HMirror,
		VFlip:      sensor.VFlip,
	}
	timeout := time.Duration(config.Timeout) * time.Millisecond

	logger.Logkv(
		"event", eventMainConfigCamera,
		"driver", config.Driver,
		"width", config.Width,
		"height", config.Height,
		"depth", config.Depth,
		"message", "Opening camera",
	)

	switch config.Driver {
	case configuration.DriverWebcam:
		driver, err := camera.OpenWebcam(config.Device, config.Width, config.Height, config.Depth, timeout, status)
		if err != nil {
			return nil, err
		}
		return driver, nil
	case configuration.DriverDirectory:
		driver, err := camera.NewDirectoryDriver(config.Directory, timeout, status)
		if err != nil {
			return nil, err
		}
		return driver, nil
	default:
		format, err := camera.ParsePixelFormat(config.Format)
		if err != nil {
			return nil, err
		}
		interval := time.Duration(config.Interval) * time.Millisecond
		driver, err := camera.NewPatternDriver(config.Width, config.Height, format, interval, status)
		if err != nil {
			return nil, err
		}
		return driver, nil
	}
}

// newNetwork returns the local network definition for the origin filter.
// An interface name takes precedence over a static address.
func newNetwork(config *configuration.Network) (origin.Network, error) {
	if config.Interface != "" {
		logger.Logkv(
			"event", eventMainConfigOrigin,
			"interface", config.Interface,
			"localonly", config.LocalOnly,
		)
		return &origin.InterfaceNetwork{
			Name: config.Interface,
		}, nil
	}
	if config.Address != "" {
		logger.Logkv(
			"event", eventMainConfigOrigin,
			"address", config.Address,
			"localonly", config.LocalOnly,
		)
		network, err := origin.ParseStaticNetwork(config.Address)
		if err != nil {
			return nil, err
		}
		return network, nil
	}
	return nil, nil
}

// newEventQueue creates a notification queue and registers the configured callbacks.
// Invalid notifications are logged and skipped.
func newEventQueue(config *configuration.Configuration) *event.Queue {
	queue := event.NewQueue(int(config.FullConnections))
	for _, note := range config.Notifications {
		typ, err := event.ParseType(note.Event)
		if err == nil {
			var handler *event.UrlHandler
			handler, err = event.NewUrlHandler(note.Url)
			if err == nil {
				logger.Logkv(
					"event", eventMainConfigEvent,
					"type", typ.String(),
					"url", note.Url,
				)
				queue.RegisterEventHandler(typ, handler)
			}
		}
		if err != nil {
			logger.Logkv(
				"event", eventMainError,
				"error", errorMainInvalidNotification,
				"message", err.Error(),
			)
		}
	}
	return queue
}

// routes holds the handlers for each endpoint.
type routes struct {
	index      http.Handler
	stream     http.Handler
	capture    http.Handler
	status     http.Handler
	health     http.Handler
	statistics http.Handler
	metrics    http.Handler
}

// methodNotAllowed answers any non-GET request.
func methodNotAllowed(writer http.ResponseWriter, request *http.Request) {
	writer.Header().Set("Allow", http.MethodGet)
	http.Error(writer, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

// newRouter maps all endpoints. Only GET is accepted.
func newRouter(handlers *routes) *mux.Router {
	router := mux.NewRouter()
	router.Handle("/", handlers.index).Methods(http.MethodGet)
	router.Handle(streamPath, handlers.stream).Methods(http.MethodGet)
	router.Handle(capturePath, handlers.capture).Methods(http.MethodGet)
	router.Handle(statusPath, handlers.status).Methods(http.MethodGet)
	router.Handle(healthPath, handlers.health).Methods(http.MethodGet)
	router.Handle(statisticsPath, handlers.statistics).Methods(http.MethodGet)
	router.Handle(metricsPath, handlers.metrics).Methods(http.MethodGet)
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	return router
}
