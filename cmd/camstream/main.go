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
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/onitake/camstream/api"
	"github.com/onitake/camstream/camera"
	"github.com/onitake/camstream/configuration"
	"github.com/onitake/camstream/event"
	"github.com/onitake/camstream/metrics"
	"github.com/onitake/camstream/origin"
	"github.com/onitake/camstream/streaming"
	"github.com/onitake/camstream/util"
	"github.com/onitake/camstream/web"
)

// shutdownTimeout bounds the wait for running handlers on exit.
const shutdownTimeout = 5 * time.Second

func main() {
	var configname string
	if len(os.Args) > 1 {
		configname = os.Args[1]
	} else {
		configname = "camstream.json"
	}

	config, err := configuration.LoadConfigurationFile(configname)
	if err != nil {
		log.Fatal("Error parsing configuration: ", err)
	}

	if config.Log != "" {
		flogger, err := util.NewFileLogger(config.Log, true)
		if err != nil {
			log.Fatal("Error opening log: ", err)
		}
		util.SetGlobalStandardLogger(flogger)
		defer flogger.Close()
	}

	logger.Logkv(
		"event", eventMainConfig,
		"listen", config.Listen,
		"driver", config.Camera.Driver,
		"maxconnections", config.MaxConnections,
	)

	if config.Profile {
		EnableProfiling()
	}
	metrics.RegisterRuntimeCollectors()

	driver, err := openCamera(&config.Camera, &config.Sensor)
	if err != nil {
		log.Fatal("Error opening camera: ", err)
	}
	pool := camera.NewPool(driver, config.Camera.Depth)

	network, err := newNetwork(&config.Network)
	if err != nil {
		log.Fatal("Error configuring network: ", err)
	}
	filter := origin.NewFilter(network, config.Network.LocalOnly)

	var stats metrics.Statistics
	if config.NoStats {
		stats = &metrics.DummyStatistics{}
	} else {
		stats = metrics.NewStatistics(config.MaxConnections, config.FullConnections)
	}
	collector := stats.RegisterStream(streamPath)

	queue := newEventQueue(config)
	queue.Start()
	var heartbeat event.HeartbeatStopper = &event.DummyHeartbeat{}
	if config.Heartbeat > 0 {
		heartbeat = event.NewHeartbeat(time.Duration(config.Heartbeat)*time.Second, queue)
	}

	controller := streaming.NewAccessController(config.MaxConnections)
	streamer := streaming.NewStreamer(pool, controller, filter)
	streamer.SetCollector(collector)
	streamer.SetNotifier(queue)
	streamer.SetPacing(time.Duration(config.Stream.Interval)*time.Millisecond, config.Stream.Framerate)
	streamer.SetFallbackQuality(config.Stream.FallbackQuality)

	capturer := streaming.NewCapturer(pool, filter, config.Camera.Depth)
	capturer.SetCollector(collector)
	capturer.SetFallbackQuality(config.Stream.FallbackQuality)

	router := newRouter(&routes{
		index:      web.NewIndexPage(),
		stream:     streamer,
		capture:    capturer,
		status:     api.NewStatusApi(pool),
		health:     api.NewHealthApi(stats, pool, filter),
		statistics: api.NewStatisticsApi(stats, filter),
		metrics:    api.NewPrometheusApi(filter),
	})
	server := &http.Server{
		Addr:    config.Listen,
		Handler: router,
	}

	logger.Logkv(
		"event", eventMainStartMonitor,
		"message", "Starting stats monitor",
	)
	stats.Start()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, util.ShutdownSignals...)
	failed := make(chan error, 1)
	go func() {
		logger.Logkv(
			"event", eventMainStartServer,
			"message", "Starting server",
		)
		failed <- server.ListenAndServe()
	}()

	select {
	case sig := <-signals:
		logger.Logkv(
			"event", eventMainShutdown,
			"signal", sig.String(),
			"message", "Shutting down",
		)
	case err := <-failed:
		logger.Logkv(
			"event", eventMainError,
			"error", errorMainServer,
			"message", err.Error(),
		)
	}

	// sessions end first, so Shutdown does not wait for endless streams
	streamer.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Logkv(
			"event", eventMainError,
			"error", errorMainShutdown,
			"message", err.Error(),
		)
	}
	heartbeat.Stop()
	queue.Shutdown()
	stats.Stop()
	if err := pool.Close(); err != nil {
		logger.Logkv(
			"event", eventMainError,
			"error", errorMainCameraClose,
			"message", err.Error(),
		)
	}
	logger.Logkv(
		"event", eventMainStopped,
		"message", "Server stopped",
	)
}
