/* Copyright (c) 2017 Gregor Riepl
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

import _ "net/http/pprof"
import (
	"net/http"
	"runtime"
	"runtime/debug"
)

const profileListen = "localhost:6060"

// EnableProfiling starts the pprof web server on a separate port.
func EnableProfiling() {
	// Enable block profiling (granularity: 100 ms)
	runtime.SetBlockProfileRate(100000000)
	// Register URL to force reclaiming memory
	http.HandleFunc("/reclaim", func(http.ResponseWriter, *http.Request) {
		logger.Logkv(
			"event", eventMainReclaim,
			"message", "Reclaiming memory",
		)
		debug.FreeOSMemory()
	})
	logger.Logkv(
		"event", eventMainProfile,
		"listen", profileListen,
		"message", "Starting profiling server",
	)
	go func() {
		// Start profiling web server
		err := http.ListenAndServe(profileListen, nil)
		logger.Logkv(
			"event", eventMainError,
			"error", errorMainProfile,
			"message", err.Error(),
		)
	}()
}
