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

package event

import (
	"sync"
	"time"
)

// HeartbeatStopper can stop a heartbeat.
type HeartbeatStopper interface {
	Stop()
}

// Heartbeat calls NotifyHeartbeat on a target at regular intervals.
type Heartbeat struct {
	// ticker fires a heartbeat at regular intervals.
	ticker *time.Ticker
	// target is the notification target.
	// NotifyHeartbeat will be called on each tick.
	target Notifiable
	// done ends the loop
	done chan struct{}
	// stopped is closed when the loop has exited
	stopped chan struct{}
	once    sync.Once
}

// NewHeartbeat creates a new heartbeat ticker.
//
// On each heartbeat, target.NotifyHeartbeat will be called with the current timestamp.
// Note that this happens asynchronously from a separate goroutine.
func NewHeartbeat(interval time.Duration, target Notifiable) *Heartbeat {
	heartbeat := &Heartbeat{
		ticker:  time.NewTicker(interval),
		target:  target,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go heartbeat.loop()
	return heartbeat
}

// loop is the ticker run loop
func (heartbeat *Heartbeat) loop() {
	defer close(heartbeat.stopped)
	logger.Logkv(
		"event", queueEventHeartbeatStart,
		"message", "Starting heartbeat goroutine",
	)
	for {
		select {
		case now := <-heartbeat.ticker.C:
			logger.Logkv(
				"event", queueEventHeartbeatFire,
				"message", "Firing heartbeat",
			)
			heartbeat.target.NotifyHeartbeat(now)
		case <-heartbeat.done:
			logger.Logkv(
				"event", queueEventHeartbeatStop,
				"message", "Stopping heartbeat goroutine",
			)
			return
		}
	}
}

// Stop ends the heartbeat and waits for the loop to exit.
// It can be called more than once.
func (heartbeat *Heartbeat) Stop() {
	heartbeat.once.Do(func() {
		heartbeat.ticker.Stop()
		close(heartbeat.done)
	})
	<-heartbeat.stopped
}

// DummyHeartbeat is used when heartbeats are disabled.
type DummyHeartbeat struct{}

// Stop does nothing
func (*DummyHeartbeat) Stop() {
	// do nothing
}
