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
	"fmt"
	"math"
	"sync"
	"time"
)

const (
	// queueSize is the maximum number of notifications to enqueue before we block
	queueSize int = 10
)

// changeType enumerates all possible state change notifications
type changeType int

const (
	changeConnect changeType = iota
	changeHeartbeat
)

// stateChange encapsulates a state change notification
type stateChange struct {
	// typ contains the notification type
	typ changeType
	// connected contains the number of new viewers.
	// Can be negative if viewers disconnect.
	connected int
	// when contains the point of time when the event was created
	when time.Time
}

// Queue encapsulates state for a viewer load reporting callback.
//
// Limit hit and miss events are only sent on transitions, so a viewer count
// that stays above the limit reports a single hit.
type Queue struct {
	// limit sets the number of viewers when a hit is reported
	limit int
	// handlers contains all event handlers
	handlers map[Type]map[Handler]bool
	// lock protects the channels and the running state
	lock sync.RWMutex
	// internal notification channel for the reporting thread
	notifier chan *stateChange
	// viewers contains the number of active viewers.
	// only accessed from the reporting thread
	viewers int
	// shutdown is the internal shutdown notifier
	shutdown chan struct{}
	// running tells if the notifier is currently active
	running bool
	// waiter allows waiting for shutdown
	waiter sync.WaitGroup
}

// NewQueue creates a new viewer load report notifier.
//
// limit specifies the reporting threshold, 0 disables limit events.
func NewQueue(limit int) *Queue {
	if limit < 0 {
		limit = 0
	}
	return &Queue{
		limit:    limit,
		handlers: make(map[Type]map[Handler]bool),
	}
}

// Start launches the reporting goroutine.
//
// To stop the reporter, call Shutdown().
func (reporter *Queue) Start() {
	reporter.lock.Lock()
	defer reporter.lock.Unlock()
	if reporter.running {
		logger.Logkv(
			"event", queueEventError,
			"error", queueErrorAlreadyRunning,
			"message", "Notification handler already running, won't start again",
		)
		return
	}
	logger.Logkv(
		"event", queueEventStarting,
		"message", "Starting notification handler",
	)
	reporter.shutdown = make(chan struct{})
	reporter.notifier = make(chan *stateChange, queueSize)
	reporter.running = true
	reporter.waiter.Add(1)
	go reporter.run(reporter.notifier, reporter.shutdown)
}

// Shutdown stops the load reporter and waits for completion.
// Notifications sent afterwards are discarded.
func (reporter *Queue) Shutdown() {
	logger.Logkv(
		"event", queueEventStopping,
		"message", "Stopping notification handler",
	)
	reporter.lock.Lock()
	if !reporter.running {
		reporter.lock.Unlock()
		return
	}
	reporter.running = false
	close(reporter.shutdown)
	reporter.lock.Unlock()
	reporter.waiter.Wait()
}

// run is the notification handling loop
func (reporter *Queue) run(notifier <-chan *stateChange, shutdown <-chan struct{}) {
	defer reporter.waiter.Done()
	logger.Logkv(
		"event", queueEventStarted,
		"message", "Notification handler started",
	)
	running := true
	for running {
		select {
		case <-shutdown:
			running = false
		case message := <-notifier:
			reporter.handle(message)
		}
	}
	logger.Logkv(
		"event", queueEventDraining,
		"message", "Draining notification queue",
	)
	// handle what was queued before the shutdown, the viewer count must stay correct
	for {
		select {
		case message := <-notifier:
			reporter.handle(message)
		default:
			logger.Logkv(
				"event", queueEventStopped,
				"message", "Stopped notification handler",
			)
			return
		}
	}
}

// handle handles a single message
func (reporter *Queue) handle(message *stateChange) {
	switch message.typ {
	case changeConnect:
		reporter.handleConnect(message.connected)
	case changeHeartbeat:
		reporter.handleHeartbeat(message.when)
	default:
		logger.Logkv(
			"event", queueEventError,
			"error", queueErrorInvalidNotification,
			"type", message.typ,
		)
	}
}

func (reporter *Queue) dispatch(typ Type, args ...interface{}) {
	for handler, ok := range reporter.handlers[typ] {
		if ok {
			handler.HandleEvent(typ, args...)
		}
	}
}

// handleHeartbeat handles a periodic heartbeat
func (reporter *Queue) handleHeartbeat(when time.Time) {
	logger.Logkv(
		"event", queueEventHeartbeat,
		"message", fmt.Sprintf("Periodic heartbeat at: %v", when),
		"when", when,
		"viewers", reporter.viewers,
	)
	reporter.dispatch(TypeHeartbeat, when)
}

// handleConnect handles a viewer count change
func (reporter *Queue) handleConnect(connected int) {
	logger.Logkv(
		"event", queueEventConnect,
		"message", fmt.Sprintf("Number of viewers changed by %d, current number %d, new number %d", connected, reporter.viewers, reporter.viewers+connected),
		"connected", connected,
		"current_viewers", reporter.viewers,
		"new_viewers", reporter.viewers+connected,
	)
	var newcount int
	if connected < 0 && -connected > reporter.viewers {
		logger.Logkv(
			"event", queueEventError,
			"error", queueErrorUnderflow,
			"message", "Number of disconnects exceeds number of viewers, setting to 0",
			"connected", connected,
			"viewers", reporter.viewers,
		)
		newcount = 0
	} else if connected > math.MaxInt32-reporter.viewers {
		logger.Logkv(
			"event", queueEventError,
			"error", queueErrorOverflow,
			"message", "Number of connects exceeds counter range, clamping to limit",
			"connected", connected,
			"viewers", reporter.viewers,
		)
		newcount = math.MaxInt32
	} else {
		newcount = reporter.viewers + connected
	}
	if reporter.limit != 0 {
		if reporter.viewers >= reporter.limit && newcount < reporter.limit {
			logger.Logkv(
				"event", queueEventLimitMiss,
				"message", "Limit missed",
				"viewers", reporter.viewers,
				"new", newcount,
				"limit", reporter.limit,
			)
			reporter.dispatch(TypeLimitMiss, reporter.viewers, newcount, reporter.limit)
		} else if reporter.viewers < reporter.limit && newcount >= reporter.limit {
			logger.Logkv(
				"event", queueEventLimitHit,
				"message", "Limit hit",
				"viewers", reporter.viewers,
				"new", newcount,
				"limit", reporter.limit,
			)
			reporter.dispatch(TypeLimitHit, reporter.viewers, newcount, reporter.limit)
		}
	}
	reporter.viewers = newcount
}

// RegisterEventHandler adds a handler for an event type.
// Handlers can only be changed while the queue is stopped.
func (reporter *Queue) RegisterEventHandler(typ Type, handler Handler) {
	reporter.lock.Lock()
	defer reporter.lock.Unlock()
	if reporter.running {
		logger.Logkv(
			"event", queueEventError,
			"error", queueErrorRegister,
			"message", "Cannot register new handlers while the queue is running",
		)
		return
	}
	if _, ok := reporter.handlers[typ]; !ok {
		reporter.handlers[typ] = make(map[Handler]bool)
	}
	reporter.handlers[typ][handler] = true
}

// UnregisterEventHandler removes a handler.
func (reporter *Queue) UnregisterEventHandler(typ Type, handler Handler) {
	reporter.lock.Lock()
	defer reporter.lock.Unlock()
	if reporter.running {
		logger.Logkv(
			"event", queueEventError,
			"error", queueErrorRegister,
			"message", "Cannot unregister handlers while the queue is running",
		)
		return
	}
	if _, ok := reporter.handlers[typ][handler]; ok {
		delete(reporter.handlers[typ], handler)
	} else {
		logger.Logkv(
			"event", queueEventError,
			"error", queueErrorNotRegistered,
			"message", "Event handler wasn't registered",
		)
	}
}

// post queues a message, or drops it if the queue is not running.
func (reporter *Queue) post(message *stateChange) {
	reporter.lock.RLock()
	defer reporter.lock.RUnlock()
	if !reporter.running {
		logger.Logkv(
			"event", queueEventError,
			"error", queueErrorNotRunning,
			"message", "Dropping notification, the queue is not running",
		)
		return
	}
	select {
	case reporter.notifier <- message:
	case <-reporter.shutdown:
	}
}

func (reporter *Queue) NotifyConnect(connected int) {
	reporter.post(&stateChange{
		typ:       changeConnect,
		connected: connected,
	})
}

func (reporter *Queue) NotifyHeartbeat(when time.Time) {
	reporter.post(&stateChange{
		typ:  changeHeartbeat,
		when: when,
	})
}
