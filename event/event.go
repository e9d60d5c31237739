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

// Package event reports viewer load changes and heartbeats to external systems.
package event

import (
	"fmt"
)

// Type is the kind of event sent to a Handler.
type Type int

const (
	// TypeLimitHit is sent when the number of viewers reaches the limit.
	// Arguments: previous count, new count, limit.
	TypeLimitHit Type = iota
	// TypeLimitMiss is sent when the number of viewers drops below the limit.
	// Arguments: previous count, new count, limit.
	TypeLimitMiss
	// TypeHeartbeat is sent periodically.
	// Arguments: the time of the heartbeat.
	TypeHeartbeat
)

var typeNames = map[Type]string{
	TypeLimitHit:  "limit_hit",
	TypeLimitMiss: "limit_miss",
	TypeHeartbeat: "heartbeat",
}

func (typ Type) String() string {
	if name, ok := typeNames[typ]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(typ))
}

// ParseType converts a configuration name into an event type.
func ParseType(name string) (Type, error) {
	for typ, tname := range typeNames {
		if tname == name {
			return typ, nil
		}
	}
	return 0, fmt.Errorf("camstream: unknown event type %q", name)
}

// Handler receives events from a Queue.
//
// HandleEvent is called from the queue goroutine, it should not block for long.
type Handler interface {
	HandleEvent(typ Type, args ...interface{})
}
