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
	"github.com/onitake/camstream/util"
)

const (
	moduleMain = "main"
	//
	eventMainError        = "error"
	eventMainConfig       = "config"
	eventMainConfigCamera = "camera"
	eventMainConfigOrigin = "origin"
	eventMainConfigEvent  = "notification"
	eventMainProfile      = "profile"
	eventMainReclaim      = "reclaim"
	eventMainStartMonitor = "start_monitor"
	eventMainStartServer  = "start_server"
	eventMainShutdown     = "shutdown"
	eventMainStopped      = "stopped"
	//
	errorMainInvalidNotification = "invalid_notification"
	errorMainProfile             = "profile"
	errorMainServer              = "server"
	errorMainShutdown            = "shutdown"
	errorMainCameraClose         = "cameraclose"
)

var logger = util.NewGlobalModuleLogger(moduleMain, nil)
