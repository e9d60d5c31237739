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

package streaming

import (
	"github.com/onitake/camstream/util"
)

const (
	moduleStreaming = "streaming"
	//
	eventAclError    = "error"
	eventAclAccepted = "accepted"
	eventAclDenied   = "denied"
	eventAclRemoved  = "removed"
	//
	errorAclNoConnection = "noconnection"
	//
	eventSessionError    = "error"
	eventSessionOpen     = "open"
	eventSessionHeaders  = "headersent"
	eventSessionClosed   = "closed"
	eventSessionShutdown = "shutdown"
	//
	errorSessionCapture   = "capture"
	errorSessionForbidden = "forbidden"
	errorSessionEncode    = "encode"
	errorSessionWrite     = "write"
	errorSessionPoolFull  = "poolfull"
	errorSessionNoFlush   = "noflush"
	//
	eventStreamerShutdown = "shutdown"
	//
	eventCaptureError = "error"
	eventCaptureSent  = "sent"
	//
	errorCaptureFailed = "capture"
	errorCaptureEncode = "encode"
)

var logger = util.NewGlobalModuleLogger(moduleStreaming, nil)
