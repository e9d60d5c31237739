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

package origin

import (
	"net/http"
)

const (
	// DeniedMessage is the response body sent to rejected clients.
	DeniedMessage = "Access denied: Only local network access allowed"
)

// Filter decides if a client may access a resource.
type Filter interface {
	// Allow checks a remote address in host:port form.
	Allow(remoteaddr string) bool
}

// NewFilter creates an origin filter for network.
// If enabled is false, every client is accepted.
func NewFilter(network Network, enabled bool) Filter {
	if !enabled || network == nil {
		return &passFilter{}
	}
	return &localFilter{
		network: network,
	}
}

type passFilter struct{}

func (filter *passFilter) Allow(remoteaddr string) bool {
	return true
}

type localFilter struct {
	network Network
}

func (filter *localFilter) Allow(remoteaddr string) bool {
	return IsLocalAddr(remoteaddr, filter.network)
}

// HandleOrigin runs the origin check for a request.
// If it returns false, the client was rejected, a 403 response was sent and
// the caller should return immediately.
func HandleOrigin(filter Filter, request *http.Request, writer http.ResponseWriter) bool {
	if !filter.Allow(request.RemoteAddr) {
		logger.Logkv(
			"event", eventOriginError,
			"error", errorOriginForbidden,
			"statuscode", http.StatusForbidden,
			"message", "Denying access from outside the local network",
			"url", request.URL.Path,
			"client", request.RemoteAddr,
		)
		writer.Header().Set("Content-Type", "text/plain")
		writer.WriteHeader(http.StatusForbidden)
		writer.Write([]byte(DeniedMessage))
		return false
	}
	logger.Logkv(
		"event", eventOriginAccepted,
		"message", "Request from local network",
		"url", request.URL.Path,
		"client", request.RemoteAddr,
	)
	return true
}
