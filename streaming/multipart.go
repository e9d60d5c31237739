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
	"net/http"
	"strconv"
	"time"
)

const (
	// Boundary separates the parts of the MJPEG stream.
	Boundary = "123456789000000000000987654321"
	// StreamContentType declares the multipart stream.
	StreamContentType = "multipart/x-mixed-replace;boundary=" + Boundary
	// Delimiter is written after every part, and once before the first.
	Delimiter = "\r\n--" + Boundary + "\r\n"
	// DefaultFramerate is the advisory frame rate sent in the X-Framerate header.
	DefaultFramerate = 10
	// DefaultInterval is the pause between two frames.
	DefaultInterval = 100 * time.Millisecond
)

var delimiter = []byte(Delimiter)

// appendPartHeader formats the header of one JPEG part into dst.
// The result is identical to
// fmt.Sprintf("Content-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", length).
func appendPartHeader(dst []byte, length int) []byte {
	dst = append(dst, "Content-Type: image/jpeg\r\nContent-Length: "...)
	dst = strconv.AppendInt(dst, int64(length), 10)
	return append(dst, "\r\n\r\n"...)
}

// setNoCache suppresses caching by browsers and intermediate proxies.
func setNoCache(header http.Header) {
	header.Set("Cache-Control", "no-cache,no-store,no-transform")
	header.Set("Pragma", "no-cache")
}

// ServeStreamError returns an appropriate error response to the client.
func ServeStreamError(writer http.ResponseWriter, status int) {
	setNoCache(writer.Header())
	writer.Header().Set("Content-Type", "text/plain")
	writer.WriteHeader(status)
	writer.Write([]byte(http.StatusText(status)))
}
