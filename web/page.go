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

// Package web serves the embedded control page.
package web

import (
	_ "embed"
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
)

//go:embed index.html
var indexPage []byte

// Etag calculates a hash value of data and returns it as a quoted hex string.
// Suitable for HTTP Etags.
func Etag(data []byte) string {
	// 64-bit FNV-1a checksum of the data
	hash := fnv.New64a()
	hash.Write(data)
	return fmt.Sprintf("\"%016x\"", hash.Sum64())
}

// Page is a static in-memory HTML document.
type Page struct {
	data []byte
	etag string
}

// NewPage creates a handler that serves data as text/html.
func NewPage(data []byte) *Page {
	return &Page{
		data: data,
		etag: Etag(data),
	}
}

// NewIndexPage creates a handler for the built-in control page.
func NewIndexPage() *Page {
	return NewPage(indexPage)
}

// ServeHTTP sends the page, or 304 if the client already has it.
func (page *Page) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	writer.Header().Set("Content-Encoding", "identity")
	writer.Header().Set("ETag", page.etag)
	writer.Header().Set("Cache-Control", "no-cache")

	if request.Header.Get("If-None-Match") == page.etag {
		logger.Logkv(
			"event", eventPageNotModified,
			"message", "Returning 304",
			"url", request.URL.Path,
		)
		writer.WriteHeader(http.StatusNotModified)
		return
	}

	logger.Logkv(
		"event", eventPageContent,
		"message", "Returning page",
		"url", request.URL.Path,
		"client", request.RemoteAddr,
	)
	writer.Header().Set("Content-Length", strconv.Itoa(len(page.data)))
	writer.WriteHeader(http.StatusOK)
	writer.Write(page.data)
}
