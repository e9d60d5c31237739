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
	"net/http"
	"net/url"
	"time"
)

const (
	// urlHandlerTimeout bounds a callback, the queue waits for it.
	urlHandlerTimeout = 10 * time.Second
)

// UrlHandler is an event handler that can send GET requests to a preconfigured HTTP URL.
type UrlHandler struct {
	// Url is the parsed URL
	Url *url.URL
	// client sends the requests
	client *http.Client
}

// NewUrlHandler creates a handler for a callback URL.
func NewUrlHandler(urly string) (*UrlHandler, error) {
	u, err := url.Parse(urly)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("camstream: unsupported callback scheme in %q", urly)
	}
	return &UrlHandler{
		Url: u,
		client: &http.Client{
			Timeout: urlHandlerTimeout,
		},
	}, nil
}

// HandleEvent sends a GET request to the callback URL.
// The event type is added as the query parameter "event".
func (handler *UrlHandler) HandleEvent(typ Type, args ...interface{}) {
	target := *handler.Url
	query := target.Query()
	query.Set("event", typ.String())
	target.RawQuery = query.Encode()

	logger.Logkv(
		"event", urlHandlerEventNotify,
		"message", fmt.Sprintf("Event received, notifying %s", handler.Url),
		"url", target.String(),
		"type", typ.String(),
	)
	response, err := handler.client.Get(target.String())
	if err != nil {
		logger.Logkv(
			"event", urlHandlerEventError,
			"error", urlHandlerErrorGet,
			"message", fmt.Sprintf("Error sending GET request: %v", err),
			"url", handler.Url.String(),
			"type", typ.String(),
		)
		return
	}
	response.Body.Close()
	if response.StatusCode >= 400 {
		logger.Logkv(
			"event", urlHandlerEventError,
			"error", urlHandlerErrorStatus,
			"message", fmt.Sprintf("Callback returned status %d", response.StatusCode),
			"url", handler.Url.String(),
			"type", typ.String(),
		)
	}
}
