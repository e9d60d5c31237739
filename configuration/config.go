/* Copyright (c) 2016-2017 Gregor Riepl
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

package configuration

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidConfiguration is returned by Validate for out-of-range settings.
	ErrInvalidConfiguration = errors.New("camstream: invalid configuration")
)

const (
	// DriverPattern generates a synthetic test picture.
	DriverPattern = "pattern"
	// DriverWebcam captures from a V4L2 device.
	DriverWebcam = "webcam"
	// DriverDirectory serves the newest JPEG file from a spool directory.
	DriverDirectory = "directory"
)

// Camera configures the frame source and the buffer pool.
type Camera struct {
	// Driver selects the frame source: pattern, webcam or directory.
	Driver string `json:"driver" yaml:"driver"`
	// Device is the V4L2 device node for the webcam driver.
	Device string `json:"device" yaml:"device"`
	// Directory is the spool directory for the directory driver.
	Directory string `json:"directory" yaml:"directory"`
	// Width is the horizontal resolution.
	Width int `json:"width" yaml:"width"`
	// Height is the vertical resolution.
	Height int `json:"height" yaml:"height"`
	// Format is the pixel format delivered by the pattern driver.
	// One of jpeg, yuyv, rgb565, rgb888, grayscale.
	Format string `json:"format" yaml:"format"`
	// Quality is the sensor JPEG quality, 0..63, lower is better.
	Quality int `json:"quality" yaml:"quality"`
	// Depth is the number of frame buffers in the pool.
	Depth int `json:"depth" yaml:"depth"`
	// Interval is the frame interval of the pattern driver, in milliseconds.
	Interval uint `json:"interval" yaml:"interval"`
	// Timeout is the time to wait for a frame, in milliseconds.
	Timeout uint `json:"timeout" yaml:"timeout"`
}

// Stream configures the MJPEG stream sessions.
type Stream struct {
	// Interval is the pause between two parts, in milliseconds.
	Interval uint `json:"interval" yaml:"interval"`
	// Framerate is the value of the X-Framerate header.
	Framerate int `json:"framerate" yaml:"framerate"`
	// FallbackQuality is the JPEG quality used when encoding raw frames, 1..100.
	FallbackQuality int `json:"fallbackquality" yaml:"fallbackquality"`
}

// Network configures the local origin filter.
type Network struct {
	// LocalOnly restricts the stream, capture and API endpoints to clients on
	// the local network.
	LocalOnly bool `json:"localonly" yaml:"localonly"`
	// Interface is the network interface whose address defines the local network.
	// Takes precedence over Address.
	Interface string `json:"interface" yaml:"interface"`
	// Address is the device address and netmask in CIDR notation,
	// for example 192.168.4.1/24.
	Address string `json:"address" yaml:"address"`
}

// Sensor holds the image settings reported on the status page.
type Sensor struct {
	Brightness int  `json:"brightness" yaml:"brightness"`
	Contrast   int  `json:"contrast" yaml:"contrast"`
	Saturation int  `json:"saturation" yaml:"saturation"`
	HMirror    bool `json:"hmirror" yaml:"hmirror"`
	VFlip      bool `json:"vflip" yaml:"vflip"`
}

// Notification is a single notification definition.
type Notification struct {
	// Event is the event to watch for.
	// One of limit_hit, limit_miss or heartbeat.
	Event string `json:"event" yaml:"event"`
	// Type is the kind of callback to send.
	// Only url is supported.
	Type string `json:"type" yaml:"type"`
	// Url is the remote to access (if Type is url).
	Url string `json:"url" yaml:"url"`
}

// Configuration is a representation of the configurable settings.
// These are normally read from a JSON or YAML file.
type Configuration struct {
	// Listen is the interface to listen on.
	Listen string `json:"listen" yaml:"listen"`
	// Log is the access log file name.
	// If it is empty, log lines go to standard output.
	Log string `json:"log" yaml:"log"`
	// Profile determines if profiling should be enabled.
	// Set to true to turn on the pprof web server.
	Profile bool `json:"profile" yaml:"profile"`
	// NoStats disables statistics collection, if set.
	NoStats bool `json:"nostats" yaml:"nostats"`
	// MaxConnections is the maximum total number of concurrent stream connections.
	// If it is 0, no hard limit will be imposed.
	MaxConnections uint `json:"maxconnections" yaml:"maxconnections"`
	// FullConnections is the soft limit on the total number of concurrent connections.
	// If it is 0, no soft limit will be imposed/reported.
	FullConnections uint `json:"fullconnections" yaml:"fullconnections"`
	// Heartbeat is the interval between heartbeat notifications, in seconds.
	// 0 disables the heartbeat.
	Heartbeat uint `json:"heartbeat" yaml:"heartbeat"`
	// Camera configures the frame source.
	Camera Camera `json:"camera" yaml:"camera"`
	// Stream configures stream pacing and encoding.
	Stream Stream `json:"stream" yaml:"stream"`
	// Network configures the origin filter.
	Network Network `json:"network" yaml:"network"`
	// Sensor holds the reported image settings.
	Sensor Sensor `json:"sensor" yaml:"sensor"`
	// Notifications defines event callbacks.
	Notifications []Notification `json:"notifications" yaml:"notifications"`
}

// DefaultConfiguration creates and returns a configuration object
// with default values.
func DefaultConfiguration() *Configuration {
	return &Configuration{
		Listen:         "localhost:http",
		MaxConnections: 2,
		Camera: Camera{
			Driver:   DriverPattern,
			Device:   "/dev/video0",
			Width:    320,
			Height:   240,
			Format:   "jpeg",
			Quality:  12,
			Depth:    3,
			Interval: 100,
			Timeout:  5000,
		},
		Stream: Stream{
			Interval:        100,
			Framerate:       10,
			FallbackQuality: 80,
		},
		Network: Network{
			LocalOnly: true,
			Address:   "192.168.4.1/24",
		},
	}
}

// isYaml decides by file extension whether a configuration file is YAML.
func isYaml(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// LoadConfigurationFile loads a configuration from "filename".
// Files ending in .yaml or .yml are parsed as YAML, everything else as JSON.
func LoadConfigurationFile(filename string) (*Configuration, error) {
	fd, err := os.Open(filename)
	if err == nil {
		defer fd.Close()
		if isYaml(filename) {
			return LoadConfigurationYaml(fd)
		}
		return LoadConfiguration(fd)
	} else {
		return nil, err
	}
}

// LoadConfiguration reads JSON data from the Reader argument and returns a parsed configuration from it.
func LoadConfiguration(reader io.Reader) (*Configuration, error) {
	config := DefaultConfiguration()

	decoder := json.NewDecoder(reader)
	err := decoder.Decode(config)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfigurationYaml reads YAML data from the Reader argument and returns a parsed configuration from it.
func LoadConfigurationYaml(reader io.Reader) (*Configuration, error) {
	config := DefaultConfiguration()

	decoder := yaml.NewDecoder(reader)
	err := decoder.Decode(config)
	// an empty document leaves the defaults
	if err != nil && err != io.EOF {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfigurationBytes parses the byte array argument as JSON and initialises a configuration from it.
func LoadConfigurationBytes(json []byte) (*Configuration, error) {
	return LoadConfiguration(bytes.NewReader(json))
}

// Validate checks the configuration for values that cannot work.
func (config *Configuration) Validate() error {
	switch config.Camera.Driver {
	case DriverPattern, DriverWebcam, DriverDirectory:
	default:
		return pkgerrors.Wrapf(ErrInvalidConfiguration, "unknown camera driver %q", config.Camera.Driver)
	}
	if config.Camera.Driver == DriverDirectory && config.Camera.Directory == "" {
		return pkgerrors.Wrap(ErrInvalidConfiguration, "directory driver needs a directory")
	}
	if config.Camera.Width <= 0 || config.Camera.Height <= 0 {
		return pkgerrors.Wrapf(ErrInvalidConfiguration, "invalid resolution %dx%d", config.Camera.Width, config.Camera.Height)
	}
	if config.Camera.Depth < 1 {
		return pkgerrors.Wrapf(ErrInvalidConfiguration, "pool depth %d is less than 1", config.Camera.Depth)
	}
	if config.Camera.Quality < 0 || config.Camera.Quality > 63 {
		return pkgerrors.Wrapf(ErrInvalidConfiguration, "sensor quality %d outside 0..63", config.Camera.Quality)
	}
	if config.Stream.FallbackQuality < 1 || config.Stream.FallbackQuality > 100 {
		return pkgerrors.Wrapf(ErrInvalidConfiguration, "fallback quality %d outside 1..100", config.Stream.FallbackQuality)
	}
	if config.Stream.Framerate < 0 {
		return pkgerrors.Wrapf(ErrInvalidConfiguration, "negative framerate %d", config.Stream.Framerate)
	}
	if config.FullConnections != 0 && config.MaxConnections != 0 && config.FullConnections > config.MaxConnections {
		return pkgerrors.Wrapf(ErrInvalidConfiguration, "soft limit %d above hard limit %d", config.FullConnections, config.MaxConnections)
	}
	if config.Network.LocalOnly && config.Network.Interface == "" && config.Network.Address == "" {
		return pkgerrors.Wrap(ErrInvalidConfiguration, "local-only access needs an interface or address")
	}
	for _, notification := range config.Notifications {
		if notification.Type != "url" {
			return pkgerrors.Wrapf(ErrInvalidConfiguration, "unsupported notification type %q", notification.Type)
		}
		if notification.Url == "" {
			return pkgerrors.Wrapf(ErrInvalidConfiguration, "notification for %s has no url", notification.Event)
		}
	}
	return nil
}
