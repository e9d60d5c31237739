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

package configuration

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfiguration(t *testing.T) {
	config := DefaultConfiguration()
	if err := config.Validate(); err != nil {
		t.Fatalf("Default configuration is invalid: %v", err)
	}
	if config.Camera.Quality != 12 {
		t.Errorf("Invalid default quality: %d", config.Camera.Quality)
	}
	if config.Stream.FallbackQuality != 80 {
		t.Errorf("Invalid default fallback quality: %d", config.Stream.FallbackQuality)
	}
	if config.Stream.Interval != 100 || config.Stream.Framerate != 10 {
		t.Errorf("Invalid default pacing: %d ms, %d fps", config.Stream.Interval, config.Stream.Framerate)
	}
}

func TestLoadConfigurationJson(t *testing.T) {
	config, err := LoadConfigurationBytes([]byte(`{
		"listen": ":8080",
		"maxconnections": 4,
		"fullconnections": 3,
		"camera": {"driver": "pattern", "format": "yuyv", "depth": 3},
		"network": {"localonly": true, "interface": "wlan0"},
		"sensor": {"hmirror": true},
		"notifications": [{"event": "limit_hit", "type": "url", "url": "http://localhost/hit"}]
	}`))
	if err != nil {
		t.Fatalf("Error loading configuration: %v", err)
	}
	if config.Listen != ":8080" {
		t.Errorf("Invalid listen address: %s", config.Listen)
	}
	if config.Camera.Format != "yuyv" || config.Camera.Depth != 3 {
		t.Errorf("Invalid camera settings: %+v", config.Camera)
	}
	// defaults survive partial sections
	if config.Camera.Width != 320 || config.Camera.Height != 240 {
		t.Errorf("Default resolution lost: %dx%d", config.Camera.Width, config.Camera.Height)
	}
	if config.Network.Interface != "wlan0" {
		t.Errorf("Invalid interface: %s", config.Network.Interface)
	}
	if !config.Sensor.HMirror {
		t.Errorf("hmirror not set")
	}
	if len(config.Notifications) != 1 || config.Notifications[0].Url != "http://localhost/hit" {
		t.Errorf("Invalid notifications: %+v", config.Notifications)
	}
}

func TestLoadConfigurationYaml(t *testing.T) {
	config, err := LoadConfigurationYaml(strings.NewReader(`
listen: ":9000"
camera:
  driver: directory
  directory: /var/spool/camera
  quality: 20
stream:
  interval: 200
network:
  localonly: false
`))
	if err != nil {
		t.Fatalf("Error loading configuration: %v", err)
	}
	if config.Listen != ":9000" {
		t.Errorf("Invalid listen address: %s", config.Listen)
	}
	if config.Camera.Driver != DriverDirectory || config.Camera.Directory != "/var/spool/camera" {
		t.Errorf("Invalid camera settings: %+v", config.Camera)
	}
	if config.Camera.Quality != 20 || config.Stream.Interval != 200 {
		t.Errorf("Invalid quality or interval: %d %d", config.Camera.Quality, config.Stream.Interval)
	}
	if config.Network.LocalOnly {
		t.Errorf("localonly should be off")
	}
}

func TestLoadConfigurationYamlEmpty(t *testing.T) {
	config, err := LoadConfigurationYaml(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Error loading empty configuration: %v", err)
	}
	if config.Camera.Driver != DriverPattern {
		t.Errorf("Defaults not applied: %s", config.Camera.Driver)
	}
}

func TestLoadConfigurationFile(t *testing.T) {
	dir := t.TempDir()
	yamlfile := filepath.Join(dir, "camstream.yml")
	if err := os.WriteFile(yamlfile, []byte("listen: \":81\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	jsonfile := filepath.Join(dir, "camstream.json")
	if err := os.WriteFile(jsonfile, []byte(`{"listen": ":82"}`), 0644); err != nil {
		t.Fatal(err)
	}
	config, err := LoadConfigurationFile(yamlfile)
	if err != nil || config.Listen != ":81" {
		t.Errorf("YAML file not loaded: %v %v", config, err)
	}
	config, err = LoadConfigurationFile(jsonfile)
	if err != nil || config.Listen != ":82" {
		t.Errorf("JSON file not loaded: %v %v", config, err)
	}
	_, err = LoadConfigurationFile(filepath.Join(dir, "missing.json"))
	if !os.IsNotExist(err) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(config *Configuration)
	}{
		{"driver", func(config *Configuration) { config.Camera.Driver = "usb" }},
		{"directory", func(config *Configuration) { config.Camera.Driver = DriverDirectory }},
		{"resolution", func(config *Configuration) { config.Camera.Width = 0 }},
		{"depth", func(config *Configuration) { config.Camera.Depth = 0 }},
		{"quality", func(config *Configuration) { config.Camera.Quality = 64 }},
		{"fallback", func(config *Configuration) { config.Stream.FallbackQuality = 0 }},
		{"framerate", func(config *Configuration) { config.Stream.Framerate = -1 }},
		{"limits", func(config *Configuration) { config.FullConnections = 5 }},
		{"network", func(config *Configuration) { config.Network.Address = "" }},
		{"notification", func(config *Configuration) {
			config.Notifications = []Notification{{Event: "heartbeat", Type: "mail", Url: "x"}}
		}},
	}
	for _, c := range cases {
		config := DefaultConfiguration()
		c.modify(config)
		err := config.Validate()
		if !errors.Is(err, ErrInvalidConfiguration) {
			t.Errorf("%s: expected ErrInvalidConfiguration, got %v", c.name, err)
		}
	}
}
