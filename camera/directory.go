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

package camera

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// DirectoryDriver serves the most recently written JPEG file in a directory.
// It is meant for cameras that drop snapshots into a spool directory.
type DirectoryDriver struct {
	path    string
	timeout time.Duration
	watcher *fsnotify.Watcher
	status  SensorStatus
	lock    sync.Mutex
	current *Frame
	// closed and replaced whenever a new frame is loaded
	updated chan struct{}
	done    chan struct{}
	closed  bool
}

// NewDirectoryDriver starts watching path.
// Grab waits up to timeout for the first image to appear.
func NewDirectoryDriver(path string, timeout time.Duration, status SensorStatus) (*DirectoryDriver, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating watcher")
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, errors.Wrapf(err, "watching %s", path)
	}

	driver := &DirectoryDriver{
		path:    path,
		timeout: timeout,
		watcher: watcher,
		status:  status,
		updated: make(chan struct{}),
		done:    make(chan struct{}),
	}
	if latest := latestImage(path); latest != "" {
		driver.load(latest)
	}

	logger.Logkv(
		"event", eventCameraWatching,
		"driver", "directory",
		"path", path,
	)

	go driver.watch()
	return driver, nil
}

func isImageName(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".jpg" || ext == ".jpeg"
}

func latestImage(path string) string {
	entries, err := os.ReadDir(path)
	if err != nil {
		return ""
	}
	var latest string
	var stamp time.Time
	for _, entry := range entries {
		if entry.IsDir() || !isImageName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(stamp) {
			latest = filepath.Join(path, entry.Name())
			stamp = info.ModTime()
		}
	}
	return latest
}

func (driver *DirectoryDriver) watch() {
	for {
		select {
		case <-driver.done:
			return
		case event, ok := <-driver.watcher.Events:
			if !ok {
				return
			}
			if !isImageName(event.Name) {
				continue
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				driver.load(event.Name)
			}
		case err, ok := <-driver.watcher.Errors:
			if !ok {
				return
			}
			logger.Logkv(
				"event", eventCameraError,
				"error", errorCameraWatch,
				"message", err.Error(),
			)
		}
	}
}

// load replaces the current frame with the contents of name.
// Incomplete files are skipped, the next write event will pick them up.
func (driver *DirectoryDriver) load(name string) {
	data, err := os.ReadFile(name)
	if err != nil {
		logger.Logkv(
			"event", eventCameraError,
			"error", errorCameraRead,
			"message", err.Error(),
		)
		return
	}
	if !bytes.HasPrefix(data, []byte{0xff, 0xd8}) || !bytes.HasSuffix(data, []byte{0xff, 0xd9}) {
		logger.Logkv(
			"event", eventCameraError,
			"error", errorCameraInvalidJpeg,
			"message", fmt.Sprintf("Skipping incomplete image %s", name),
		)
		return
	}
	config, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		logger.Logkv(
			"event", eventCameraError,
			"error", errorCameraInvalidJpeg,
			"message", err.Error(),
		)
		return
	}

	frame := &Frame{
		Data:      data,
		Format:    FormatJPEG,
		Width:     config.Width,
		Height:    config.Height,
		Timestamp: time.Now(),
	}
	driver.lock.Lock()
	driver.current = frame
	close(driver.updated)
	driver.updated = make(chan struct{})
	driver.status.FrameSize = FrameSizeID(config.Width, config.Height)
	driver.lock.Unlock()

	logger.Logkv(
		"event", eventCameraUpdate,
		"file", name,
		"length", len(data),
	)
}

// Grab returns the current image, waiting for the first one if necessary.
func (driver *DirectoryDriver) Grab() (*Frame, error) {
	driver.lock.Lock()
	if driver.closed {
		driver.lock.Unlock()
		return nil, ErrClosed
	}
	current := driver.current
	updated := driver.updated
	driver.lock.Unlock()

	if current == nil {
		timer := time.NewTimer(driver.timeout)
		defer timer.Stop()
		select {
		case <-updated:
		case <-timer.C:
			return nil, ErrNoFrame
		case <-driver.done:
			return nil, ErrClosed
		}
		driver.lock.Lock()
		current = driver.current
		driver.lock.Unlock()
	}

	// file contents are never modified in place, so sharing Data is safe
	frame := *current
	return &frame, nil
}

func (driver *DirectoryDriver) Return(frame *Frame) error {
	return nil
}

func (driver *DirectoryDriver) Close() error {
	driver.lock.Lock()
	if driver.closed {
		driver.lock.Unlock()
		return nil
	}
	driver.closed = true
	driver.lock.Unlock()
	close(driver.done)
	return driver.watcher.Close()
}

func (driver *DirectoryDriver) Status() SensorStatus {
	driver.lock.Lock()
	defer driver.lock.Unlock()
	return driver.status
}
