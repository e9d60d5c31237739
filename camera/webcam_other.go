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

//go:build !linux

package camera

import (
	"time"
)

// WebcamDriver is only available on Linux.
type WebcamDriver struct{}

// OpenWebcam always fails on this platform.
func OpenWebcam(path string, width, height, depth int, timeout time.Duration, status SensorStatus) (*WebcamDriver, error) {
	return nil, ErrUnsupported
}

func (driver *WebcamDriver) Grab() (*Frame, error) {
	return nil, ErrUnsupported
}

func (driver *WebcamDriver) Return(frame *Frame) error {
	return ErrUnsupported
}

func (driver *WebcamDriver) Close() error {
	return nil
}

func (driver *WebcamDriver) Status() SensorStatus {
	return SensorStatus{}
}
