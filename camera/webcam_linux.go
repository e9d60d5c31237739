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

//go:build linux

package camera

import (
	"time"

	"github.com/blackjack/webcam"
	"github.com/pkg/errors"
)

const (
	fourccMJPG = webcam.PixelFormat('M' | 'J'<<8 | 'P'<<16 | 'G'<<24)
	fourccYUYV = webcam.PixelFormat('Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24)
)

// WebcamDriver captures from a V4L2 device.
// The device buffers are handed out directly, without copying.
type WebcamDriver struct {
	device  *webcam.Webcam
	path    string
	format  PixelFormat
	width   int
	height  int
	timeout uint32
	status  SensorStatus
}

// OpenWebcam opens a V4L2 device and starts streaming with depth buffers.
// MJPEG is preferred, YUYV is used if the device cannot compress.
func OpenWebcam(path string, width, height, depth int, timeout time.Duration, status SensorStatus) (*WebcamDriver, error) {
	device, err := webcam.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}

	formats := device.GetSupportedFormats()
	var v4lformat webcam.PixelFormat
	var format PixelFormat
	if _, ok := formats[fourccMJPG]; ok {
		v4lformat = fourccMJPG
		format = FormatJPEG
	} else if _, ok := formats[fourccYUYV]; ok {
		v4lformat = fourccYUYV
		format = FormatYUYV
	} else {
		device.Close()
		return nil, errors.Errorf("camstream: %s supports neither MJPEG nor YUYV", path)
	}

	_, w, h, err := device.SetImageFormat(v4lformat, uint32(width), uint32(height))
	if err != nil {
		device.Close()
		return nil, errors.Wrap(err, "setting image format")
	}
	if err := device.SetBufferCount(uint32(depth)); err != nil {
		device.Close()
		return nil, errors.Wrap(err, "setting buffer count")
	}
	if err := device.StartStreaming(); err != nil {
		device.Close()
		return nil, errors.Wrap(err, "starting stream")
	}

	seconds := uint32(timeout / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	status.FrameSize = FrameSizeID(int(w), int(h))

	logger.Logkv(
		"event", eventCameraOpen,
		"driver", "webcam",
		"device", path,
		"width", w,
		"height", h,
		"format", format.String(),
	)

	return &WebcamDriver{
		device:  device,
		path:    path,
		format:  format,
		width:   int(w),
		height:  int(h),
		timeout: seconds,
		status:  status,
	}, nil
}

// Grab dequeues the next filled device buffer.
func (driver *WebcamDriver) Grab() (*Frame, error) {
	err := driver.device.WaitForFrame(driver.timeout)
	if err != nil {
		switch err.(type) {
		case *webcam.Timeout:
			return nil, ErrNoFrame
		default:
			return nil, errors.Wrap(err, "waiting for frame")
		}
	}
	data, index, err := driver.device.GetFrame()
	if err != nil {
		return nil, errors.Wrap(err, "dequeuing frame")
	}
	if len(data) == 0 {
		// spurious wakeup, the buffer must still be requeued
		driver.device.ReleaseFrame(index)
		return nil, ErrNoFrame
	}
	return &Frame{
		Data:      data,
		Format:    driver.format,
		Width:     driver.width,
		Height:    driver.height,
		Timestamp: time.Now(),
		slot:      index,
	}, nil
}

// Return requeues the device buffer of a frame.
func (driver *WebcamDriver) Return(frame *Frame) error {
	return errors.Wrap(driver.device.ReleaseFrame(frame.slot), "requeuing frame")
}

func (driver *WebcamDriver) Close() error {
	if err := driver.device.StopStreaming(); err != nil {
		logger.Logkv(
			"event", eventCameraError,
			"error", errorCameraGrab,
			"message", err.Error(),
		)
	}
	return driver.device.Close()
}

func (driver *WebcamDriver) Status() SensorStatus {
	return driver.status
}
