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
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// PatternDriver generates a moving test pattern.
// It stands in for a camera sensor when no hardware is present.
type PatternDriver struct {
	width    int
	height   int
	format   PixelFormat
	interval time.Duration
	status   SensorStatus
	lock     sync.Mutex
	next     time.Time
	sequence int
	closed   bool
}

// NewPatternDriver creates a pattern generator producing one frame per interval.
func NewPatternDriver(width, height int, format PixelFormat, interval time.Duration, status SensorStatus) (*PatternDriver, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("camstream: invalid pattern size %dx%d", width, height)
	}
	if format == FormatYUYV && width%2 != 0 {
		return nil, errors.Errorf("camstream: yuyv needs an even width, got %d", width)
	}
	if _, ok := formatNames[format]; !ok {
		return nil, errors.Errorf("camstream: unsupported pattern format %v", format)
	}
	status.FrameSize = FrameSizeID(width, height)
	logger.Logkv(
		"event", eventCameraOpen,
		"driver", "pattern",
		"width", width,
		"height", height,
		"format", format.String(),
	)
	return &PatternDriver{
		width:    width,
		height:   height,
		format:   format,
		interval: interval,
		status:   status,
	}, nil
}

// Grab waits for the next frame interval and renders a frame.
func (driver *PatternDriver) Grab() (*Frame, error) {
	driver.lock.Lock()
	if driver.closed {
		driver.lock.Unlock()
		return nil, ErrClosed
	}
	now := time.Now()
	wait := driver.next.Sub(now)
	if wait < 0 {
		wait = 0
		driver.next = now
	}
	driver.next = driver.next.Add(driver.interval)
	driver.sequence++
	sequence := driver.sequence
	status := driver.status
	driver.lock.Unlock()

	time.Sleep(wait)

	img := driver.render(sequence, status)
	data, err := driver.pack(img, status)
	if err != nil {
		return nil, errors.Wrap(err, "rendering test pattern")
	}
	return &Frame{
		Data:      data,
		Format:    driver.format,
		Width:     driver.width,
		Height:    driver.height,
		Timestamp: time.Now(),
		slot:      uint32(sequence),
	}, nil
}

// Return does nothing, pattern frames are garbage collected.
func (driver *PatternDriver) Return(frame *Frame) error {
	return nil
}

func (driver *PatternDriver) Close() error {
	driver.lock.Lock()
	defer driver.lock.Unlock()
	driver.closed = true
	return nil
}

func (driver *PatternDriver) Status() SensorStatus {
	driver.lock.Lock()
	defer driver.lock.Unlock()
	return driver.status
}

// render draws a horizontal gradient with a bar that moves one step per frame.
func (driver *PatternDriver) render(sequence int, status SensorStatus) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, driver.width, driver.height))
	step := driver.width / 32
	if step < 1 {
		step = 1
	}
	bar := (sequence * step) % driver.width
	if status.HMirror {
		bar = driver.width - 1 - bar
	}
	offset := status.Brightness * 16
	for y := 0; y < driver.height; y++ {
		row := y
		if status.VFlip {
			row = driver.height - 1 - y
		}
		for x := 0; x < driver.width; x++ {
			if x >= bar && x < bar+step {
				img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
				continue
			}
			r := clamp8(x*255/driver.width + offset)
			g := clamp8(row*255/driver.height + offset)
			b := clamp8(128 + offset)
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img
}

func (driver *PatternDriver) pack(img *image.RGBA, status SensorStatus) ([]byte, error) {
	switch driver.format {
	case FormatJPEG:
		var buffer bytes.Buffer
		err := jpeg.Encode(&buffer, img, &jpeg.Options{Quality: JPEGQuality(status.Quality)})
		if err != nil {
			return nil, err
		}
		return buffer.Bytes(), nil
	case FormatYUYV:
		data := make([]byte, 0, driver.width*driver.height*2)
		for y := 0; y < driver.height; y++ {
			for x := 0; x < driver.width; x += 2 {
				p0 := img.RGBAAt(x, y)
				p1 := img.RGBAAt(x+1, y)
				y0, u0, v0 := color.RGBToYCbCr(p0.R, p0.G, p0.B)
				y1, u1, v1 := color.RGBToYCbCr(p1.R, p1.G, p1.B)
				u := uint8((int(u0) + int(u1)) / 2)
				v := uint8((int(v0) + int(v1)) / 2)
				data = append(data, y0, u, y1, v)
			}
		}
		return data, nil
	case FormatRGB565:
		data := make([]byte, 0, driver.width*driver.height*2)
		for y := 0; y < driver.height; y++ {
			for x := 0; x < driver.width; x++ {
				p := img.RGBAAt(x, y)
				value := uint16(p.R>>3)<<11 | uint16(p.G>>2)<<5 | uint16(p.B>>3)
				data = append(data, byte(value), byte(value>>8))
			}
		}
		return data, nil
	case FormatRGB888:
		data := make([]byte, 0, driver.width*driver.height*3)
		for y := 0; y < driver.height; y++ {
			for x := 0; x < driver.width; x++ {
				p := img.RGBAAt(x, y)
				data = append(data, p.R, p.G, p.B)
			}
		}
		return data, nil
	case FormatGrayscale:
		data := make([]byte, 0, driver.width*driver.height)
		for y := 0; y < driver.height; y++ {
			for x := 0; x < driver.width; x++ {
				p := img.RGBAAt(x, y)
				data = append(data, color.GrayModel.Convert(p).(color.Gray).Y)
			}
		}
		return data, nil
	}
	return nil, errors.Errorf("unsupported format %v", driver.format)
}

func clamp8(value int) uint8 {
	if value < 0 {
		return 0
	}
	if value > 255 {
		return 255
	}
	return uint8(value)
}
