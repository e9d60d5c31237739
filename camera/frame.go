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
	"fmt"
	"time"
)

// PixelFormat is the memory layout of a captured frame.
type PixelFormat int

const (
	// FormatJPEG is a complete, compressed JPEG image.
	FormatJPEG PixelFormat = iota
	// FormatYUYV is packed YUV 4:2:2 (Y0 U Y1 V per two pixels).
	FormatYUYV
	// FormatRGB565 is 16 bit little-endian RGB.
	FormatRGB565
	// FormatRGB888 is 24 bit RGB.
	FormatRGB888
	// FormatGrayscale is 8 bit luminance.
	FormatGrayscale
)

var formatNames = map[PixelFormat]string{
	FormatJPEG:      "jpeg",
	FormatYUYV:      "yuyv",
	FormatRGB565:    "rgb565",
	FormatRGB888:    "rgb888",
	FormatGrayscale: "grayscale",
}

func (format PixelFormat) String() string {
	if name, ok := formatNames[format]; ok {
		return name
	}
	return fmt.Sprintf("PixelFormat(%d)", int(format))
}

// BytesPerPixel returns the storage size of one pixel for raw formats.
// JPEG and unknown formats return 0.
func (format PixelFormat) BytesPerPixel() int {
	switch format {
	case FormatYUYV, FormatRGB565:
		return 2
	case FormatRGB888:
		return 3
	case FormatGrayscale:
		return 1
	default:
		return 0
	}
}

// ParsePixelFormat maps a configuration name onto a pixel format.
func ParsePixelFormat(name string) (PixelFormat, error) {
	for format, fname := range formatNames {
		if fname == name {
			return format, nil
		}
	}
	return FormatJPEG, fmt.Errorf("camstream: unknown pixel format %q", name)
}

// Frame is one capture result handed out by a Source.
//
// Data is only valid until the frame is released back to its Source.
type Frame struct {
	Data      []byte
	Format    PixelFormat
	Width     int
	Height    int
	Timestamp time.Time
	// driver-specific buffer index
	slot uint32
}

// SensorStatus is the sensor configuration reported on the status page.
type SensorStatus struct {
	FrameSize  int  `json:"framesize"`
	Quality    int  `json:"quality"`
	Brightness int  `json:"brightness"`
	Contrast   int  `json:"contrast"`
	Saturation int  `json:"saturation"`
	HMirror    bool `json:"hmirror"`
	VFlip      bool `json:"vflip"`
}

// Frame size identifiers of the common OV2640 resolutions, as reported in
// SensorStatus.FrameSize.
var frameSizes = []struct {
	id            int
	width, height int
}{
	{0, 96, 96},
	{1, 160, 120},
	{2, 176, 144},
	{3, 240, 176},
	{4, 240, 240},
	{5, 320, 240},
	{6, 400, 296},
	{7, 480, 320},
	{8, 640, 480},
	{9, 800, 600},
	{10, 1024, 768},
	{11, 1280, 720},
	{12, 1280, 1024},
	{13, 1600, 1200},
}

// FrameSizeID returns the frame size identifier for a resolution,
// or -1 if it is not a standard one.
func FrameSizeID(width, height int) int {
	for _, size := range frameSizes {
		if size.width == width && size.height == height {
			return size.id
		}
	}
	return -1
}

// JPEGQuality converts a sensor quality setting (0..63, lower is better)
// into the 1..100 scale used by image/jpeg.
func JPEGQuality(sensor int) int {
	if sensor < 0 {
		sensor = 0
	}
	if sensor > 63 {
		sensor = 63
	}
	quality := 100 - sensor*100/64
	if quality < 1 {
		quality = 1
	}
	return quality
}
