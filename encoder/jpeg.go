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

// Package encoder compresses raw camera frames into JPEG images.
package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	"github.com/onitake/camstream/camera"
	"github.com/onitake/camstream/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// FallbackQuality is the JPEG quality used for frames that were not
	// compressed by the sensor.
	FallbackQuality = 80
)

var (
	// ErrUnsupportedFormat is returned for pixel formats that cannot be encoded.
	ErrUnsupportedFormat = errors.New("camstream: unsupported pixel format")
	// ErrInvalidFrame is returned when the frame geometry does not match its data.
	ErrInvalidFrame = errors.New("camstream: invalid frame geometry")
	// ErrEncodeFailed is returned when the raw frame could not be converted.
	ErrEncodeFailed = errors.New("camstream: frame encoding failed")
)

var (
	metricFramesEncoded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "camstream_frames_encoded",
			Help: "Number of raw frames converted to JPEG.",
		},
	)
	metricEncodeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "camstream_encode_failures",
			Help: "Number of raw frames that could not be converted to JPEG.",
		},
	)
)

func init() {
	metrics.MustRegister(metricFramesEncoded)
	metrics.MustRegister(metricEncodeFailures)
}

// Image wraps a raw frame into an image.Image without copying where possible.
func Image(frame *camera.Frame) (image.Image, error) {
	if frame == nil || frame.Width <= 0 || frame.Height <= 0 {
		return nil, ErrInvalidFrame
	}
	bpp := frame.Format.BytesPerPixel()
	if bpp == 0 {
		return nil, ErrUnsupportedFormat
	}
	if len(frame.Data) != frame.Width*frame.Height*bpp {
		return nil, ErrInvalidFrame
	}
	rect := image.Rect(0, 0, frame.Width, frame.Height)

	switch frame.Format {
	case camera.FormatGrayscale:
		return &image.Gray{
			Pix:    frame.Data,
			Stride: frame.Width,
			Rect:   rect,
		}, nil
	case camera.FormatYUYV:
		if frame.Width%2 != 0 {
			return nil, ErrInvalidFrame
		}
		img := image.NewYCbCr(rect, image.YCbCrSubsampleRatio422)
		for y := 0; y < frame.Height; y++ {
			row := frame.Data[y*frame.Width*2 : (y+1)*frame.Width*2]
			yoff := y * img.YStride
			coff := y * img.CStride
			for x := 0; x < frame.Width; x += 2 {
				p := row[x*2 : x*2+4]
				img.Y[yoff+x] = p[0]
				img.Y[yoff+x+1] = p[2]
				img.Cb[coff+x/2] = p[1]
				img.Cr[coff+x/2] = p[3]
			}
		}
		return img, nil
	case camera.FormatRGB565:
		img := image.NewRGBA(rect)
		for i := 0; i < frame.Width*frame.Height; i++ {
			value := uint16(frame.Data[i*2]) | uint16(frame.Data[i*2+1])<<8
			r := uint8(value>>11) & 0x1f
			g := uint8(value>>5) & 0x3f
			b := uint8(value) & 0x1f
			img.Pix[i*4] = r<<3 | r>>2
			img.Pix[i*4+1] = g<<2 | g>>4
			img.Pix[i*4+2] = b<<3 | b>>2
			img.Pix[i*4+3] = 0xff
		}
		return img, nil
	case camera.FormatRGB888:
		img := image.NewRGBA(rect)
		for i := 0; i < frame.Width*frame.Height; i++ {
			copy(img.Pix[i*4:i*4+3], frame.Data[i*3:i*3+3])
			img.Pix[i*4+3] = 0xff
		}
		return img, nil
	}
	return nil, ErrUnsupportedFormat
}

// EncodeTo writes a raw frame to writer as a JPEG image.
// quality is on the 1..100 scale of image/jpeg.
func EncodeTo(writer io.Writer, frame *camera.Frame, quality int) error {
	img, err := Image(frame)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(writer, img, &jpeg.Options{Quality: quality}); err != nil {
		return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	return nil
}

// Encode converts a raw frame into a JPEG image.
// The result is owned by the caller, unlike the pooled output of Fallback.
func Encode(frame *camera.Frame, quality int) ([]byte, error) {
	var buffer bytes.Buffer
	if err := EncodeTo(&buffer, frame, quality); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// Fallback makes sure a frame is delivered as JPEG.
//
// JPEG frames are passed through as a pool buffer. Raw frames are encoded into
// a heap buffer, and the raw frame is released to source right away, whether
// encoding succeeded or not. The caller owns the returned buffer.
func Fallback(source camera.Source, frame *camera.Frame, quality int) (*camera.Buffer, error) {
	if frame.Format == camera.FormatJPEG {
		return camera.NewPoolBuffer(source, frame), nil
	}

	heap := camera.AllocHeap()
	err := EncodeTo(heap, frame, quality)
	format := frame.Format
	source.Release(frame)

	if err != nil {
		camera.NewHeapBuffer(heap).Release()
		metricEncodeFailures.Inc()
		code := errorEncoderEncode
		if errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, ErrInvalidFrame) {
			code = errorEncoderFormat
		}
		logger.Logkv(
			"event", eventEncoderError,
			"error", code,
			"format", format.String(),
			"message", err.Error(),
		)
		return nil, err
	}
	metricFramesEncoded.Inc()
	return camera.NewHeapBuffer(heap), nil
}

// Capture acquires one frame from source and returns it as JPEG.
func Capture(ctx context.Context, source camera.Source, quality int) (*camera.Buffer, error) {
	frame, err := source.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return Fallback(source, frame, quality)
}
