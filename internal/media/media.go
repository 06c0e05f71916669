// Package media decodes video inputs into frames and encodes evidence clips,
// both by piping raw RGB frames through ffmpeg.
package media

import (
	"image"
	_ "image/jpeg" // register decoder for LoadImage
	_ "image/png"  // register decoder for LoadImage
	"os"
	"path/filepath"
	"strings"

	"github.com/vigil-cam/vigil/internal/errors"
)

// bytesPerPixel of the rgb24 pixel format used on every pipe.
const bytesPerPixel = 3

// IsStreamURL reports whether input is a network stream rather than a file.
func IsStreamURL(input string) bool {
	lower := strings.ToLower(input)
	for _, scheme := range []string{"rtsp://", "rtsps://", "rtmp://", "http://", "https://", "udp://", "tcp://"} {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

// IsRTSP reports whether input is an RTSP stream.
func IsRTSP(input string) bool {
	lower := strings.ToLower(input)
	return strings.HasPrefix(lower, "rtsp://") || strings.HasPrefix(lower, "rtsps://")
}

// IsImageFile reports whether path names a still image.
func IsImageFile(path string) bool {
	if IsStreamURL(path) {
		return false
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	default:
		return false
	}
}

// LoadImage decodes a JPEG or PNG file.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("media").
			Category(errors.CategoryFileIO).
			Context("operation", "open_image").
			Build()
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.New(err).
			Component("media").
			Category(errors.CategoryMedia).
			Context("operation", "decode_image").
			Context("extension", strings.ToLower(filepath.Ext(path))).
			Build()
	}
	return img, nil
}

// rgbToImage copies an rgb24 buffer into a new RGBA image.
func rgbToImage(buf []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	pix := img.Pix
	for i, j := 0, 0; i+2 < len(buf) && j+3 < len(pix); i, j = i+3, j+4 {
		pix[j] = buf[i]
		pix[j+1] = buf[i+1]
		pix[j+2] = buf[i+2]
		pix[j+3] = 0xff
	}
	return img
}

// imageToRGB fills dst with the rgb24 representation of img, which must be
// width x height. dst is reused when large enough.
func imageToRGB(dst []byte, img image.Image, width, height int) ([]byte, error) {
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return nil, errors.Newf("frame size %dx%d does not match clip size %dx%d", b.Dx(), b.Dy(), width, height).
			Component("media").
			Category(errors.CategoryValidation).
			Build()
	}

	size := width * height * bytesPerPixel
	if cap(dst) < size {
		dst = make([]byte, size)
	}
	dst = dst[:size]

	if rgba, ok := img.(*image.RGBA); ok {
		for y := range height {
			row := rgba.Pix[(y+b.Min.Y-rgba.Rect.Min.Y)*rgba.Stride+(b.Min.X-rgba.Rect.Min.X)*4:]
			out := dst[y*width*bytesPerPixel:]
			for x := range width {
				out[x*3] = row[x*4]
				out[x*3+1] = row[x*4+1]
				out[x*3+2] = row[x*4+2]
			}
		}
		return dst, nil
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			dst[i] = uint8(r >> 8)
			dst[i+1] = uint8(g >> 8)
			dst[i+2] = uint8(bl >> 8)
			i += 3
		}
	}
	return dst, nil
}
