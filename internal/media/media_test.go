package media

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-cam/vigil/internal/errors"
	"github.com/vigil-cam/vigil/internal/evidence"
)

func TestInputKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		stream bool
		rtsp   bool
		image  bool
	}{
		{"rtsp://cam.local:554/stream1", true, true, false},
		{"RTSPS://cam.local/live", true, true, false},
		{"https://example.com/feed.m3u8", true, false, false},
		{"/videos/clip.mp4", false, false, false},
		{"photo.JPG", false, false, true},
		{"frame.png", false, false, true},
		{"https://example.com/photo.jpg", true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.stream, IsStreamURL(tt.input))
			assert.Equal(t, tt.rtsp, IsRTSP(tt.input))
			assert.Equal(t, tt.image, IsImageFile(tt.input))
		})
	}
}

func TestParseFrameRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want float64
	}{
		{"25/1", 25},
		{"30000/1001", 30000.0 / 1001.0},
		{"15", 15},
		{"0/0", 0},
		{"25/0", 0},
		{"", 0},
		{"abc", 0},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, parseFrameRate(tt.in), 1e-9, tt.in)
	}
}

func TestParseProbeOutput(t *testing.T) {
	t.Parallel()

	t.Run("prefers average rate", func(t *testing.T) {
		t.Parallel()
		out := []byte(`{"streams":[{"width":1280,"height":720,"codec_name":"h264","r_frame_rate":"30/1","avg_frame_rate":"25/1"}]}`)
		info, err := parseProbeOutput(out)
		require.NoError(t, err)
		assert.Equal(t, StreamInfo{Width: 1280, Height: 720, FPS: 25, Codec: "h264"}, info)
	})

	t.Run("falls back to real rate", func(t *testing.T) {
		t.Parallel()
		out := []byte(`{"streams":[{"width":640,"height":480,"r_frame_rate":"15/1","avg_frame_rate":"0/0"}]}`)
		info, err := parseProbeOutput(out)
		require.NoError(t, err)
		assert.InDelta(t, 15.0, info.FPS, 1e-9)
	})

	t.Run("no video stream", func(t *testing.T) {
		t.Parallel()
		_, err := parseProbeOutput([]byte(`{"streams":[{"width":0,"height":0}]}`))
		require.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		t.Parallel()
		_, err := parseProbeOutput([]byte(`not json`))
		require.Error(t, err)
	})
}

func TestBuildArgs(t *testing.T) {
	t.Parallel()

	probe := buildProbeArgs("rtsp://cam/stream", "tcp")
	assert.Equal(t, []string{"-v", "error", "-rtsp_transport", "tcp"}, probe[:4])
	assert.Equal(t, "rtsp://cam/stream", probe[len(probe)-1])

	probeFile := buildProbeArgs("clip.mp4", "tcp")
	assert.NotContains(t, probeFile, "-rtsp_transport")

	src := buildSourceArgs("rtsp://cam/stream", "udp")
	assert.Contains(t, src, "-rtsp_transport")
	assert.Equal(t, "pipe:1", src[len(src)-1])
	assert.Contains(t, src, "rgb24")

	clip := buildClipArgs(evidence.ClipSpec{Width: 320, Height: 240, FPS: 12.5}, "libx264", "/tmp/out.mp4.tmp")
	assert.Contains(t, clip, "320x240")
	assert.Contains(t, clip, "12.5")
	assert.Contains(t, clip, "libx264")
	assert.Equal(t, "/tmp/out.mp4.tmp", clip[len(clip)-1])
}

func TestRGBRoundTrip(t *testing.T) {
	t.Parallel()

	src := []byte{255, 0, 0, 0, 255, 0, 0, 0, 255, 10, 20, 30}
	img := rgbToImage(src, 2, 2)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, img.RGBAAt(1, 1))

	out, err := imageToRGB(nil, img, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestImageToRGBSubImageAndGeneric(t *testing.T) {
	t.Parallel()

	base := image.NewRGBA(image.Rect(0, 0, 4, 4))
	base.SetRGBA(2, 2, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	sub := base.SubImage(image.Rect(2, 2, 4, 4))

	out, err := imageToRGB(nil, sub, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, out[:3])

	gray := image.NewGray(image.Rect(0, 0, 1, 1))
	gray.SetGray(0, 0, color.Gray{Y: 128})
	out, err = imageToRGB(out, gray, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{128, 128, 128}, out)
}

func TestImageToRGBSizeMismatch(t *testing.T) {
	t.Parallel()

	_, err := imageToRGB(nil, image.NewRGBA(image.Rect(0, 0, 3, 3)), 2, 2)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestLoadImage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "frame.png")
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	got, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Bounds().Dx())

	_, err = LoadImage(filepath.Join(dir, "missing.png"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))

	bad := filepath.Join(dir, "bad.jpg")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o600))
	_, err = LoadImage(bad)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMedia))
}
