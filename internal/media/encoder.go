package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/vigil-cam/vigil/internal/errors"
	"github.com/vigil-cam/vigil/internal/evidence"
)

// DefaultVideoCodec is used when no codec is configured.
const DefaultVideoCodec = "libx264"

// ClipEncoder opens ffmpeg-backed clip writers. It implements
// evidence.ClipOpener.
type ClipEncoder struct {
	FfmpegPath string
	Codec      string
}

// OpenClip starts an ffmpeg encoder writing to a temporary file next to
// path. The file is renamed to path when the clip is closed. The encoder
// process is bound to the writer, not to ctx: only Discard kills it.
func (e *ClipEncoder) OpenClip(ctx context.Context, path string, layout evidence.ClipSpec) (evidence.ClipWriter, error) {
	if err := layout.Validate(); err != nil {
		return nil, errors.New(err).
			Component("media").
			Category(errors.CategoryValidation).
			Context("operation", "open_clip").
			Build()
	}

	codec := e.Codec
	if codec == "" {
		codec = DefaultVideoCodec
	}

	tempPath := path + ".tmp"
	procCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cmd := exec.CommandContext(procCtx, e.FfmpegPath, buildClipArgs(layout, codec, tempPath)...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, errors.New(err).
			Component("media").
			Category(errors.CategorySystem).
			Context("operation", "create_ffmpeg_stdin").
			Build()
	}

	stderr := &lockedBuffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, errors.New(err).
			Component("media").
			Category(errors.CategoryMedia).
			Context("operation", "start_ffmpeg_encoder").
			Build()
	}

	return &ffmpegClip{
		cmd:      cmd,
		stdin:    stdin,
		stderr:   stderr,
		cancel:   cancel,
		path:     path,
		tempPath: tempPath,
		layout:   layout,
	}, nil
}

func buildClipArgs(layout evidence.ClipSpec, codec, output string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", layout.Width, layout.Height),
		"-r", strconv.FormatFloat(layout.FPS, 'f', -1, 64),
		"-i", "pipe:0",
		"-an",
		// yuv420p needs even dimensions
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-c:v", codec,
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-f", "mp4",
		output,
	}
}

// lockedBuffer collects process stderr. exec copies into it from its own
// goroutine while the encoder may still be running.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// ffmpegClip streams rgb24 frames into an ffmpeg encoder.
type ffmpegClip struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stderr   *lockedBuffer
	cancel   context.CancelFunc
	path     string
	tempPath string
	layout   evidence.ClipSpec
	buf      []byte
	frames   int
	finished bool
}

func (c *ffmpegClip) WriteFrame(img image.Image) error {
	if c.finished {
		return errors.Newf("clip already closed").
			Component("media").
			Category(errors.CategoryState).
			Build()
	}
	if img == nil {
		return errors.Newf("no image data").
			Component("media").
			Category(errors.CategoryValidation).
			Build()
	}

	buf, err := imageToRGB(c.buf, img, c.layout.Width, c.layout.Height)
	if err != nil {
		return err
	}
	c.buf = buf

	if _, err := c.stdin.Write(buf); err != nil {
		return errors.New(err).
			Component("media").
			Category(errors.CategoryMedia).
			Context("operation", "write_frame_to_ffmpeg").
			Context("stderr", strings.TrimSpace(c.stderr.String())).
			Build()
	}
	c.frames++
	return nil
}

func (c *ffmpegClip) Close() error {
	if c.finished {
		return nil
	}
	c.finished = true
	defer c.cancel()

	_ = c.stdin.Close()
	if err := c.cmd.Wait(); err != nil {
		_ = os.Remove(c.tempPath)
		return errors.New(err).
			Component("media").
			Category(errors.CategoryMedia).
			Context("operation", "ffmpeg_encode_failed").
			Context("frames", c.frames).
			Context("stderr", strings.TrimSpace(c.stderr.String())).
			Build()
	}

	if err := os.Rename(c.tempPath, c.path); err != nil {
		_ = os.Remove(c.tempPath)
		return errors.New(err).
			Component("media").
			Category(errors.CategoryFileIO).
			Context("operation", "rename_clip_file").
			Build()
	}

	getLogger().Debug("clip finalized", "path", c.path, "frames", c.frames)
	return nil
}

func (c *ffmpegClip) Discard() error {
	if c.finished {
		return nil
	}
	c.finished = true

	c.cancel()
	_ = c.stdin.Close()
	// Killed on purpose, the exit status carries no information
	_ = c.cmd.Wait()

	if err := os.Remove(c.tempPath); err != nil && !os.IsNotExist(err) {
		return errors.New(err).
			Component("media").
			Category(errors.CategoryFileIO).
			Context("operation", "remove_partial_clip").
			Build()
	}
	return nil
}
