package media

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/vigil-cam/vigil/internal/detection"
	"github.com/vigil-cam/vigil/internal/errors"
	"github.com/vigil-cam/vigil/internal/privacy"
)

// SourceConfig configures a FrameSource.
type SourceConfig struct {
	FfmpegPath    string
	Input         string // file path or stream URL
	Info          StreamInfo
	RTSPTransport string
}

// FrameSource decodes an input into frames with an ffmpeg child process.
type FrameSource struct {
	cfg    SourceConfig
	cmd    *exec.Cmd
	stdout io.ReadCloser
	reader *bufio.Reader
	stderr *bytes.Buffer
	cancel context.CancelFunc

	frameSize int
	index     int
	done      bool
	closeOnce sync.Once
	waitErr   error
}

// OpenSource starts decoding. Info must carry the stream geometry, usually
// from Prober.Probe.
func OpenSource(ctx context.Context, cfg SourceConfig) (*FrameSource, error) {
	if cfg.Info.Width <= 0 || cfg.Info.Height <= 0 {
		return nil, errors.Newf("unknown frame size %dx%d", cfg.Info.Width, cfg.Info.Height).
			Component("media").
			Category(errors.CategoryValidation).
			Context("input", privacy.SanitizeStreamURL(cfg.Input)).
			Build()
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, cfg.FfmpegPath, buildSourceArgs(cfg.Input, cfg.RTSPTransport)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, errors.New(err).
			Component("media").
			Category(errors.CategorySystem).
			Context("operation", "create_ffmpeg_stdout").
			Build()
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, errors.New(err).
			Component("media").
			Category(errors.CategoryMedia).
			Context("operation", "start_ffmpeg_decoder").
			Context("input", privacy.SanitizeStreamURL(cfg.Input)).
			Build()
	}

	frameSize := cfg.Info.Width * cfg.Info.Height * bytesPerPixel
	getLogger().Debug("frame source started",
		"input", privacy.SanitizeStreamURL(cfg.Input),
		"width", cfg.Info.Width,
		"height", cfg.Info.Height,
		"fps", cfg.Info.FPS)

	return &FrameSource{
		cfg:       cfg,
		cmd:       cmd,
		stdout:    stdout,
		reader:    bufio.NewReaderSize(stdout, frameSize),
		stderr:    &stderr,
		cancel:    cancel,
		frameSize: frameSize,
	}, nil
}

func buildSourceArgs(input, rtspTransport string) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if IsRTSP(input) && rtspTransport != "" {
		args = append(args, "-rtsp_transport", rtspTransport)
	}
	return append(args,
		"-i", input,
		"-an", "-sn",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	)
}

// Next returns the next frame, or io.EOF once the input is exhausted.
func (s *FrameSource) Next() (detection.Frame, error) {
	if s.done {
		return detection.Frame{}, io.EOF
	}

	buf := make([]byte, s.frameSize)
	if _, err := io.ReadFull(s.reader, buf); err != nil {
		s.done = true
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			if waitErr := s.wait(); waitErr != nil {
				return detection.Frame{}, waitErr
			}
			return detection.Frame{}, io.EOF
		}
		return detection.Frame{}, errors.New(err).
			Component("media").
			Category(errors.CategoryMedia).
			Context("operation", "read_frame").
			Build()
	}

	s.index++
	frame := detection.Frame{
		Index: s.index,
		Image: rgbToImage(buf, s.cfg.Info.Width, s.cfg.Info.Height),
	}
	if s.cfg.Info.FPS > 0 {
		frame.Timestamp = time.Duration(float64(s.index-1) / s.cfg.Info.FPS * float64(time.Second))
	}
	return frame, nil
}

// FramesRead returns the number of frames returned so far.
func (s *FrameSource) FramesRead() int {
	return s.index
}

func (s *FrameSource) wait() error {
	s.closeOnce.Do(func() {
		err := s.cmd.Wait()
		s.cancel()
		if err != nil {
			s.waitErr = errors.New(err).
				Component("media").
				Category(errors.CategoryMedia).
				Context("operation", "ffmpeg_decode_failed").
				Context("input", privacy.SanitizeStreamURL(s.cfg.Input)).
				Context("stderr", privacy.ScrubMessage(strings.TrimSpace(s.stderr.String()))).
				Build()
		}
	})
	return s.waitErr
}

// Close stops the decoder. It is safe to call after Next returned io.EOF.
func (s *FrameSource) Close() error {
	if !s.done {
		s.done = true
		s.cancel()
		_ = s.stdout.Close()
		s.closeOnce.Do(func() {
			// Killed on purpose, the exit status carries no information
			_ = s.cmd.Wait()
		})
		return nil
	}
	s.cancel()
	return s.wait()
}
