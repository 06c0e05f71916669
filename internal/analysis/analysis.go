// Package analysis runs detection over the inputs given on the command line:
// video files and camera streams are decoded with ffmpeg and processed
// concurrently, still images are classified once.
package analysis

import (
	"context"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/vigil-cam/vigil/internal/analysis/processor"
	"github.com/vigil-cam/vigil/internal/conf"
	"github.com/vigil-cam/vigil/internal/detection"
	"github.com/vigil-cam/vigil/internal/errors"
	"github.com/vigil-cam/vigil/internal/evidence"
	"github.com/vigil-cam/vigil/internal/media"
	"github.com/vigil-cam/vigil/internal/observability/metrics"
	"github.com/vigil-cam/vigil/internal/privacy"
)

// StreamProber reads the geometry of an input.
type StreamProber interface {
	Probe(ctx context.Context, input string) (media.StreamInfo, error)
}

// Source is a frame source that must be closed.
type Source interface {
	processor.FrameSource
	Close() error
}

// Deps are the collaborators shared by all inputs.
type Deps struct {
	Classifier detection.Classifier
	Dispatcher processor.Dispatcher
	Enricher   processor.ContextProvider
	Metrics    *metrics.PipelineMetrics

	// Optional, the ffmpeg backed implementations are used when nil
	Prober     StreamProber
	OpenSource func(ctx context.Context, cfg media.SourceConfig) (Source, error)
	Clips      evidence.ClipOpener
}

// Runner analyzes inputs with one processor per input.
type Runner struct {
	settings   *conf.Settings
	deps       Deps
	ffmpegPath string
}

// NewRunner resolves the ffmpeg tools and prepares a runner.
func NewRunner(settings *conf.Settings, deps Deps) (*Runner, error) {
	ffmpegPath, err := conf.ValidateToolPath(settings.Media.FfmpegPath, conf.GetFfmpegBinaryName())
	if err != nil && (deps.OpenSource == nil || deps.Clips == nil) {
		return nil, errors.New(err).
			Component("analysis").
			Category(errors.CategoryConfiguration).
			Context("tool", "ffmpeg").
			Build()
	}

	if deps.Prober == nil {
		ffprobePath, err := conf.ValidateToolPath(settings.Media.FfprobePath, conf.GetFfprobeBinaryName())
		if err != nil {
			return nil, errors.New(err).
				Component("analysis").
				Category(errors.CategoryConfiguration).
				Context("tool", "ffprobe").
				Build()
		}
		deps.Prober = &media.Prober{FfprobePath: ffprobePath, RTSPTransport: settings.Media.RTSPTransport}
	}
	if deps.OpenSource == nil {
		deps.OpenSource = func(ctx context.Context, cfg media.SourceConfig) (Source, error) {
			src, err := media.OpenSource(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return src, nil
		}
	}
	if deps.Clips == nil {
		deps.Clips = &media.ClipEncoder{FfmpegPath: ffmpegPath, Codec: settings.Media.VideoCodec}
	}

	return &Runner{settings: settings, deps: deps, ffmpegPath: ffmpegPath}, nil
}

// Run processes every input concurrently and waits for all of them. One
// failing input does not stop the others; the first error is returned.
func (r *Runner) Run(ctx context.Context, inputs []string) error {
	var g errgroup.Group
	for _, input := range inputs {
		g.Go(func() error {
			err := r.analyze(ctx, input)
			if err != nil && ctx.Err() == nil {
				getLogger().Error("input analysis failed",
					"source", sourceName(input),
					"error", err)
			}
			return err
		})
	}
	return g.Wait()
}

func (r *Runner) analyze(ctx context.Context, input string) error {
	if media.IsImageFile(input) {
		return r.analyzeImage(ctx, input)
	}

	source := sourceName(input)
	info, err := r.deps.Prober.Probe(ctx, input)
	if err != nil {
		return err
	}
	fps := info.FPS
	if fps <= 0 {
		fps = r.settings.Media.DefaultFPS
		getLogger().Warn("frame rate unknown, using default", "source", source, "fps", fps)
	}

	src, err := r.deps.OpenSource(ctx, media.SourceConfig{
		FfmpegPath:    r.ffmpegPath,
		Input:         input,
		Info:          info,
		RTSPTransport: r.settings.Media.RTSPTransport,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			getLogger().Debug("frame source closed with error", "source", source, "error", err)
		}
	}()

	getLogger().Info("analyzing input",
		"source", source,
		"width", info.Width,
		"height", info.Height,
		"fps", fps,
		"codec", info.Codec)

	proc := r.newProcessor(ctx, source, evidence.ClipSpec{Width: info.Width, Height: info.Height, FPS: fps})
	stats, err := proc.Run(ctx, src)
	getLogger().Info("input analysis complete",
		"source", source,
		"frames", stats.Frames,
		"positive", stats.Positive,
		"confirmed", stats.Confirmed,
		"alerts", stats.Alerts)
	return err
}

func (r *Runner) analyzeImage(ctx context.Context, path string) error {
	source := sourceName(path)
	img, err := media.LoadImage(path)
	if err != nil {
		return err
	}

	proc := r.newProcessor(ctx, source, evidence.ClipSpec{})
	positive, err := proc.ClassifyImage(ctx, detection.Frame{Index: 1, Image: img})
	if err != nil {
		return err
	}
	getLogger().Info("image analyzed", "source", source, "violence", positive)
	return nil
}

func (r *Runner) newProcessor(ctx context.Context, source string, clip evidence.ClipSpec) *processor.Processor {
	s := r.settings
	return processor.New(ctx, processor.Config{
		Source:           source,
		ConfirmThreshold: s.Detection.ConfirmThreshold,
		Label:            s.Detection.Label,
		Metrics:          r.deps.Metrics,
		Evidence: evidence.Config{
			Root:          s.Evidence.Path,
			KeyFrameCap:   s.Detection.KeyFrames,
			MaxClipFrames: s.Evidence.MaxClipFrames,
			JPEGQuality:   s.Evidence.JPEGQuality,
			Clip:          clip,
		},
	}, r.deps.Classifier, r.deps.Clips, r.deps.Dispatcher, r.deps.Enricher)
}

// sourceName is the display name of an input: credential free for streams,
// the file name for local files.
func sourceName(input string) string {
	if media.IsStreamURL(input) {
		return privacy.SanitizeStreamURL(input)
	}
	return filepath.Base(input)
}
