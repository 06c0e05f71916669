package media

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/vigil-cam/vigil/internal/errors"
	"github.com/vigil-cam/vigil/internal/privacy"
)

// probeTimeout bounds ffprobe, which can hang on unreachable streams.
const probeTimeout = 15 * time.Second

// StreamInfo describes the first video stream of an input.
type StreamInfo struct {
	Width  int
	Height int
	FPS    float64 // zero when the rate could not be determined
	Codec  string
}

// Prober runs ffprobe.
type Prober struct {
	FfprobePath   string
	RTSPTransport string
}

// Probe reads the geometry and frame rate of the first video stream.
func (p *Prober) Probe(ctx context.Context, input string) (StreamInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.FfprobePath, buildProbeArgs(input, p.RTSPTransport)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return StreamInfo{}, errors.New(err).
			Component("media").
			Category(errors.CategoryMedia).
			Context("operation", "ffprobe").
			Context("input", privacy.SanitizeStreamURL(input)).
			Context("stderr", privacy.ScrubMessage(strings.TrimSpace(stderr.String()))).
			Build()
	}

	info, err := parseProbeOutput(output)
	if err != nil {
		return StreamInfo{}, errors.New(err).
			Component("media").
			Category(errors.CategoryMedia).
			Context("operation", "parse_ffprobe_output").
			Context("input", privacy.SanitizeStreamURL(input)).
			Build()
	}
	return info, nil
}

func buildProbeArgs(input, rtspTransport string) []string {
	args := []string{"-v", "error"}
	if IsRTSP(input) && rtspTransport != "" {
		args = append(args, "-rtsp_transport", rtspTransport)
	}
	return append(args,
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,codec_name,r_frame_rate,avg_frame_rate",
		"-of", "json",
		input,
	)
}

func parseProbeOutput(output []byte) (StreamInfo, error) {
	var raw struct {
		Streams []struct {
			Width        int    `json:"width"`
			Height       int    `json:"height"`
			CodecName    string `json:"codec_name"`
			RFrameRate   string `json:"r_frame_rate"`
			AvgFrameRate string `json:"avg_frame_rate"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(output, &raw); err != nil {
		return StreamInfo{}, err
	}

	for _, s := range raw.Streams {
		if s.Width == 0 || s.Height == 0 {
			continue
		}
		fps := parseFrameRate(s.AvgFrameRate)
		if fps == 0 {
			fps = parseFrameRate(s.RFrameRate)
		}
		return StreamInfo{Width: s.Width, Height: s.Height, FPS: fps, Codec: s.CodecName}, nil
	}
	return StreamInfo{}, errors.NewStd("no video stream found")
}

// parseFrameRate parses ffprobe rates such as "30000/1001" or "25".
func parseFrameRate(s string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil || n <= 0 {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d <= 0 {
		return 0
	}
	return n / d
}
