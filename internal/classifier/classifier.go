// Package classifier is an HTTP client for a YOLO-style inference service.
//
// The service accepts a multipart JPEG upload on POST /detect and answers
// with JSON detections; GET /health reports whether the model is loaded.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/vigil-cam/vigil/internal/detection"
	"github.com/vigil-cam/vigil/internal/errors"
	"github.com/vigil-cam/vigil/internal/httpclient"
	"github.com/vigil-cam/vigil/internal/logging"
	"github.com/vigil-cam/vigil/internal/privacy"
)

const (
	detectPath = "/detect"
	healthPath = "/health"
	healthKey  = "health"

	// DefaultTimeout bounds one inference request.
	DefaultTimeout = 5 * time.Second
	// DefaultHealthTTL is how long a health probe result is trusted.
	DefaultHealthTTL = 30 * time.Second
	// unhealthyTTL is shorter so a recovered service is picked up quickly.
	unhealthyTTL = 5 * time.Second

	defaultJPEGQuality = 85
	maxErrorBody       = 512
)

// ErrServiceUnavailable is returned while the inference service reports unhealthy.
var ErrServiceUnavailable = errors.NewStd("inference service unavailable")

// Config configures the client.
type Config struct {
	URL           string
	Timeout       time.Duration
	HealthTTL     time.Duration
	JPEGQuality   int
	MinConfidence float64
	Classes       []string // class names indexed by class id
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string `json:"status"`
	Device       string `json:"device"`
	GPUAvailable bool   `json:"gpu_available"`
	ModelLoaded  bool   `json:"model_loaded"`
}

// wireDetection is one detection as reported by the service.
type wireDetection struct {
	Class      string    `json:"class"`
	ClassID    *int      `json:"class_id"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"`
}

type detectResponse struct {
	Detections      []wireDetection `json:"detections"`
	InferenceTimeMs float64         `json:"inference_time_ms"`
}

// Client classifies frames through the inference service. It implements
// detection.Classifier and is safe for concurrent use.
type Client struct {
	baseURL  string
	http     *httpclient.Client
	timeout  time.Duration
	quality  int
	minConf  float64
	labels   *detection.LabelMapper
	health   *cache.Cache
	logger   *slog.Logger
	healthOK time.Duration
}

// New creates a client. httpClient is shared with other integrations.
func New(cfg Config, httpClient *httpclient.Client) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Newf("invalid classifier url").
			Component("classifier").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if httpClient == nil {
		httpClient = httpclient.New(nil)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HealthTTL <= 0 {
		cfg.HealthTTL = DefaultHealthTTL
	}
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = defaultJPEGQuality
	}
	if len(cfg.Classes) == 0 {
		cfg.Classes = []string{"NON_VIOLENCE", "VIOLENCE"}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    httpClient,
		timeout: cfg.Timeout,
		quality: cfg.JPEGQuality,
		minConf: cfg.MinConfidence,
		labels:  detection.NewLabelMapper(cfg.Classes),
		// No janitor: entries expire on read and a single key never grows
		health:   cache.New(cfg.HealthTTL, 0),
		logger:   getLogger().With("endpoint", privacy.SanitizeStreamURL(cfg.URL)),
		healthOK: cfg.HealthTTL,
	}, nil
}

// Classify uploads frame as JPEG and returns the detections above the
// confidence floor.
func (c *Client) Classify(ctx context.Context, frame detection.Frame) ([]detection.Detection, error) {
	if !c.Healthy(ctx) {
		return nil, errors.New(ErrServiceUnavailable).
			Component("classifier").
			Category(errors.CategoryClassification).
			Context("frame", frame.Index).
			Build()
	}

	body, contentType, err := c.encodeFrame(frame)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.http.Post(ctx, c.baseURL+detectPath, contentType, body)
	if err != nil {
		// Force a fresh probe before the next frame
		c.health.Delete(healthKey)
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryClassification).
			NetworkContext(c.baseURL+detectPath, c.timeout).
			Context("frame", frame.Index).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, errors.Newf("inference request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))).
			Component("classifier").
			Category(errors.CategoryClassification).
			Context("status_code", resp.StatusCode).
			Context("frame", frame.Index).
			Build()
	}

	var result detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryClassification).
			Context("operation", "decode_detections").
			Context("frame", frame.Index).
			Build()
	}

	detections := c.convert(result.Detections)
	c.logger.Log(ctx, logging.LevelTrace, "frame classified",
		"frame", frame.Index,
		"detections", len(detections),
		"inference_ms", result.InferenceTimeMs,
		"round_trip", time.Since(start))
	return detections, nil
}

func (c *Client) encodeFrame(frame detection.Frame) (*bytes.Buffer, string, error) {
	if frame.Image == nil {
		return nil, "", errors.Newf("frame %d has no image data", frame.Index).
			Component("classifier").
			Category(errors.CategoryValidation).
			Build()
	}

	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("file", fmt.Sprintf("frame_%d.jpg", frame.Index))
	if err == nil {
		err = jpeg.Encode(fw, frame.Image, &jpeg.Options{Quality: c.quality})
	}
	if err == nil && c.minConf > 0 {
		err = w.WriteField("conf_threshold", strconv.FormatFloat(c.minConf, 'f', 3, 64))
	}
	if err == nil {
		err = w.Close()
	}
	if err != nil {
		return nil, "", errors.New(err).
			Component("classifier").
			Category(errors.CategoryClassification).
			Context("operation", "encode_frame").
			Context("frame", frame.Index).
			Build()
	}
	return &b, w.FormDataContentType(), nil
}

func (c *Client) convert(wire []wireDetection) []detection.Detection {
	out := make([]detection.Detection, 0, len(wire))
	for _, d := range wire {
		if d.Confidence < c.minConf {
			continue
		}
		var label string
		switch {
		case d.Class != "":
			label = c.labels.Resolve(d.Class)
		case d.ClassID != nil:
			label = c.labels.Resolve(strconv.Itoa(*d.ClassID))
		default:
			continue
		}
		det := detection.Detection{Label: label, Confidence: d.Confidence}
		copy(det.BBox[:], d.BBox)
		out = append(out, det)
	}
	return out
}

// Healthy reports whether the service has its model loaded. The result is
// cached so the probe does not run for every frame.
func (c *Client) Healthy(ctx context.Context) bool {
	if v, found := c.health.Get(healthKey); found {
		return v.(bool)
	}

	health, err := c.Health(ctx)
	ok := err == nil && health.ModelLoaded
	if ok {
		c.health.Set(healthKey, true, c.healthOK)
	} else {
		c.health.Set(healthKey, false, unhealthyTTL)
		c.logger.Warn("inference service unhealthy", "error", err)
	}
	return ok
}

// Health queries the service health endpoint without caching.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.Get(ctx, c.baseURL+healthPath)
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryNetwork).
			NetworkContext(c.baseURL+healthPath, c.timeout).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("health check returned status %d", resp.StatusCode).
			Component("classifier").
			Category(errors.CategoryHTTP).
			Context("status_code", resp.StatusCode).
			Build()
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryHTTP).
			Context("operation", "decode_health").
			Build()
	}
	return &health, nil
}
