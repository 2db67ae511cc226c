package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/my591234-max/autolabeling/internal/domain"
	"github.com/my591234-max/autolabeling/pkg/utils"
)

const (
	DefaultHealthTimeout    = 5 * time.Second
	DefaultInferenceTimeout = 60 * time.Second
	maxResponseSize         = 32 << 20
)

type Thresholds struct {
	Confidence float64
	IoU        float64
	Box        float64
	Text       float64
	NMS        float64
}

type ClientConfig struct {
	BaseURL          string
	HealthTimeout    time.Duration
	InferenceTimeout time.Duration
	Thresholds       Thresholds
}

// Request is one inference call for one image.
type Request struct {
	Model       Model
	Prompt      string
	Image       []byte
	ContentType string
	Width       int
	Height      int
}

// Client talks to the external detection service over its HTTP contract.
type Client struct {
	baseURL          string
	http             *http.Client
	healthTimeout    time.Duration
	inferenceTimeout time.Duration
	thresholds       Thresholds
	log              *zap.Logger
}

func NewClient(cfg ClientConfig, log *zap.Logger) *Client {
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = DefaultHealthTimeout
	}
	if cfg.InferenceTimeout <= 0 {
		cfg.InferenceTimeout = DefaultInferenceTimeout
	}
	return &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		http:             &http.Client{},
		healthTimeout:    cfg.HealthTimeout,
		inferenceTimeout: cfg.InferenceTimeout,
		thresholds:       cfg.Thresholds,
		log:              log,
	}
}

// CheckHealth returns nil only for a 200 from GET /health within the health timeout.
func (c *Client) CheckHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return &domain.NetworkError{Op: "health", Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return networkError("health", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &domain.NetworkError{Op: "health", Status: resp.StatusCode}
	}
	return nil
}

// ListModels passes through the service's GET /models payload.
func (c *Client) ListModels(ctx context.Context) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, &domain.NetworkError{Op: "models", Err: err}
	}
	body, err := c.do(req, "models")
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, &domain.DecodeError{Reason: "models response is not JSON"}
	}
	return body, nil
}

// Detect runs inference for one image and returns NMS-filtered candidates in
// image pixel space, highest confidence first.
func (c *Client) Detect(ctx context.Context, r Request) ([]Candidate, error) {
	body, err := c.Infer(ctx, r)
	if err != nil {
		return nil, err
	}
	threshold, minScore := c.thresholds.IoU, c.thresholds.Confidence
	if r.Model.OpenWorld {
		threshold, minScore = c.thresholds.NMS, c.thresholds.Box
	}
	candidates, err := DecodeResponse(body, r.Width, r.Height, minScore)
	if err != nil {
		return nil, err
	}
	kept := SuppressPerClass(candidates, threshold)

	c.log.Info("Detection decoded",
		zap.String("model", r.Model.Name),
		zap.Int("raw", len(candidates)),
		zap.Int("kept", len(kept)))
	return kept, nil
}

// Infer posts the image to the model endpoint and returns the raw response body.
func (c *Client) Infer(ctx context.Context, r Request) ([]byte, error) {
	payload := map[string]any{
		"image": utils.EncodeDataURL(r.Image, r.ContentType),
	}
	if r.Model.OpenWorld {
		prompt, classes := NormalizePrompt(r.Prompt)
		if len(classes) == 0 {
			return nil, domain.Validation("model %s requires a text prompt", r.Model.Name)
		}
		payload["prompt"] = prompt
		payload["box_threshold"] = c.thresholds.Box
		payload["text_threshold"] = c.thresholds.Text
		payload["nms_threshold"] = c.thresholds.NMS
	} else {
		payload["confidence_threshold"] = c.thresholds.Confidence
		payload["iou_threshold"] = c.thresholds.IoU
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.inferenceTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+r.Model.Endpoint, bytes.NewReader(buf))
	if err != nil {
		return nil, &domain.NetworkError{Op: "inference", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, "inference")
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, networkError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, networkError(op, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("Detection service returned an error",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(body), 200)))
		return nil, &domain.NetworkError{Op: op, Status: resp.StatusCode}
	}
	return body, nil
}

func networkError(op string, err error) error {
	var ne net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout())
	return &domain.NetworkError{Op: op, Timeout: timeout, Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
