package detection

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/my591234-max/autolabeling/internal/domain"
	"github.com/my591234-max/autolabeling/internal/geometry"
)

func newTestClient(t *testing.T, h http.Handler, cfg ClientConfig) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL
	return NewClient(cfg, zaptest.NewLogger(t)), srv
}

func TestClient_CheckHealth(t *testing.T) {
	status := http.StatusOK
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(status)
	}), ClientConfig{})

	if err := c.CheckHealth(context.Background()); err != nil {
		t.Fatalf("expected healthy, got %v", err)
	}
	status = http.StatusServiceUnavailable
	err := c.CheckHealth(context.Background())
	var ne *domain.NetworkError
	if !errors.As(err, &ne) || ne.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected NetworkError with status 503, got %v", err)
	}
}

func TestClient_CheckHealthTimeout(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}), ClientConfig{HealthTimeout: 50 * time.Millisecond})

	err := c.CheckHealth(context.Background())
	var ne *domain.NetworkError
	if !errors.As(err, &ne) || !ne.Timeout {
		t.Fatalf("expected timeout NetworkError, got %v", err)
	}
}

func TestClient_DetectClosedSet(t *testing.T) {
	var body map[string]any
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/yolo" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"detections":[
			{"bbox":[100,100,200,100],"label":"car","confidence":0.6},
			{"bbox":[120,110,200,100],"label":"car","confidence":0.9}
		],"image_size":[1000,500],"model":"yolov8"}`))
	}), ClientConfig{Thresholds: Thresholds{Confidence: 0.25, IoU: 0.45, NMS: 0.5}})

	model, _ := LookupModel("yolov8")
	got, err := c.Detect(context.Background(), Request{Model: model, Image: []byte("img"), ContentType: "image/png", Width: 1000, Height: 500})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(got) != 1 || got[0].Confidence != 0.9 {
		t.Fatalf("expected NMS to keep only the 0.9 box, got %+v", got)
	}
	if body["confidence_threshold"] != 0.25 || body["iou_threshold"] != 0.45 {
		t.Fatalf("closed-set thresholds missing from body: %v", body)
	}
	if _, ok := body["prompt"]; ok {
		t.Fatalf("closed-set request must not carry a prompt")
	}
	if img, _ := body["image"].(string); !strings.HasPrefix(img, "data:image/png;base64,") {
		t.Fatalf("image not sent as data URL: %q", img)
	}
}

func TestClient_DetectOpenWorldSendsPrompt(t *testing.T) {
	var body map[string]any
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/grounding-dino" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"detections":[]}`))
	}), ClientConfig{Thresholds: Thresholds{Box: 0.35, Text: 0.25, NMS: 0.5}})

	model, _ := LookupModel("grounding-dino")
	if _, err := c.Detect(context.Background(), Request{Model: model, Prompt: "car , person", Image: []byte("x"), Width: 10, Height: 10}); err != nil {
		t.Fatalf("detect: %v", err)
	}
	if body["prompt"] != "car. person." || body["box_threshold"] != 0.35 || body["nms_threshold"] != 0.5 {
		t.Fatalf("unexpected open-world body %v", body)
	}
}

func TestClient_OpenWorldWithoutPromptIsRejectedLocally(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}), ClientConfig{})

	model, _ := LookupModel("grounding-dino")
	_, err := c.Detect(context.Background(), Request{Model: model, Prompt: "  ", Width: 10, Height: 10})
	if !domain.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("no request should reach the service")
	}
}

func TestClient_DetectErrors(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/yolo11" {
			_, _ = w.Write([]byte(`{"unexpected":true}`))
			return
		}
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}), ClientConfig{})

	v8, _ := LookupModel("yolov8")
	if _, err := c.Detect(context.Background(), Request{Model: v8, Width: 10, Height: 10}); !domain.IsNetwork(err) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	v11, _ := LookupModel("yolo11")
	if _, err := c.Detect(context.Background(), Request{Model: v11, Width: 10, Height: 10}); !domain.IsDecode(err) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestClient_ListModels(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"available_models":[{"name":"YOLOv8","endpoint":"/yolo"}]}`))
	}), ClientConfig{})
	raw, err := c.ListModels(context.Background())
	if err != nil || !strings.Contains(string(raw), "available_models") {
		t.Fatalf("unexpected models payload %s %v", raw, err)
	}
}

func TestClient_DetectTensorOutput(t *testing.T) {
	for _, tc := range []struct {
		name   string
		shape  []int
		layout string
		data   []float32
	}{
		{"box-major explicit", []int{1, 2, 6}, "box_major", boxMajor},
		{"box-major from names", []int{1, 2, 6}, "", boxMajor},
		{"class-major from names", []int{1, 6, 2}, "", transpose(boxMajor, 2, 6)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]any{
					"output":     tc.data,
					"shape":      tc.shape,
					"layout":     tc.layout,
					"input_size": 640,
					"names":      []string{"person", "car"},
				})
			}), ClientConfig{Thresholds: Thresholds{Confidence: 0.25, IoU: 0.45}})

			model, _ := LookupModel("yolov8")
			got, err := c.Detect(context.Background(), Request{Model: model, Image: []byte("img"), ContentType: "image/png", Width: 1280, Height: 640})
			if err != nil {
				t.Fatalf("detect: %v", err)
			}
			if len(got) != 1 || got[0].Label != "car" {
				t.Fatalf("expected the car box only, got %+v", got)
			}
			if want := (geometry.Box{X: 540, Y: 270, W: 200, H: 100}); !near(got[0].Box, want) {
				t.Fatalf("expected %v, got %v", want, got[0].Box)
			}
		})
	}
}

func TestClient_DetectTensorOutputMalformed(t *testing.T) {
	for _, body := range []string{
		`{"output":[1,2,3],"shape":[3],"input_size":640}`,
		`{"output":[1,2,3],"shape":[1,1,3],"input_size":640}`,
		`{"output":[1,2,3,4,5],"shape":[1,1,5],"layout":"diagonal","input_size":640}`,
		`{"output":[1,2,3,4,5],"shape":[1,1,5],"input_size":0}`,
	} {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}), ClientConfig{})
		model, _ := LookupModel("yolov8")
		_, err := c.Detect(context.Background(), Request{Model: model, Image: []byte("img"), ContentType: "image/png", Width: 100, Height: 100})
		if !domain.IsDecode(err) {
			t.Fatalf("body %s: expected DecodeError, got %v", body, err)
		}
	}
}
