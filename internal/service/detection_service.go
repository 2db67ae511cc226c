package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/my591234-max/autolabeling/internal/detection"
	"github.com/my591234-max/autolabeling/internal/domain"
)

// DetectOptions configures a single-image run. Empty ImageID means the
// displayed image and empty Model means the engine's current model.
type DetectOptions struct {
	ImageID string
	Model   string
	Prompt  string
	Confirm bool
}

// BatchOptions configures an all-images run. Progress, if set, is called
// after each image in import order.
type BatchOptions struct {
	Model    string
	Prompt   string
	Confirm  bool
	Progress func(done, total int, r ImageResult)
}

// ImageResult is the outcome for one image of a batch: regions on success,
// an error otherwise.
type ImageResult struct {
	ImageID string          `json:"image_id"`
	Name    string          `json:"name"`
	Regions []domain.Region `json:"regions,omitempty"`
	Err     error           `json:"-"`
	Error   string          `json:"error,omitempty"`
}

func (r ImageResult) OK() bool { return r.Err == nil }

type BatchReport struct {
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"`
	TotalObjects int           `json:"total_objects"`
	Duration     time.Duration `json:"duration"`
	Results      []ImageResult `json:"results"`
}

// DetectImage replaces one image's regions with the detector's output as a
// single history entry. Existing regions are only overwritten with Confirm.
func (e *Engine) DetectImage(ctx context.Context, opts DetectOptions) ([]domain.Region, error) {
	e.mu.Lock()
	id := opts.ImageID
	if id == "" {
		id = e.machine.ImageID()
	}
	img, ok := e.image(id)
	if !ok {
		e.mu.Unlock()
		return nil, domain.Validation("no image selected")
	}
	model, err := e.resolveModel(opts.Model, opts.Prompt)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := e.checkHealth(ctx); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.batchRunning {
		e.mu.Unlock()
		return nil, domain.Validation("a batch detection is running")
	}
	if e.inFlight[id] {
		e.mu.Unlock()
		return nil, domain.Validation("detection already running for image %s", img.Name)
	}
	if len(e.store.Get(id)) > 0 && !opts.Confirm {
		e.mu.Unlock()
		return nil, domain.ErrConfirmationRequired
	}
	data, ok := e.pixels[id]
	if !ok {
		e.mu.Unlock()
		return nil, domain.Validation("image %s was removed", img.Name)
	}
	e.inFlight[id] = true
	e.mu.Unlock()

	candidates, err := e.detector.Detect(ctx, e.request(model, opts.Prompt, img, data))

	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, id)
	if err != nil {
		e.log.Error("Detection failed",
			zap.String("image", img.Name),
			zap.String("model", model.Name),
			zap.Error(err))
		return nil, err
	}
	if _, ok := e.image(id); !ok {
		return nil, domain.Validation("image %s was removed during detection", img.Name)
	}

	e.finishOn(id)
	e.store.Replace(id, detection.ToRegions(candidates), false)
	if e.machine.ImageID() == id {
		e.sel.Clear()
	}
	regions := e.store.Get(id)

	e.log.Info("Detection applied",
		zap.String("image", img.Name),
		zap.String("model", model.Name),
		zap.Int("regions", len(regions)))

	return regions, nil
}

// DetectAll runs detection over every image strictly one after another.
// A failing image is recorded in the report and skipped; successful images
// are committed together as one history entry.
func (e *Engine) DetectAll(ctx context.Context, opts BatchOptions) (*BatchReport, error) {
	e.mu.Lock()
	if len(e.images) == 0 {
		e.mu.Unlock()
		return nil, domain.Validation("no images imported")
	}
	model, err := e.resolveModel(opts.Model, opts.Prompt)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := e.checkHealth(ctx); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.batchRunning {
		e.mu.Unlock()
		return nil, domain.Validation("a batch detection is already running")
	}
	if !opts.Confirm {
		for _, img := range e.images {
			if len(e.store.Get(img.ID)) > 0 {
				e.mu.Unlock()
				return nil, domain.ErrConfirmationRequired
			}
		}
	}
	images := append([]domain.Image{}, e.images...)
	e.batchRunning = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.batchRunning = false
		e.mu.Unlock()
	}()

	start := time.Now()
	e.log.Info("Batch detection started",
		zap.String("model", model.Name),
		zap.Int("images", len(images)))

	results := make([]ImageResult, 0, len(images))
	for i, img := range images {
		res := e.detectOne(ctx, model, opts.Prompt, img)
		if !res.OK() {
			e.log.Warn("Skipping image after failed detection",
				zap.String("image", img.Name),
				zap.Error(res.Err))
		}
		results = append(results, res)
		if opts.Progress != nil {
			opts.Progress(i+1, len(images), res)
		}
	}

	report := e.commitBatch(results)
	report.Duration = time.Since(start)

	e.log.Info("Batch detection finished",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("objects", report.TotalObjects),
		zap.Duration("duration", report.Duration))

	return report, nil
}

func (e *Engine) detectOne(ctx context.Context, model detection.Model, prompt string, img domain.Image) ImageResult {
	res := ImageResult{ImageID: img.ID, Name: img.Name}

	e.mu.Lock()
	data, ok := e.pixels[img.ID]
	switch {
	case !ok:
		res.Err = domain.Validation("image %s was removed", img.Name)
	case e.inFlight[img.ID]:
		res.Err = domain.Validation("detection already running for image %s", img.Name)
	default:
		e.inFlight[img.ID] = true
	}
	e.mu.Unlock()
	if res.Err != nil {
		return res.failed()
	}

	candidates, err := e.detector.Detect(ctx, e.request(model, prompt, img, data))

	e.mu.Lock()
	delete(e.inFlight, img.ID)
	e.mu.Unlock()

	if err != nil {
		res.Err = err
		return res.failed()
	}
	res.Regions = detection.ToRegions(candidates)
	return res
}

// commitBatch writes every successful result whose image still exists in
// one ReplaceMany and builds the report from what was actually stored.
func (e *Engine) commitBatch(results []ImageResult) *BatchReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	merged := domain.RegionsByImage{}
	for i := range results {
		r := &results[i]
		if !r.OK() {
			continue
		}
		if _, ok := e.image(r.ImageID); !ok {
			r.Regions = nil
			r.Err = domain.Validation("image %s was removed during detection", r.Name)
			*r = r.failed()
			continue
		}
		merged[r.ImageID] = r.Regions
	}

	if len(merged) > 0 {
		if _, ok := merged[e.machine.ImageID()]; ok {
			e.machine.Finish()
			e.sel.Clear()
		}
		e.store.ReplaceMany(merged)
	}

	report := &BatchReport{Results: results}
	for i := range results {
		r := &results[i]
		if !r.OK() {
			report.Failed++
			continue
		}
		r.Regions = e.store.Get(r.ImageID)
		report.Succeeded++
		report.TotalObjects += len(r.Regions)
	}
	return report
}

func (r ImageResult) failed() ImageResult {
	if r.Err != nil {
		r.Error = r.Err.Error()
	}
	return r
}

// resolveModel picks the model and checks that a prompt is present when the
// model needs one. Callers hold e.mu.
func (e *Engine) resolveModel(name, prompt string) (detection.Model, error) {
	model := e.model
	if name != "" {
		m, ok := detection.LookupModel(name)
		if !ok {
			return detection.Model{}, domain.Validation("unknown detection model %q", name)
		}
		model = m
	}
	if model.RequiresPrompt() {
		if _, classes := detection.NormalizePrompt(prompt); len(classes) == 0 {
			return detection.Model{}, domain.Validation("model %s requires a text prompt", model.Name)
		}
	}
	return model, nil
}

func (e *Engine) checkHealth(ctx context.Context) error {
	if err := e.detector.CheckHealth(ctx); err != nil {
		e.log.Warn("Detection service unreachable", zap.Error(err))
		return domain.Validation("detection service unreachable: %v", err)
	}
	return nil
}

func (e *Engine) request(model detection.Model, prompt string, img domain.Image, data []byte) detection.Request {
	return detection.Request{
		Model:       model,
		Prompt:      prompt,
		Image:       data,
		ContentType: img.ContentType,
		Width:       img.Width,
		Height:      img.Height,
	}
}

func (r BatchReport) String() string {
	return fmt.Sprintf("%d succeeded, %d failed, %d objects", r.Succeeded, r.Failed, r.TotalObjects)
}
