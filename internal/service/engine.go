// Package service hosts the annotation engine: the single writer that
// applies every gesture, edit, detection result and undo to the session.
package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/my591234-max/autolabeling/internal/config"
	"github.com/my591234-max/autolabeling/internal/detection"
	"github.com/my591234-max/autolabeling/internal/domain"
	"github.com/my591234-max/autolabeling/internal/history"
	"github.com/my591234-max/autolabeling/internal/interaction"
	"github.com/my591234-max/autolabeling/internal/repository"
	"github.com/my591234-max/autolabeling/internal/selection"
	"github.com/my591234-max/autolabeling/internal/store"
	"github.com/my591234-max/autolabeling/pkg/utils"
)

// Detector is the detection service as the engine uses it.
type Detector interface {
	CheckHealth(ctx context.Context) error
	Detect(ctx context.Context, r detection.Request) ([]detection.Candidate, error)
}

// Engine serialises all session mutations behind one mutex. Calls to the
// detector are made without holding it.
type Engine struct {
	mu  sync.Mutex
	cfg *config.Config
	log *zap.Logger

	proc     *utils.ImageProcessor
	detector Detector
	s3Repo   repository.S3Repository
	local    *repository.LocalRepository

	images  []domain.Image
	pixels  map[string][]byte
	store   *store.RegionStore
	history *history.Manager
	sel     *selection.Manager
	machine *interaction.Machine
	model   detection.Model

	inFlight     map[string]bool
	batchRunning bool
}

// Deps are the engine's collaborators. S3 may be nil when S3 is disabled.
type Deps struct {
	Detector Detector
	S3       repository.S3Repository
	Local    *repository.LocalRepository
}

func NewEngine(cfg *config.Config, deps Deps, log *zap.Logger) (*Engine, error) {
	model, ok := detection.LookupModel(cfg.Detector.Model)
	if !ok {
		return nil, fmt.Errorf("unknown detection model %q", cfg.Detector.Model)
	}
	if deps.Detector == nil {
		return nil, fmt.Errorf("detector is required")
	}

	hist := history.New(cfg.Engine.HistoryCapacity, nil)
	st := store.New(hist)
	sel := selection.New()

	e := &Engine{
		cfg:      cfg,
		log:      log,
		proc:     utils.NewImageProcessor(log),
		detector: deps.Detector,
		s3Repo:   deps.S3,
		local:    deps.Local,
		pixels:   map[string][]byte{},
		store:    st,
		history:  hist,
		sel:      sel,
		machine:  interaction.NewMachine(st, sel, cfg.Engine.DefaultLabel, log),
		model:    model,
		inFlight: map[string]bool{},
	}

	st.Subscribe(func(c store.Change) {
		if c.Kind == store.ChangeTransient {
			return
		}
		log.Debug("Regions changed",
			zap.String("kind", c.Kind.String()),
			zap.Strings("images", c.ImageIDs))
	})
	e.machine.AddListener(func(prev, next interaction.Mode) {
		log.Info("Interaction mode changed",
			zap.String("from", prev.String()),
			zap.String("to", next.String()))
	})

	return e, nil
}

// Model returns the detection model used when a request names none.
func (e *Engine) Model() detection.Model {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model
}

// SetModel switches the default detection model.
func (e *Engine) SetModel(name string) error {
	m, ok := detection.LookupModel(name)
	if !ok {
		return domain.Validation("unknown detection model %q", name)
	}
	e.mu.Lock()
	e.model = m
	e.mu.Unlock()
	e.log.Info("Detection model selected", zap.String("model", m.Name))
	return nil
}

// State is a read-only summary of the session for clients.
type State struct {
	DisplayedImage string          `json:"displayed_image"`
	Mode           string          `json:"mode"`
	Zoom           float64         `json:"zoom"`
	DefaultLabel   string          `json:"default_label"`
	Model          detection.Model `json:"model"`
	Selected       []int           `json:"selected"`
	CanUndo        bool            `json:"can_undo"`
	CanRedo        bool            `json:"can_redo"`
	Images         []domain.Image  `json:"images"`
	Regions        []domain.Region `json:"regions"`
	Batch          bool            `json:"batch_running"`
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.machine.ImageID()
	regions := e.store.Get(id)
	return State{
		DisplayedImage: id,
		Mode:           e.machine.Mode().String(),
		Zoom:           e.machine.Transform().Zoom,
		DefaultLabel:   e.machine.DefaultLabel(),
		Model:          e.model,
		Selected:       e.sel.Selected(regionIDs(regions)),
		CanUndo:        e.history.CanUndo(),
		CanRedo:        e.history.CanRedo(),
		Images:         append([]domain.Image{}, e.images...),
		Regions:        regions,
		Batch:          e.batchRunning,
	}
}

func (e *Engine) image(id string) (domain.Image, bool) {
	for _, img := range e.images {
		if img.ID == id {
			return img, true
		}
	}
	return domain.Image{}, false
}

func regionIDs(regions []domain.Region) []int {
	out := make([]int, len(regions))
	for i, r := range regions {
		out[i] = r.ID
	}
	return out
}
