// Package session holds the state of one demo session: the loaded model, the
// current image, the readiness gate and the last ranking.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/fer-demo/internal/imagesource"
	"github.com/Brownie44l1/fer-demo/internal/model"
	"github.com/Brownie44l1/fer-demo/internal/preprocess"
	"github.com/Brownie44l1/fer-demo/internal/tensor"
)

var (
	ErrDetectionInFlight  = errors.New("detection already running")
	ErrModelAlreadyLoaded = errors.New("model already loaded")
	ErrModelLoading       = errors.New("model is loading")
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Status is the single line shown to the user. Each update replaces it.
type Status struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

const (
	msgLoading        = "Loading model, please wait..."
	msgBuilding       = "Failed to load the trained model. Building a simple emotion model..."
	msgModelLoaded    = "Model loaded. Upload a face photo to continue."
	msgFallbackReady  = "Trained model unavailable, a simple fallback model is ready. Replace the model artifact for accurate results."
	msgNoModel        = "Unable to load or build a model. Check that MODEL_PATH points at a valid ONNX model."
	msgNotAnImage     = "The selected file is not an image."
	msgReadFailed     = "Failed to read the image file."
	msgTooLarge       = "The image file is too large."
	msgImageLoaded    = "Image loaded. Ready for detection."
	msgModelNotReady  = "Model is not ready."
	msgNoImage        = "Please upload an image first."
	msgDetecting      = "Running emotion prediction..."
	msgBusy           = "Detection already running, please wait."
	msgDetectFailed   = "An error occurred while running emotion detection."
	modelStateLoading = "loading"
	modelStateIdle    = "not_loaded"
)

type ModelLoader interface {
	Load(ctx context.Context, onFallback func(reason error)) model.LoadResult
}

// Snapshot is a consistent copy of the session for presenters.
type Snapshot struct {
	SessionID     string         `json:"session_id"`
	Version       uint64         `json:"version"`
	Status        Status         `json:"status"`
	Model         string         `json:"model"`
	ModelReady    bool           `json:"model_ready"`
	ImageReady    bool           `json:"image_ready"`
	CanDetect     bool           `json:"can_detect"`
	Busy          bool           `json:"busy"`
	ActionEnabled bool           `json:"action_enabled"`
	ImageName     string         `json:"image_name,omitempty"`
	HasPreview    bool           `json:"has_preview"`
	Ranking       *model.Ranking `json:"ranking,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type Options struct {
	Labels model.Labels
	Images *imagesource.Source
	Logger *logrus.Logger
}

type Session struct {
	mu        sync.Mutex
	id        string
	labels    model.Labels
	images    *imagesource.Source
	gate      *Gate
	predictor model.Predictor
	prep      *preprocess.Preprocessor
	modelKind string
	image     *imagesource.Image
	status    Status
	ranking   *model.Ranking
	busy      bool
	updatedAt time.Time
	version   uint64
	listeners []func(Snapshot)
	log       *logrus.Entry
}

func New(opts Options) *Session {
	id := uuid.NewString()
	log := opts.Logger.WithField("session_id", id)
	labels := make(model.Labels, len(opts.Labels))
	copy(labels, opts.Labels)

	s := &Session{
		id:        id,
		labels:    labels,
		images:    opts.Images,
		modelKind: modelStateIdle,
		log:       log,
		updatedAt: time.Now(),
	}
	s.gate = NewGate(func(canDetect bool) {
		log.WithField("can_detect", canDetect).Debug("Readiness changed")
	})
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Labels() model.Labels { return s.labels }

// Subscribe registers fn to receive a snapshot after every state change.
func (s *Session) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Image returns the last successfully decoded upload, kept for preview even
// after a later upload failed.
func (s *Session) Image() *imagesource.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.image
}

// LoadModel asks loader for a model and attaches the outcome. It runs once
// per session; the lock is not held while loading so the status stays
// observable.
func (s *Session) LoadModel(ctx context.Context, loader ModelLoader) (model.LoadResult, error) {
	var refused error
	s.updateIf(func() bool {
		if refused = s.loadableLocked(); refused != nil {
			return false
		}
		s.modelKind = modelStateLoading
		s.setStatus(SeverityInfo, msgLoading)
		return true
	})
	if refused != nil {
		return model.LoadResult{}, refused
	}

	res := loader.Load(ctx, func(reason error) {
		s.update(func() {
			s.setStatus(SeverityInfo, msgBuilding)
		})
	})
	if err := s.Attach(res); err != nil {
		return model.LoadResult{}, err
	}
	return res, nil
}

// Attach installs a load result. Once a result has been attached, ready or
// unavailable, the outcome is final: later attaches close the offered
// predictor and fail.
func (s *Session) Attach(res model.LoadResult) error {
	var prep *preprocess.Preprocessor
	if res.Predictor != nil {
		var err error
		if prep, err = preprocess.New(res.Predictor.Spec()); err != nil {
			_ = res.Predictor.Close()
			res = model.LoadResult{Kind: model.LoadUnavailable, Reason: err}
		}
	}

	var attachErr error
	s.updateIf(func() bool {
		if s.settledLocked() {
			attachErr = ErrModelAlreadyLoaded
			return false
		}
		s.modelKind = res.Kind.String()
		switch res.Kind {
		case model.LoadReady:
			s.predictor, s.prep = res.Predictor, prep
			s.gate.MarkModelReady()
			s.setStatus(SeveritySuccess, msgModelLoaded)
		case model.LoadFallback:
			s.predictor, s.prep = res.Predictor, prep
			s.gate.MarkModelReady()
			s.setStatus(SeveritySuccess, msgFallbackReady)
			s.log.WithField("reason", errString(res.Reason)).Warn("Using fallback model")
		default:
			s.modelKind = model.LoadUnavailable.String()
			s.setStatus(SeverityError, msgNoModel)
			s.log.WithField("reason", errString(res.Reason)).Error("No model available, detection disabled")
		}
		return true
	})
	if attachErr != nil && res.Predictor != nil {
		_ = res.Predictor.Close()
	}
	return attachErr
}

func (s *Session) settledLocked() bool {
	return s.modelKind != modelStateIdle && s.modelKind != modelStateLoading
}

func (s *Session) loadableLocked() error {
	switch {
	case s.modelKind == modelStateLoading:
		return ErrModelLoading
	case s.settledLocked():
		return ErrModelAlreadyLoaded
	}
	return nil
}

// Upload validates and decodes an uploaded file. An empty upload clears the
// image. On failure the image is marked not ready but the last good preview
// is kept.
func (s *Session) Upload(u imagesource.Upload) error {
	if len(u.Data) == 0 {
		s.Clear()
		return nil
	}

	img, err := s.images.Decode(u)
	return s.accept(u.Name, img, err)
}

// ReadUpload streams an upload from r. An empty body clears the image.
func (s *Session) ReadUpload(r io.Reader, name, contentType string) error {
	img, err := s.images.Read(r, name, contentType)
	if errors.Is(err, imagesource.ErrEmptyUpload) {
		s.Clear()
		return nil
	}
	return s.accept(name, img, err)
}

func (s *Session) accept(name string, img *imagesource.Image, err error) error {
	if err != nil {
		s.update(func() {
			s.gate.SetImageReady(false)
			s.setStatus(SeverityError, uploadMessage(err))
		})
		s.log.WithFields(logrus.Fields{
			"image": name,
			"error": err.Error(),
		}).Warn("Upload rejected")
		return err
	}

	s.update(func() {
		s.image = img
		s.gate.SetImageReady(true)
		s.setStatus(SeverityInfo, msgImageLoaded)
	})
	s.log.WithFields(logrus.Fields{
		"image":  img.Name,
		"mime":   img.MIME,
		"width":  img.Width,
		"height": img.Height,
	}).Info("Image loaded")
	return nil
}

// Clear marks the image as not ready, as when the file input is emptied.
func (s *Session) Clear() {
	s.update(func() {
		s.gate.SetImageReady(false)
	})
}

// Detect runs preprocessing, inference and ranking on the current image.
// It is rejected while the gate is closed or another detection is running.
func (s *Session) Detect(ctx context.Context) (*model.Ranking, error) {
	var (
		pred    model.Predictor
		prep    *preprocess.Preprocessor
		img     *imagesource.Image
		refused error
	)
	s.update(func() {
		if err := s.gate.Check(); err != nil {
			refused = err
			if errors.Is(err, ErrModelNotReady) {
				s.setStatus(SeverityError, msgModelNotReady)
			} else {
				s.setStatus(SeverityError, msgNoImage)
			}
			return
		}
		if s.busy {
			refused = ErrDetectionInFlight
			s.setStatus(SeverityInfo, msgBusy)
			return
		}
		s.busy = true
		s.setStatus(SeverityInfo, msgDetecting)
		pred, prep, img = s.predictor, s.prep, s.image
	})
	if refused != nil {
		s.log.WithField("reason", refused.Error()).Info("Detection refused")
		return nil, refused
	}

	started := time.Now()
	ranking, err := s.run(ctx, pred, prep, img)

	s.update(func() {
		s.busy = false
		if err != nil {
			s.setStatus(SeverityError, msgDetectFailed)
			return
		}
		s.ranking = ranking
		s.setStatus(SeveritySuccess, ranking.Summary())
	})

	if err != nil {
		s.log.WithField("error", err.Error()).Error("Detection failed")
		return nil, err
	}
	top, _ := ranking.Primary()
	s.log.WithFields(logrus.Fields{
		"image":    img.Name,
		"label":    top.Label,
		"score":    top.Score,
		"duration": time.Since(started).String(),
	}).Info("Detection finished")
	return ranking, nil
}

func (s *Session) run(ctx context.Context, pred model.Predictor, prep *preprocess.Preprocessor, img *imagesource.Image) (ranking *model.Ranking, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("inference panic: %v", r)
		}
	}()

	var raw []float32
	err = tensor.Scope(func(a *tensor.Arena) error {
		x, err := prep.Tensor(a, img.Image)
		if err != nil {
			return fmt.Errorf("failed to preprocess image: %w", err)
		}
		out, err := pred.Predict(ctx, a, x)
		if err != nil {
			return err
		}
		raw = append(raw, out.Data...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	r := model.Rank(raw, s.labels)
	for _, d := range r.Diagnostics {
		s.log.WithField("kind", string(d.Kind)).Warn(d.Message)
	}
	if r.ZeroTotal {
		s.log.Debug("Model scores summed to zero, ranking left unnormalized")
	}
	return &r, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.predictor == nil {
		return nil
	}
	err := s.predictor.Close()
	s.predictor = nil
	return err
}

func (s *Session) update(fn func()) {
	s.updateIf(func() bool {
		fn()
		return true
	})
}

// updateIf applies fn under the lock. When fn reports a change the version
// is bumped and subscribers are notified after the lock is released.
// Notifications may arrive out of order; Snapshot.Version orders them.
func (s *Session) updateIf(fn func() bool) {
	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	s.version++
	s.updatedAt = time.Now()
	snap := s.snapshotLocked()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (s *Session) setStatus(sev Severity, msg string) {
	s.status = Status{Message: msg, Severity: sev}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:     s.id,
		Version:       s.version,
		Status:        s.status,
		Model:         s.modelKind,
		ModelReady:    s.gate.ModelReady(),
		ImageReady:    s.gate.ImageReady(),
		CanDetect:     s.gate.CanDetect(),
		Busy:          s.busy,
		ActionEnabled: s.gate.CanDetect() && !s.busy,
		HasPreview:    s.image != nil,
		UpdatedAt:     s.updatedAt,
	}
	if s.image != nil {
		snap.ImageName = s.image.Name
	}
	if s.ranking != nil {
		r := *s.ranking
		snap.Ranking = &r
	}
	return snap
}

func uploadMessage(err error) string {
	switch {
	case errors.Is(err, imagesource.ErrNotAnImage):
		return msgNotAnImage
	case errors.Is(err, imagesource.ErrUploadTooLarge):
		return msgTooLarge
	default:
		return msgReadFailed
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
