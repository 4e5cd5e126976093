package session

import "errors"

var (
	ErrModelNotReady    = errors.New("model not ready")
	ErrImageNotUploaded = errors.New("image not uploaded")
)

// Gate tracks model and image readiness. Detection is allowed only when
// both are ready. Model readiness is one-way; image readiness follows the
// latest upload attempt. Gate is not synchronized; Session guards it.
type Gate struct {
	modelReady bool
	imageReady bool
	onChange   func(canDetect bool)
}

// NewGate calls onChange, if non-nil, with CanDetect after every transition.
func NewGate(onChange func(canDetect bool)) *Gate {
	return &Gate{onChange: onChange}
}

func (g *Gate) MarkModelReady() {
	if g.modelReady {
		return
	}
	g.modelReady = true
	g.changed()
}

func (g *Gate) SetImageReady(ready bool) {
	g.imageReady = ready
	g.changed()
}

func (g *Gate) ModelReady() bool { return g.modelReady }
func (g *Gate) ImageReady() bool { return g.imageReady }
func (g *Gate) CanDetect() bool  { return g.modelReady && g.imageReady }

// Check explains why detection is not allowed. A missing model is reported
// before a missing image.
func (g *Gate) Check() error {
	if !g.modelReady {
		return ErrModelNotReady
	}
	if !g.imageReady {
		return ErrImageNotUploaded
	}
	return nil
}

func (g *Gate) changed() {
	if g.onChange != nil {
		g.onChange(g.CanDetect())
	}
}
