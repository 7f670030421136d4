package procrunner

import (
	"fmt"
)

var ErrMaxReached = fmt.Errorf("max reached")

// ProcRendererPool bounds the number of live ProcRenderers, and with it the
// total heap of the render processes. A slot is taken when a renderer starts
// and given back when its process exits, whether it was closed, timed out or
// killed for exceeding its heap.
type ProcRendererPool struct {
	cfg   Config
	slots chan struct{}
}

func NewProcRendererPool(maxConcurrent int, cfg Config) *ProcRendererPool {
	return &ProcRendererPool{
		cfg:   cfg,
		slots: make(chan struct{}, maxConcurrent),
	}
}

// Running is the number of renderers whose process has not exited.
func (p *ProcRendererPool) Running() int {
	return len(p.slots)
}

func (p *ProcRendererPool) Max() int {
	return cap(p.slots)
}

// NewRenderer starts a renderer with the pool config, or returns
// ErrMaxReached when max renderers are alive.
func (p *ProcRendererPool) NewRenderer() (*ProcRenderer, error) {
	select {
	case p.slots <- struct{}{}:
	default:
		return nil, ErrMaxReached
	}
	cfg := p.cfg
	onExit := cfg.OnExit
	cfg.OnExit = func() {
		if onExit != nil {
			onExit()
		}
		<-p.slots
	}
	renderer, err := NewProcRenderer(cfg)
	if err != nil {
		<-p.slots
		return nil, err
	}
	return renderer, nil
}
