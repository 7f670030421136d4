package ssr

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	v8 "github.com/stumble/v8go"
)

// DefaultOrigin is the synthetic resource name modules are compiled against.
const DefaultOrigin = "ssr:///bundle.mjs"

type EngineOption func(*Engine)

// WithMetrics records every render on m.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithOrigin overrides the resource name reported in VM stack traces.
func WithOrigin(origin string) EngineOption {
	return func(e *Engine) {
		if origin != "" {
			e.origin = origin
		}
	}
}

// Engine renders JavaScript bundles to strings. It owns one isolate and one
// context that are reused across calls, so globals written by guest code
// stay visible to later renders until Reset.
//
// Calls on one Engine are serialized; use one Engine per goroutine for
// parallel rendering. Init must be called before New. An Engine must be
// closed after use.
type Engine struct {
	mu      sync.Mutex
	origin  string
	iso     *v8.Isolate
	ctx     *v8.Context
	helpers *helpers
	metrics *Metrics
	closed  bool
}

// New creates an engine with its own isolate and default context. No script
// runs during construction.
func New(options ...EngineOption) *Engine {
	if !Initialized() {
		log.Warn().Msg("ssr engine created before ssr.Init")
	}
	e := &Engine{origin: DefaultOrigin}
	for _, opt := range options {
		opt(e)
	}
	e.iso = v8.NewIsolate()
	e.ctx = v8.NewContext(e.iso)
	return e
}

// Close frees the context and the isolate. It is safe to call twice.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.helpers = nil
	e.ctx.Close()
	e.iso.Dispose()
	e.closed = true
}

// Reset replaces the context with a fresh one in the same isolate, dropping
// guest globals and every VM value held by the previous context.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return NewError(KindClosed, "")
	}
	e.helpers = nil
	e.ctx.Close()
	e.ctx = v8.NewContext(e.iso)
	log.Debug().Msg("ssr engine context reset")
	return nil
}

// RenderToString compiles source as an ES module, evaluates it and calls its
// default export with params (or undefined when params is nil). The return
// value is converted to a string.
func (e *Engine) RenderToString(source string, params *string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	out, err := e.renderModule(source, params)
	e.metrics.observe(strategyModule, start, err)
	return out, err
}

func (e *Engine) renderModule(source string, params *string) (string, error) {
	if e.closed {
		return "", NewError(KindClosed, "")
	}
	h, err := e.ensureHelpers()
	if err != nil {
		return "", err
	}

	mod, err := compileModule(e.iso, e.origin, source)
	if err != nil {
		return "", err
	}
	if err := mod.Instantiate(e.ctx); err != nil {
		return "", err
	}
	if err := mod.Evaluate(e.iso, h); err != nil {
		return "", fmt.Errorf("failed to evaluate module: %w", err)
	}
	if mod.Status() == StatusErrored {
		return "", NewError(KindEvaluation, mod.Exception())
	}

	render, err := mod.DefaultExport()
	if err != nil {
		return "", err
	}
	return e.invoke(h, render, params)
}

// invoke calls fn through the exception trap and stringifies the result.
func (e *Engine) invoke(h *helpers, fn *v8.Function, params *string) (string, error) {
	arg, err := e.paramsValue(params)
	if err != nil {
		return "", err
	}
	res, err := h.call(e.iso, fn, arg, true)
	if err != nil {
		return "", fmt.Errorf("failed to call render function: %w", err)
	}
	if res.thrown {
		return "", NewError(KindInvocation, res.message)
	}
	return lossyString(res.value), nil
}

// paramsValue wraps params as a VM string, or undefined when absent.
// The text is passed through verbatim; it is not parsed as JSON.
func (e *Engine) paramsValue(params *string) (*v8.Value, error) {
	if params == nil {
		return v8.Undefined(e.iso), nil
	}
	val, err := v8.NewValue(e.iso, *params)
	if err != nil {
		return nil, fmt.Errorf("failed to create params value: %w", err)
	}
	return val, nil
}

func (e *Engine) ensureHelpers() (*helpers, error) {
	if e.helpers != nil {
		return e.helpers, nil
	}
	h, err := newHelpers(e.ctx)
	if err != nil {
		return nil, err
	}
	e.helpers = h
	return h, nil
}
