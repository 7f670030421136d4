package ssr

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	v8 "github.com/stumble/v8go"
)

// entryPointPattern accepts an identifier or a dotted identifier path.
var entryPointPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)

// namedRenderer is one render function of an entry-point object.
type namedRenderer struct {
	name string
	fn   *v8.Function
}

// RenderEntryPoint runs source as a classic script, then calls every own
// enumerable property of the object named by entryPoint with params and
// concatenates the results in property enumeration order. This is the
// calling convention of bundles that expose their renderers through a
// global variable rather than a default export.
func (e *Engine) RenderEntryPoint(source, entryPoint string, params *string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	out, err := e.renderEntryPoint(source, entryPoint, params)
	e.metrics.observe(strategyEntryPoint, start, err)
	return out, err
}

func (e *Engine) renderEntryPoint(source, entryPoint string, params *string) (string, error) {
	if e.closed {
		return "", NewError(KindClosed, "")
	}
	if !entryPointPattern.MatchString(entryPoint) {
		return "", newErrorf(KindMissingExport, "invalid entry point %q", entryPoint)
	}
	h, err := e.ensureHelpers()
	if err != nil {
		return "", err
	}

	script, err := e.iso.CompileUnboundScript(source+"\n;", e.origin, v8.CompileOptions{})
	if err != nil {
		return "", NewError(KindCompile, err.Error())
	}
	if _, err := script.Run(e.ctx); err != nil {
		return "", NewError(KindEvaluation, jsErrorMessage(err))
	}

	entry, err := e.lookupEntryPoint(h, entryPoint)
	if err != nil {
		return "", err
	}
	renderers, err := e.renderers(h, entryPoint, entry)
	if err != nil {
		return "", err
	}

	var rendered strings.Builder
	for _, r := range renderers {
		out, err := e.invoke(h, r.fn, params)
		if err != nil {
			return "", err
		}
		rendered.WriteString(out)
	}
	return rendered.String(), nil
}

// lookupEntryPoint evaluates the entry point expression through the trap so
// that an undeclared name reads as a missing entry point. Reserved words pass
// entryPointPattern but do not compile as an expression, or name no object
// (this is undefined in the strict getter).
func (e *Engine) lookupEntryPoint(h *helpers, entryPoint string) (*v8.Value, error) {
	getter, err := e.ctx.RunScript("(function () { \"use strict\"; return "+entryPoint+"; })", "ssr:///entry.js")
	if err != nil {
		return nil, newErrorf(KindMissingExport, "missing entry point %q: %s", entryPoint, jsErrorMessage(err))
	}
	fn, err := getter.AsFunction()
	if err != nil {
		return nil, err
	}
	res, err := h.call(e.iso, fn, nil, false)
	if err != nil {
		return nil, fmt.Errorf("failed to read entry point: %w", err)
	}
	if res.thrown || res.value == nil || !res.value.IsObject() {
		return nil, newErrorf(KindMissingExport,
			"missing entry point %q: is the bundle exported as a variable?", entryPoint)
	}
	return res.value, nil
}

// renderers narrows every own enumerable property of entry to a function,
// keeping enumeration order.
func (e *Engine) renderers(h *helpers, entryPoint string, entry *v8.Value) ([]namedRenderer, error) {
	keys, err := h.ownKeys(e.iso, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to list entry point properties: %w", err)
	}
	obj, err := entry.AsObject()
	if err != nil {
		return nil, err
	}
	renderers := make([]namedRenderer, 0, len(keys))
	for _, k := range keys {
		val, err := obj.Get(k)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s.%s: %w", entryPoint, k, err)
		}
		fn, err := val.AsFunction()
		if err != nil {
			return nil, newErrorf(KindNotCallable, "%s.%s is %s, not a function", entryPoint, k, typeName(val))
		}
		renderers = append(renderers, namedRenderer{name: k, fn: fn})
	}
	return renderers, nil
}

// jsErrorMessage extracts the exception text of a VM error. Classic script
// runs are not trapped, so only the string form of the exception is known.
func jsErrorMessage(err error) string {
	if jsErr, ok := err.(*v8.JSError); ok {
		return jsErr.Message
	}
	return err.Error()
}
