package ssr

import (
	"fmt"
	"strings"

	v8 "github.com/stumble/v8go"
)

type ModuleStatus int

const (
	StatusUninstantiated ModuleStatus = iota
	StatusInstantiated
	StatusEvaluated
	StatusErrored
)

func (s ModuleStatus) String() string {
	switch s {
	case StatusUninstantiated:
		return "uninstantiated"
	case StatusInstantiated:
		return "instantiated"
	case StatusEvaluated:
		return "evaluated"
	case StatusErrored:
		return "errored"
	default:
		return fmt.Sprintf("ModuleStatus(%d)", int(s))
	}
}

// Module is one compilation of an ES module inside an engine context.
// It is compiled fresh for every render and must not outlive the context it
// was compiled in.
type Module struct {
	origin    string
	requests  []string
	script    *v8.UnboundScript
	factory   *v8.Function
	namespace *v8.Value
	status    ModuleStatus
	exception string
}

func (m *Module) Status() ModuleStatus {
	return m.status
}

// Requests returns the static module specifiers the module imports.
func (m *Module) Requests() []string {
	return m.requests
}

// Exception returns the message of the exception thrown by top-level code
// when the module status is StatusErrored.
func (m *Module) Exception() string {
	return m.exception
}

// compileModule parses source as an ES module. The module body is wrapped in
// a strict async factory, so compiling and running the script does not
// evaluate it. A module with requests is parsed but never compiled by the
// VM: it cannot be instantiated anyway.
func compileModule(iso *v8.Isolate, origin, source string) (*Module, error) {
	linked, err := linkModule(source)
	if err != nil {
		return nil, err
	}
	mod := &Module{
		origin:   origin,
		requests: linked.requests,
		status:   StatusUninstantiated,
	}
	if len(linked.requests) > 0 {
		return mod, nil
	}
	wrapped := "(async function (" + exportHook + ") {\n\"use strict\";\n" + linked.script + "\n})"
	mod.script, err = iso.CompileUnboundScript(wrapped, origin, v8.CompileOptions{})
	if err != nil {
		return nil, NewError(KindCompile, err.Error())
	}
	return mod, nil
}

// Instantiate links the module into ctx. Module resolution is not supported,
// so any module request fails instantiation.
func (m *Module) Instantiate(ctx *v8.Context) error {
	if m.status != StatusUninstantiated {
		return fmt.Errorf("cannot instantiate module in status %s", m.status)
	}
	if len(m.requests) > 0 {
		return newErrorf(KindInstantiate, "cannot resolve module %s: module resolution is not supported",
			quoteAll(m.requests))
	}
	val, err := m.script.Run(ctx)
	if err != nil {
		return NewError(KindInstantiate, err.Error())
	}
	fn, err := val.AsFunction()
	if err != nil {
		return NewError(KindInstantiate, err.Error())
	}
	m.factory = fn
	m.status = StatusInstantiated
	return nil
}

// Evaluate runs the module body until it settles, including any top-level
// await. A thrown exception or rejected await moves the module to
// StatusErrored; callers inspect Status and Exception rather than the
// returned error, which only reports host failures.
func (m *Module) Evaluate(iso *v8.Isolate, h *helpers) error {
	if m.status != StatusInstantiated {
		return fmt.Errorf("cannot evaluate module in status %s", m.status)
	}
	res, err := h.settle(iso, m.factory)
	if err != nil {
		m.status = StatusErrored
		m.exception = err.Error()
		return err
	}
	if res.thrown {
		m.status = StatusErrored
		m.exception = res.message
		return nil
	}
	m.namespace = res.value
	m.status = StatusEvaluated
	return nil
}

// DefaultExport narrows the namespace's "default" property to a function.
func (m *Module) DefaultExport() (*v8.Function, error) {
	if m.status != StatusEvaluated {
		return nil, fmt.Errorf("cannot read exports of module in status %s", m.status)
	}
	if m.namespace == nil || !m.namespace.IsObject() {
		return nil, NewError(KindMissingExport, "module has no callable default export")
	}
	ns, err := m.namespace.AsObject()
	if err != nil {
		return nil, NewError(KindMissingExport, "module has no callable default export")
	}
	if !ns.Has("default") {
		return nil, NewError(KindMissingExport, "module has no callable default export")
	}
	val, err := ns.Get("default")
	if err != nil {
		return nil, NewError(KindMissingExport, err.Error())
	}
	fn, err := val.AsFunction()
	if err != nil {
		return nil, newErrorf(KindNotCallable, "default export is %s, not a function", typeName(val))
	}
	return fn, nil
}

func quoteAll(specifiers []string) string {
	quoted := make([]string, len(specifiers))
	for i, s := range specifiers {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ", ")
}

func typeName(val *v8.Value) string {
	switch {
	case val == nil || val.IsUndefined():
		return "undefined"
	case val.IsNull():
		return "null"
	case val.IsString():
		return "a string"
	case val.IsNumber():
		return "a number"
	case val.IsBoolean():
		return "a boolean"
	case val.IsObject():
		return "an object"
	default:
		return "a non-callable value"
	}
}
