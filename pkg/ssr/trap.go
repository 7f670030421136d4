package ssr

import (
	"fmt"
	"strings"

	v8 "github.com/stumble/v8go"
)

// helpersSource builds the host helpers. The intrinsics they rely on are
// captured when the helpers are compiled, before any guest code runs in the
// context, so a guest overwriting Function.prototype.call, String or
// Object.keys cannot break later renders.
//
// call invokes fn with this = undefined and a single argument and never lets
// an exception escape. It returns {ok: true, value} or {ok: false, message}.
// When stringify is set the return value is converted with String() inside
// the trap, so a throwing toString is reported like any other invocation
// failure.
//
// evaluate starts an async module body and returns the promise of its
// completion plus a getter for the namespace the body hands to its export
// hook.
const helpersSource = `(function () {
  "use strict";
  var apply = Reflect.apply;
  var toString = String;
  var objectKeys = Object.keys;
  function describe(e) {
    try {
      if (e !== null && (typeof e === "object" || typeof e === "function") && e.message !== undefined) {
        return toString(e.message);
      }
      return toString(e);
    } catch (_) {
      return "uncaught exception";
    }
  }
  function call(fn, arg, stringify) {
    try {
      var out = apply(fn, undefined, [arg]);
      return { ok: true, value: stringify ? toString(out) : out };
    } catch (e) {
      return { ok: false, message: describe(e) };
    }
  }
  function evaluate(factory) {
    var namespace;
    var done = apply(factory, undefined, [function (ns) { namespace = ns; }]);
    return { done: done, namespace: function () { return namespace; } };
  }
  function keys(obj) {
    return apply(objectKeys, undefined, [obj]);
  }
  return { call: call, describe: describe, evaluate: evaluate, keys: keys };
})()`

// helpers are host functions compiled into the engine context on first use
// and kept for the lifetime of that context.
type helpers struct {
	ctx      *v8.Context
	trap     *v8.Function
	describe *v8.Function
	evaluate *v8.Function
	keys     *v8.Function
}

func newHelpers(ctx *v8.Context) (*helpers, error) {
	val, err := ctx.RunScript(helpersSource, "ssr:///helpers.js")
	if err != nil {
		return nil, fmt.Errorf("failed to compile helpers: %w", err)
	}
	obj, err := val.AsObject()
	if err != nil {
		return nil, err
	}
	h := &helpers{ctx: ctx}
	for name, dst := range map[string]**v8.Function{
		"call":     &h.trap,
		"describe": &h.describe,
		"evaluate": &h.evaluate,
		"keys":     &h.keys,
	} {
		fn, err := functionProperty(obj, name)
		if err != nil {
			return nil, fmt.Errorf("failed to load helper %s: %w", name, err)
		}
		*dst = fn
	}
	return h, nil
}

func functionProperty(obj *v8.Object, name string) (*v8.Function, error) {
	val, err := obj.Get(name)
	if err != nil {
		return nil, err
	}
	return val.AsFunction()
}

// trapped is the outcome of a call through the exception trap.
type trapped struct {
	value   *v8.Value
	thrown  bool
	message string
}

// call invokes fn through the trap. The returned error is a host failure
// (the trap itself could not run), never a guest exception.
func (h *helpers) call(iso *v8.Isolate, fn *v8.Function, arg *v8.Value, stringify bool) (*trapped, error) {
	if arg == nil {
		arg = v8.Undefined(iso)
	}
	flag, err := v8.NewValue(iso, stringify)
	if err != nil {
		return nil, err
	}
	res, err := h.trap.Call(v8.Undefined(iso), fn, arg, flag)
	if err != nil {
		// termination or out of memory; the trap cannot catch those
		return nil, err
	}
	obj, err := res.AsObject()
	if err != nil {
		return nil, fmt.Errorf("malformed trap result: %w", err)
	}
	ok, err := obj.Get("ok")
	if err != nil {
		return nil, err
	}
	if !ok.Boolean() {
		msg, err := obj.Get("message")
		if err != nil {
			return nil, err
		}
		return &trapped{thrown: true, message: lossyString(msg)}, nil
	}
	val, err := obj.Get("value")
	if err != nil {
		return nil, err
	}
	return &trapped{value: val}, nil
}

// settle runs an async module factory to completion. Pending jobs are
// drained once; a body still waiting after that can never finish, because
// nothing outside the VM will resolve what it awaits.
func (h *helpers) settle(iso *v8.Isolate, factory *v8.Function) (*trapped, error) {
	res, err := h.evaluate.Call(v8.Undefined(iso), factory)
	if err != nil {
		return nil, err
	}
	obj, err := res.AsObject()
	if err != nil {
		return nil, fmt.Errorf("malformed evaluation result: %w", err)
	}
	done, err := obj.Get("done")
	if err != nil {
		return nil, err
	}
	namespace, err := functionProperty(obj, "namespace")
	if err != nil {
		return nil, err
	}

	h.ctx.PerformMicrotaskCheckpoint()

	promise, err := done.AsPromise()
	if err != nil {
		return nil, fmt.Errorf("module body did not return a promise: %w", err)
	}
	switch promise.State() {
	case v8.Fulfilled:
		ns, err := namespace.Call(v8.Undefined(iso))
		if err != nil {
			return nil, err
		}
		return &trapped{value: ns}, nil
	case v8.Rejected:
		msg, err := h.describe.Call(v8.Undefined(iso), promise.Result())
		if err != nil {
			return nil, err
		}
		return &trapped{thrown: true, message: lossyString(msg)}, nil
	default:
		return &trapped{thrown: true, message: "top-level await never settled"}, nil
	}
}

// ownKeys returns the own enumerable string keys of obj in order.
func (h *helpers) ownKeys(iso *v8.Isolate, obj *v8.Value) ([]string, error) {
	res, err := h.keys.Call(v8.Undefined(iso), obj)
	if err != nil {
		return nil, err
	}
	arr, err := res.AsObject()
	if err != nil {
		return nil, err
	}
	length, err := arr.Get("length")
	if err != nil {
		return nil, err
	}
	n := length.Uint32()
	keys := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		k, err := arr.GetIdx(i)
		if err != nil {
			return nil, err
		}
		keys = append(keys, lossyString(k))
	}
	return keys, nil
}

// lossyString converts a VM value to a Go string, replacing any sequence
// that is not valid UTF-8 (such as a lone surrogate) with U+FFFD.
func lossyString(val *v8.Value) string {
	if val == nil {
		return ""
	}
	return strings.ToValidUTF8(val.String(), "\uFFFD")
}
