package expr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/superflowai/superflow/flow"
)

// JSExpressionUnit evaluates sandboxed javascript. Placeholders inside the
// code are rewritten to plain identifiers (dots become underscores) and their
// resolved values injected into the vm before evaluation. Expression mode
// evaluates the code directly; function mode runs the code and invokes its
// main function.
type JSExpressionUnit struct {
	baseUnit
	FunctionCode   string `json:"functionCode"`
	ExpressionCode string `json:"expressionCode"`
	IsFunctionMode bool   `json:"isFunctionMode"`
}

func (u *JSExpressionUnit) ComputeValue(ctx context.Context, scope *flow.Scope) (any, error) {
	code := u.ExpressionCode
	if u.IsFunctionMode {
		code = u.FunctionCode
	}
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("js expression unit compute value error: js code is empty")
	}
	result, err := u.run(ctx, scope, code)
	if err != nil {
		return nil, fmt.Errorf("js expression unit compute value error: %w", err)
	}
	return result, nil
}

type scriptBinding struct {
	identifier string
	value      any
}

func (u *JSExpressionUnit) run(ctx context.Context, scope *flow.Scope, code string) (any, error) {
	bindings, err := u.resolveBindings(ctx, scope, code)
	if err != nil {
		return nil, err
	}
	for placeholder, binding := range bindings {
		code = strings.ReplaceAll(code, placeholder, binding.identifier)
	}

	limits := scope.Run.Script.WithDefaults()
	vm := goja.New()
	vm.SetMaxCallStackSize(limits.MaxCallDepth)
	for _, binding := range bindings {
		if err := vm.Set(binding.identifier, binding.value); err != nil {
			return nil, err
		}
	}

	timer := time.AfterFunc(limits.Timeout, func() {
		vm.Interrupt("script timeout")
	})
	defer timer.Stop()
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-watchDone:
		}
	}()

	var value goja.Value
	if u.IsFunctionMode {
		if _, err := vm.RunString(code); err != nil {
			return nil, err
		}
		main, ok := goja.AssertFunction(vm.Get("main"))
		if !ok {
			return nil, errors.New("function mode requires a main function")
		}
		value, err = main(goja.Undefined())
	} else {
		value, err = vm.RunString(code)
	}
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, fmt.Errorf("script interrupted: %v", interrupted.Value())
		}
		return nil, err
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}
	return value.Export(), nil
}

// resolveBindings maps each distinct placeholder in the code to a legal
// identifier and its resolved raw value.
func (u *JSExpressionUnit) resolveBindings(ctx context.Context, scope *flow.Scope, code string) (map[string]scriptBinding, error) {
	bindings := make(map[string]scriptBinding)
	for _, m := range placeholderRe.FindAllStringSubmatch(code, -1) {
		placeholder := m[0]
		if _, seen := bindings[placeholder]; seen {
			continue
		}
		content := strings.TrimSpace(m[1])
		value, err := ResolveRawValue(ctx, scope, content)
		if err != nil {
			return nil, err
		}
		bindings[placeholder] = scriptBinding{
			identifier: strings.ReplaceAll(content, ".", "_"),
			value:      value,
		}
	}
	return bindings, nil
}
