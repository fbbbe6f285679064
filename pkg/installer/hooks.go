// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"fmt"
	"regexp"

	"github.com/pakt/pakt/internal/process"
	"github.com/pakt/pakt/pkg/manifest"
)

// Package events, dispatched around every executed operation.
const (
	PrePackageInstall  EventName = "pre-package-install"
	PostPackageInstall EventName = "post-package-install"
	PrePackageUpdate   EventName = "pre-package-update"
	PostPackageUpdate  EventName = "post-package-update"
	PrePackageRemove   EventName = "pre-package-remove"
	PostPackageRemove  EventName = "post-package-remove"
)

type (
	// EventName identifies an installer lifecycle event.
	EventName string

	// Event is passed to a Dispatcher.
	Event struct {
		Name      EventName
		Operation Operation
		RunID     string
		Dir       string
	}

	// Dispatcher receives lifecycle events. An error from a pre-* event
	// aborts the operation; errors from post-* events fail it after the
	// fact.
	Dispatcher interface {
		Dispatch(ctx context.Context, ev Event) error
	}

	// DispatcherFunc adapts a function to Dispatcher.
	DispatcherFunc func(ctx context.Context, ev Event) error

	// ScriptHooks runs manifest scripts through a shell. Each command gets
	// the event name, package name and normalized version as $1, $2, $3.
	ScriptHooks struct {
		runner  process.Runner
		scripts map[EventName][]compiledScript
	}

	compiledScript struct {
		command string
		matcher *regexp.Regexp // nil matches every package
	}
)

// Dispatch implements Dispatcher.
func (f DispatcherFunc) Dispatch(ctx context.Context, ev Event) error { return f(ctx, ev) }

func preEvent(k OperationKind) EventName {
	switch k {
	case OpUpdate:
		return PrePackageUpdate
	case OpRemove:
		return PrePackageRemove
	default:
		return PrePackageInstall
	}
}

func postEvent(k OperationKind) EventName {
	switch k {
	case OpUpdate:
		return PostPackageUpdate
	case OpRemove:
		return PostPackageRemove
	default:
		return PostPackageInstall
	}
}

// NewScriptHooks compiles the scripts of a manifest. Matchers must be valid
// regular expressions.
func NewScriptHooks(runner process.Runner, scripts map[string][]manifest.Script) (*ScriptHooks, error) {
	h := &ScriptHooks{runner: runner, scripts: make(map[EventName][]compiledScript, len(scripts))}
	for event, defs := range scripts {
		for _, def := range defs {
			cs := compiledScript{command: def.Command}
			if def.Matcher != "" {
				re, err := regexp.Compile(def.Matcher)
				if err != nil {
					return nil, fmt.Errorf("invalid script matcher %q for event %s: %w", def.Matcher, event, err)
				}
				cs.matcher = re
			}
			h.scripts[EventName(event)] = append(h.scripts[EventName(event)], cs)
		}
	}
	return h, nil
}

// Dispatch implements Dispatcher. Matching scripts run in declaration
// order; the first non-zero exit stops the event.
func (h *ScriptHooks) Dispatch(ctx context.Context, ev Event) error {
	pkg := ev.Operation.Package()
	for _, s := range h.scripts[ev.Name] {
		if s.matcher != nil && !s.matcher.MatchString(pkg.Name) {
			continue
		}
		_, err := h.runner.Run(ctx, ev.Dir, "sh", "-c", s.command, "pakt-script", string(ev.Name), pkg.Name, pkg.Version.Normalized)
		if err != nil {
			return fmt.Errorf("%w: %s script %q: %w", ErrHookBlocked, ev.Name, s.command, err)
		}
	}
	return nil
}
