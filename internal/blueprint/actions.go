/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package blueprint

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/friendsincode/grimnir_rundown/internal/ttimers"
)

// ActionFunc handles one action.
type ActionFunc func(ctx context.Context, ac ActionContext, userData map[string]any) error

// HookFunc runs around a take.
type HookFunc func(ctx context.Context, ac ActionContext) error

// Actions is a Blueprint assembled from functions.
type Actions struct {
	name    string
	version string

	mu       sync.RWMutex
	actions  map[string]ActionFunc
	preTake  HookFunc
	postTake HookFunc
}

// NewActions returns an empty function-table blueprint.
func NewActions(name, version string) *Actions {
	return &Actions{name: name, version: version, actions: make(map[string]ActionFunc)}
}

// Handle registers fn for actionID, replacing any previous handler.
func (a *Actions) Handle(actionID string, fn ActionFunc) *Actions {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions[actionID] = fn
	return a
}

// OnTake sets the take hooks. Either may be nil.
func (a *Actions) OnTake(pre, post HookFunc) *Actions {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.preTake, a.postTake = pre, post
	return a
}

// ActionIDs lists the registered actions.
func (a *Actions) ActionIDs() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]string, 0, len(a.actions))
	for id := range a.actions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (a *Actions) Name() string    { return a.name }
func (a *Actions) Version() string { return a.version }

func (a *Actions) OnPreTake(ctx context.Context, ac ActionContext) error {
	a.mu.RLock()
	fn := a.preTake
	a.mu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, ac)
}

func (a *Actions) OnPostTake(ctx context.Context, ac ActionContext) error {
	a.mu.RLock()
	fn := a.postTake
	a.mu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, ac)
}

func (a *Actions) ExecuteAction(ctx context.Context, ac ActionContext, actionID string, userData map[string]any) error {
	a.mu.RLock()
	fn, ok := a.actions[actionID]
	a.mu.RUnlock()
	if !ok {
		return &UnknownActionError{ActionID: actionID}
	}
	return fn(ctx, ac, userData)
}

// Standard returns the generic actions every studio gets without a
// show-specific blueprint.
func Standard() *Actions {
	return NewActions("standard", "1.0.0").
		Handle("stop_layers", stopLayers).
		Handle("block_take", blockTake).
		Handle("timer_countdown", timerCountdown).
		Handle("timer_pause", timerOp(Timer.Pause)).
		Handle("timer_resume", timerOp(Timer.Resume)).
		Handle("timer_clear", timerOp(Timer.Clear))
}

func stringList(userData map[string]any, key string) ([]string, error) {
	raw, ok := userData[key]
	if !ok {
		return nil, fmt.Errorf("missing %q", key)
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%q must hold strings", key)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%q must be a list", key)
	}
}

// number reads a JSON number, which decodes as float64.
func number(userData map[string]any, key string) (int64, error) {
	switch v := userData[key].(type) {
	case float64:
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case nil:
		return 0, fmt.Errorf("missing %q", key)
	default:
		return 0, fmt.Errorf("%q must be a number", key)
	}
}

func stopLayers(_ context.Context, ac ActionContext, userData map[string]any) error {
	layers, err := stringList(userData, "layers")
	if err != nil {
		return err
	}
	_, err = ac.StopPiecesOnLayers(layers)
	return err
}

func blockTake(_ context.Context, ac ActionContext, userData map[string]any) error {
	ms, err := number(userData, "durationMs")
	if err != nil {
		return err
	}
	until := ac.Now() + ms
	return ac.BlockTakeUntil(&until)
}

func timerCountdown(_ context.Context, ac ActionContext, userData map[string]any) error {
	index, err := number(userData, "index")
	if err != nil {
		return err
	}
	duration, err := number(userData, "durationMs")
	if err != nil {
		return err
	}
	t, err := ac.Timer(int(index))
	if err != nil {
		return err
	}
	stopAtZero, _ := userData["stopAtZero"].(bool)
	return t.StartCountdown(duration, ttimers.Options{StopAtZero: stopAtZero})
}

func timerOp(op func(Timer) error) ActionFunc {
	return func(_ context.Context, ac ActionContext, userData map[string]any) error {
		index, err := number(userData, "index")
		if err != nil {
			return err
		}
		t, err := ac.Timer(int(index))
		if err != nil {
			return err
		}
		return op(t)
	}
}
