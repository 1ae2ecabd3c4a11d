// Package interaction は高評価・購読などのオン/オフ操作を
// pending -> confirmed | rolled_back の2段階で遷移させる。
package interaction

import (
	"context"
	"errors"
	"fmt"
)

// Phase はトグル操作の段階。
type Phase string

const (
	PhasePending    Phase = "pending"
	PhaseConfirmed  Phase = "confirmed"
	PhaseRolledBack Phase = "rolled_back"
)

// ErrSettled は確定済みのトグルを再度遷移させようとしたことを表す。
var ErrSettled = errors.New("toggle already settled")

// Toggle は1回のオン/オフ操作の状態。
type Toggle struct {
	previous bool
	desired  bool
	phase    Phase
}

// Begin は previous から desired への遷移を pending で開始する。
func Begin(previous, desired bool) *Toggle {
	return &Toggle{previous: previous, desired: desired, phase: PhasePending}
}

// Phase は現在の段階を返す。
func (t *Toggle) Phase() Phase {
	return t.phase
}

// Value は表示すべき値を返す。pending と confirmed では desired、rolled_back では previous。
func (t *Toggle) Value() bool {
	if t.phase == PhaseRolledBack {
		return t.previous
	}
	return t.desired
}

// Changed は値が実際に変わる操作かを返す。
func (t *Toggle) Changed() bool {
	return t.previous != t.desired
}

// Confirm は pending を confirmed に確定する。
func (t *Toggle) Confirm() error {
	if t.phase != PhasePending {
		return fmt.Errorf("%w: %s", ErrSettled, t.phase)
	}
	t.phase = PhaseConfirmed
	return nil
}

// Rollback は pending を rolled_back に確定する。
func (t *Toggle) Rollback() error {
	if t.phase != PhasePending {
		return fmt.Errorf("%w: %s", ErrSettled, t.phase)
	}
	t.phase = PhaseRolledBack
	return nil
}

// AdjustCount は確定した値に合わせて件数を補正する。
// base は previous 時点の件数。
func (t *Toggle) AdjustCount(base int) int {
	if !t.Changed() || t.phase == PhaseRolledBack {
		return base
	}
	if t.desired {
		return base + 1
	}
	if base > 0 {
		return base - 1
	}
	return 0
}

// Apply は commit で永続化を試み、成否に応じてトグルを確定させる。
// 値が変わらない操作では commit を呼ばずに確定する。
// commit が失敗した場合は rolled_back のトグルと commit のエラーを返す。
func Apply(ctx context.Context, previous, desired bool, commit func(ctx context.Context, value bool) error) (*Toggle, error) {
	t := Begin(previous, desired)
	if !t.Changed() {
		_ = t.Confirm()
		return t, nil
	}
	if err := commit(ctx, desired); err != nil {
		_ = t.Rollback()
		return t, err
	}
	_ = t.Confirm()
	return t, nil
}
