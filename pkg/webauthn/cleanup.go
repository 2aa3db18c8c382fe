// Copyright (c) 2025 IBA Hoops
//
// This file is part of courtside.
//
// courtside is licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"context"
	"time"
)

// Janitor periodically removes expired challenges and session tokens.
// Expiry is already enforced on every lookup; the janitor only keeps
// abandoned records from accumulating.
type Janitor struct {
	challenges ChallengeStore
	tokens     TokenStore
}

// NewJanitor creates a janitor over the given stores. Either store may be
// nil, in which case it is skipped.
func NewJanitor(challenges ChallengeStore, tokens TokenStore) *Janitor {
	return &Janitor{
		challenges: challenges,
		tokens:     tokens,
	}
}

// Sweep removes expired records once and returns the number removed.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	removed := 0

	if j.challenges != nil {
		n, err := j.challenges.DeleteExpired(ctx, now)
		if err != nil {
			return removed, WrapError("sweep challenges", err)
		}
		removed += n
	}
	if j.tokens != nil {
		n, err := j.tokens.DeleteExpired(ctx, now)
		if err != nil {
			return removed, WrapError("sweep tokens", err)
		}
		removed += n
	}
	return removed, nil
}

// Start runs Sweep on the given interval until the context is cancelled or
// the returned cancel function is called. Sweep failures are swallowed;
// the next tick retries.
func (j *Janitor) Start(ctx context.Context, interval time.Duration) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = j.Sweep(ctx)
			}
		}
	}()

	return cancel
}
