package auth

import (
	"context"
	"errors"
	"time"

	"github.com/silstore/storefront/core/logger"
)

const (
	// renewalLead is how long before expiry a renewal should run.
	renewalLead = time.Minute
	// renewalMin is the shortest delay before a scheduled renewal.
	renewalMin = 30 * time.Second
	// renewalMax caps the wait for long-lived credentials.
	renewalMax = 15 * time.Minute
	// retryDelay is the short reschedule after a transient refresh failure.
	retryDelay = 30 * time.Second
	// renewTimeout bounds the background refresh call.
	renewTimeout = 30 * time.Second
)

// renewalDelay computes when to renew a credential with the given remaining
// lifetime: a minute before expiry, clamped to [renewalMin, renewalMax].
// Callers must check remaining > 0 first; an expired credential means
// immediate logout, not a timer.
func renewalDelay(remaining time.Duration) time.Duration {
	delay := remaining - renewalLead
	if delay < renewalMin {
		return renewalMin
	}
	if delay > renewalMax {
		return renewalMax
	}
	return delay
}

// scheduleLocked arms the renewal timer. Any pending timer is cancelled
// first: the renewal timer is the only autonomously-scheduled activity and
// there is never more than one. Caller holds m.mu.
func (m *Manager) scheduleLocked(delay time.Duration) {
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(delay, m.renew)
	m.log.Debug("credential renewal scheduled",
		logger.Component("auth"), logger.Duration(delay))
}

// cancelTimerLocked stops the pending renewal, if any. Caller holds m.mu.
func (m *Manager) cancelTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// renew is the timer callback. A successful refresh reschedules from the new
// bundle; a transient failure retries shortly without touching the session;
// certain expiry has already forced a logout inside Refresh.
func (m *Manager) renew() {
	ctx, cancel := context.WithTimeout(context.Background(), renewTimeout)
	defer cancel()

	err := m.Refresh(ctx)
	if err == nil || errors.Is(err, ErrCredentialExpired) {
		return
	}

	m.log.Warn("credential renewal failed, retrying",
		logger.Component("auth"), logger.Error(err), logger.Duration(retryDelay))

	m.mu.Lock()
	if m.session.Authenticated {
		m.scheduleLocked(retryDelay)
	}
	m.mu.Unlock()
}
