// Package locks provides time-bounded mutual-exclusion locks keyed by
// task id, shared between independent execution contexts through the
// key-value store.
package locks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/reelsync/reelsync/internal/metrics"
	"github.com/reelsync/reelsync/internal/store"
)

// Kind classifies what a lock protects.
type Kind string

const (
	KindTaskExecution Kind = "task_execution"
	KindStorageWrite  Kind = "storage_write"
	KindValidation    Kind = "validation"
)

// DefaultTTL is the default lock lifetime. Callers running known long
// executions may pass a longer TTL; it must always exceed the
// execution timeout so a slow run is not preempted by its own lock
// expiring.
const DefaultTTL = 5 * time.Minute

const keyPrefix = "lock:"

// Info is one acquired lock instance.
type Info struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	HolderID   string    `json:"holder_id"`
	Kind       Kind      `json:"kind"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the lock has passed its expiry at the given instant.
func (i *Info) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// Result is the outcome of an acquisition attempt. A denial is a
// normal outcome, not an error.
type Result struct {
	Granted bool
	LockID  string
	Reason  string
}

// Manager acquires, extends, and releases locks for one execution
// context. The underlying store offers no transactional primitive, so
// acquisition is check-then-write: two contexts observing "absent"
// simultaneously can race. That window is accepted; expiry-based
// cleanup bounds the damage of a crashed holder.
type Manager struct {
	kv       store.KV
	holderID string
	now      func() time.Time

	mu   sync.Mutex
	held map[string]string // taskID -> lockID acquired by this context
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock injects a clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithHolderID overrides the generated holder id.
func WithHolderID(id string) Option {
	return func(m *Manager) {
		m.holderID = id
	}
}

// NewManager creates a lock manager with a fresh holder identity.
func NewManager(kv store.KV, opts ...Option) *Manager {
	m := &Manager{
		kv:       kv,
		holderID: uuid.New().String(),
		now:      time.Now,
		held:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// HolderID identifies this execution context.
func (m *Manager) HolderID() string {
	return m.holderID
}

// Acquire attempts to take the lock for taskID. Re-acquiring a lock
// this context already holds is idempotent and returns the existing
// lock id. A lock held by another context yields a denial with a
// human-readable reason including the estimated release time.
func (m *Manager) Acquire(ctx context.Context, taskID string, kind Kind, ttl time.Duration) (Result, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := m.now().UTC()

	existing, err := m.read(ctx, taskID)
	if err != nil {
		return Result{}, fmt.Errorf("reading lock: %w", err)
	}

	if existing != nil {
		if !existing.Expired(now) {
			if existing.HolderID == m.holderID {
				metrics.RecordLockAcquisition("reentered")
				return Result{Granted: true, LockID: existing.ID}, nil
			}
			metrics.RecordLockAcquisition("denied")
			return Result{
				Reason: fmt.Sprintf("task is locked by another context until about %s",
					existing.ExpiresAt.Format(time.RFC3339)),
			}, nil
		}

		// Expired locks are removed before the new write so the write
		// is a compare-and-set against "absent or expired".
		if _, err := m.kv.Delete(ctx, keyPrefix+taskID); err != nil {
			return Result{}, fmt.Errorf("removing expired lock: %w", err)
		}
		log.Debug().
			Str("task_id", taskID).
			Str("stale_holder", existing.HolderID).
			Msg("Removed expired lock during acquire")
	}

	info := &Info{
		ID:         uuid.New().String(),
		TaskID:     taskID,
		HolderID:   m.holderID,
		Kind:       kind,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}

	if err := m.write(ctx, info); err != nil {
		return Result{}, fmt.Errorf("writing lock: %w", err)
	}

	m.mu.Lock()
	m.held[taskID] = info.ID
	m.mu.Unlock()

	metrics.RecordLockAcquisition("granted")
	return Result{Granted: true, LockID: info.ID}, nil
}

// Release removes the lock for taskID if this context holds it.
// Returns false, without error, if the lock is gone or owned elsewhere.
func (m *Manager) Release(ctx context.Context, taskID string) (bool, error) {
	existing, err := m.read(ctx, taskID)
	if err != nil {
		return false, fmt.Errorf("reading lock: %w", err)
	}

	if existing == nil {
		m.forget(taskID)
		return false, nil
	}

	if existing.HolderID != m.holderID {
		return false, nil
	}

	deleted, err := m.kv.Delete(ctx, keyPrefix+taskID)
	if err != nil {
		return false, fmt.Errorf("deleting lock: %w", err)
	}

	m.forget(taskID)
	return deleted, nil
}

// IsLocked reports whether an unexpired lock exists for taskID,
// lazily removing an expired one as a side effect.
func (m *Manager) IsLocked(ctx context.Context, taskID string) (bool, error) {
	existing, err := m.read(ctx, taskID)
	if err != nil {
		return false, fmt.Errorf("reading lock: %w", err)
	}

	if existing == nil {
		return false, nil
	}

	if existing.Expired(m.now().UTC()) {
		if _, err := m.kv.Delete(ctx, keyPrefix+taskID); err != nil {
			return false, fmt.Errorf("removing expired lock: %w", err)
		}
		return false, nil
	}

	return true, nil
}

// Get returns the current lock info for taskID, or nil. Expired locks
// are cleaned up and reported as absent.
func (m *Manager) Get(ctx context.Context, taskID string) (*Info, error) {
	existing, err := m.read(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("reading lock: %w", err)
	}

	if existing == nil {
		return nil, nil
	}

	if existing.Expired(m.now().UTC()) {
		if _, err := m.kv.Delete(ctx, keyPrefix+taskID); err != nil {
			return nil, fmt.Errorf("removing expired lock: %w", err)
		}
		return nil, nil
	}

	return existing, nil
}

// Extend pushes the expiry of a lock this context holds further out.
// Used by long-running executions to keep the lock mid-flight.
func (m *Manager) Extend(ctx context.Context, taskID string, additional time.Duration) (bool, error) {
	if additional <= 0 {
		return false, fmt.Errorf("additional time must be positive")
	}

	existing, err := m.read(ctx, taskID)
	if err != nil {
		return false, fmt.Errorf("reading lock: %w", err)
	}

	if existing == nil || existing.HolderID != m.holderID || existing.Expired(m.now().UTC()) {
		return false, nil
	}

	existing.ExpiresAt = existing.ExpiresAt.Add(additional)
	if err := m.write(ctx, existing); err != nil {
		return false, fmt.Errorf("writing extended lock: %w", err)
	}

	return true, nil
}

// SweepExpired scans all persisted locks and deletes the expired ones.
// Run once at startup; a periodic sweep bounds storage growth but is
// not required for correctness since every read path self-heals.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	values, err := m.kv.ListPrefix(ctx, keyPrefix)
	if err != nil {
		return 0, fmt.Errorf("listing locks: %w", err)
	}

	now := m.now().UTC()
	removed := 0

	for key, value := range values {
		var info Info
		if err := json.Unmarshal([]byte(value), &info); err != nil {
			log.Warn().Str("key", key).Err(err).Msg("Deleting unreadable lock record")
			if _, delErr := m.kv.Delete(ctx, key); delErr != nil {
				return removed, fmt.Errorf("deleting unreadable lock: %w", delErr)
			}
			removed++
			continue
		}

		if info.Expired(now) {
			if _, err := m.kv.Delete(ctx, key); err != nil {
				return removed, fmt.Errorf("deleting expired lock: %w", err)
			}
			removed++
			log.Debug().
				Str("task_id", info.TaskID).
				Str("holder_id", info.HolderID).
				Time("expired_at", info.ExpiresAt).
				Msg("Swept expired lock")
		}
	}

	if removed > 0 {
		metrics.RecordLocksSwept(removed)
	}

	return removed, nil
}

// ReleaseAll best-effort releases every lock this context holds.
// Called on shutdown.
func (m *Manager) ReleaseAll(ctx context.Context) {
	m.mu.Lock()
	taskIDs := make([]string, 0, len(m.held))
	for taskID := range m.held {
		taskIDs = append(taskIDs, taskID)
	}
	m.mu.Unlock()

	for _, taskID := range taskIDs {
		if _, err := m.Release(ctx, taskID); err != nil {
			log.Warn().Str("task_id", taskID).Err(err).Msg("Failed to release lock during shutdown")
		}
	}
}

func (m *Manager) read(ctx context.Context, taskID string) (*Info, error) {
	value, err := m.kv.Get(ctx, keyPrefix+taskID)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var info Info
	if err := json.Unmarshal([]byte(value), &info); err != nil {
		return nil, fmt.Errorf("unmarshaling lock: %w", err)
	}

	return &info, nil
}

func (m *Manager) write(ctx context.Context, info *Info) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshaling lock: %w", err)
	}
	return m.kv.Set(ctx, keyPrefix+info.TaskID, string(data))
}

func (m *Manager) forget(taskID string) {
	m.mu.Lock()
	delete(m.held, taskID)
	m.mu.Unlock()
}
