// Package concurrency guards shared checkouts against overlapping runs inside one process.
package concurrency

import (
	"path/filepath"
	"sync"
)

// Manager hands out non-blocking, per-key exclusive leases.
type Manager struct {
	locks sync.Map // map[string]chan struct{}
}

// NewManager creates a new concurrency manager
func NewManager() *Manager {
	return &Manager{}
}

// CheckoutKey identifies one repository checkout, e.g. "owner/repo@/srv/work".
func CheckoutKey(repo, dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return repo + "@" + dir
}

// TryAcquire takes the lease for key. It returns false when the lease is already held.
func (m *Manager) TryAcquire(key string) bool {
	actual, _ := m.locks.LoadOrStore(key, make(chan struct{}, 1))
	ch := actual.(chan struct{})

	select {
	case ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Held reports whether key is currently leased.
func (m *Manager) Held(key string) bool {
	actual, ok := m.locks.Load(key)
	if !ok {
		return false
	}
	return len(actual.(chan struct{})) == 1
}

// Release returns the lease. Releasing a free key is a no-op.
func (m *Manager) Release(key string) {
	if actual, ok := m.locks.Load(key); ok {
		ch := actual.(chan struct{})
		select {
		case <-ch:
		default:
		}
	}
}
