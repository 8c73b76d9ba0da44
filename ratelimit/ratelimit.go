package ratelimit

import (
	"sync"
	"time"
)

// DripLimiterConfig holds the drip ceilings for rate limiting
type DripLimiterConfig struct {
	RecipientMax    int           // drips allowed per recipient within RecipientWindow
	RecipientWindow time.Duration // sliding window for the per-recipient ceiling
	GlobalMax       int           // drips allowed in total within GlobalWindow
	GlobalWindow    time.Duration // sliding window for the global ceiling
	CleanupInterval time.Duration // how often expired recipient entries are dropped
}

// DefaultConfig returns a default configuration
func DefaultConfig() *DripLimiterConfig {
	return &DripLimiterConfig{
		RecipientMax:    1,
		RecipientWindow: time.Hour,
		GlobalMax:       500,
		GlobalWindow:    time.Hour,
		CleanupInterval: 5 * time.Minute,
	}
}

// window is a single sliding window of grant timestamps. Entries leave the
// window only by time elapsing; a later failed submission never returns quota.
type window struct {
	mu     sync.Mutex
	grants []time.Time
}

// prune drops grants older than cutoff. Caller holds w.mu.
func (w *window) prune(cutoff time.Time) {
	valid := w.grants[:0]
	for _, t := range w.grants {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	w.grants = valid
}

// DripLimiter enforces the per-recipient and global drip ceilings. Each
// recipient has its own window and lock, so acquisition for one recipient is
// never blocked by acquisition for another; the global window is the single
// piece of state both front-ends contend on.
type DripLimiter struct {
	config      *DripLimiterConfig
	mu          sync.RWMutex // guards recipients map shape only
	recipients  map[string]*window
	global      window
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewDripLimiter creates a new limiter with the given configuration
func NewDripLimiter(config *DripLimiterConfig) *DripLimiter {
	if config == nil {
		config = DefaultConfig()
	}

	dl := &DripLimiter{
		config:      config,
		recipients:  make(map[string]*window),
		stopCleanup: make(chan struct{}),
	}

	go dl.cleanupExpiredEntries()

	return dl
}

// TryAcquire grants a drip slot to recipient if neither the per-recipient nor
// the global ceiling is reached. On success both counters are incremented
// immediately and are not refundable. A first-ever recipient always passes the
// per-recipient check; only the global ceiling can reject it.
func (dl *DripLimiter) TryAcquire(recipient string) bool {
	now := time.Now()

	w := dl.recipientWindow(recipient)
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now.Add(-dl.config.RecipientWindow))
	if len(w.grants) >= dl.config.RecipientMax {
		return false
	}

	// The recipient slot is only committed if the global ceiling also
	// admits the drip, so a globally rejected request consumes no quota.
	if !dl.tryAcquireGlobal(now) {
		return false
	}

	w.grants = append(w.grants, now)
	return true
}

func (dl *DripLimiter) tryAcquireGlobal(now time.Time) bool {
	dl.global.mu.Lock()
	defer dl.global.mu.Unlock()

	dl.global.prune(now.Add(-dl.config.GlobalWindow))
	if len(dl.global.grants) >= dl.config.GlobalMax {
		return false
	}
	dl.global.grants = append(dl.global.grants, now)
	return true
}

func (dl *DripLimiter) recipientWindow(recipient string) *window {
	dl.mu.RLock()
	w, exists := dl.recipients[recipient]
	dl.mu.RUnlock()
	if exists {
		return w
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()
	if w, exists = dl.recipients[recipient]; exists {
		return w
	}
	w = &window{}
	dl.recipients[recipient] = w
	return w
}

// Stats returns the live grant counts for a recipient and globally
func (dl *DripLimiter) Stats(recipient string) (recipientCount, globalCount int) {
	now := time.Now()

	w := dl.recipientWindow(recipient)
	w.mu.Lock()
	w.prune(now.Add(-dl.config.RecipientWindow))
	recipientCount = len(w.grants)
	w.mu.Unlock()

	dl.global.mu.Lock()
	dl.global.prune(now.Add(-dl.config.GlobalWindow))
	globalCount = len(dl.global.grants)
	dl.global.mu.Unlock()

	return recipientCount, globalCount
}

// Reset removes all grants for a given recipient
func (dl *DripLimiter) Reset(recipient string) {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	delete(dl.recipients, recipient)
}

// cleanupExpiredEntries periodically removes expired entries to prevent memory leaks
func (dl *DripLimiter) cleanupExpiredEntries() {
	ticker := time.NewTicker(dl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			dl.cleanup()
		case <-dl.stopCleanup:
			return
		}
	}
}

func (dl *DripLimiter) cleanup() {
	cutoff := time.Now().Add(-dl.config.RecipientWindow)

	dl.mu.Lock()
	defer dl.mu.Unlock()

	for recipient, w := range dl.recipients {
		w.mu.Lock()
		w.prune(cutoff)
		empty := len(w.grants) == 0
		w.mu.Unlock()
		if empty {
			delete(dl.recipients, recipient)
		}
	}
}

// Stop stops the cleanup goroutine
func (dl *DripLimiter) Stop() {
	dl.stopOnce.Do(func() {
		close(dl.stopCleanup)
	})
}
