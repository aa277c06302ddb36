package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aouyang1/digitalgarden/store"
)

const advanceCheckInterval = time.Second

// AdvanceManager moves the slideshow forward on the configured interval. Manual
// navigation restarts the wait.
type AdvanceManager struct {
	db      *store.Database
	advance func()
	now     func() time.Time

	mu          sync.Mutex
	lastAdvance time.Time
}

func NewAdvanceManager(db *store.Database, advance func()) (*AdvanceManager, error) {
	if db == nil {
		return nil, errors.New("no database provided for advance manager")
	}
	if advance == nil {
		return nil, errors.New("no advance func provided for advance manager")
	}
	return &AdvanceManager{
		db:          db,
		advance:     advance,
		now:         time.Now,
		lastAdvance: time.Now(),
	}, nil
}

// Touch records a manual navigation.
func (a *AdvanceManager) Touch() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastAdvance = a.now()
}

func (a *AdvanceManager) checkAdvance() bool {
	settings, err := a.db.GetAppSettings()
	if err != nil {
		slog.Error("unable to get settings", "error", err)
		return false
	}
	if settings.AdvanceIntervalSeconds <= 0 {
		return false
	}

	interval := time.Duration(settings.AdvanceIntervalSeconds) * time.Second

	a.mu.Lock()
	now := a.now()
	due := now.Sub(a.lastAdvance) >= interval
	if due {
		a.lastAdvance = now
	}
	a.mu.Unlock()

	if due {
		a.advance()
	}
	return due
}

func (a *AdvanceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(advanceCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.checkAdvance()
		}
	}
}
