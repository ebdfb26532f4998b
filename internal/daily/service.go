package daily

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"auracal/internal/datemath"
	appLog "auracal/internal/log"
	"auracal/internal/model"
)

// Status is the lifecycle state of the daily payload.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

var (
	// ErrNotReady is returned by consumers that need a ready payload.
	ErrNotReady = errors.New("daily: info not ready")
	// ErrRefreshInProgress is returned when a refresh is already running.
	ErrRefreshInProgress = errors.New("daily: refresh already in progress")
)

const DefaultTimeout = 90 * time.Second

// Snapshot is an immutable view of the current daily state. Info and Banner
// are only meaningful when Status is StatusReady; Banner may be nil.
type Snapshot struct {
	Status    Status
	Day       time.Time
	Info      model.DailyInfo
	Banner    []byte
	Err       string
	UpdatedAt time.Time
}

// Ready reports whether the snapshot carries a complete payload.
func (s Snapshot) Ready() bool {
	return s.Status == StatusReady
}

// Options configures a Service.
type Options struct {
	// Location is the display timezone used to decide "today".
	Location *time.Location
	// Timeout bounds each provider call. Zero means DefaultTimeout.
	Timeout time.Duration
	// Cache is optional; nil disables the per-day disk cache.
	Cache *Cache
	// Now is overridable for tests.
	Now func() time.Time
}

// Service runs the boot sequence (fetch, then banner) and keeps the latest
// complete result. Fetch failure skips the banner entirely; banner failure
// only means "no banner".
type Service struct {
	provider Provider
	cache    *Cache
	loc      *time.Location
	timeout  time.Duration
	now      func() time.Time

	refreshing sync.Mutex

	mu   sync.RWMutex
	snap Snapshot
}

func NewService(p Provider, opts Options) *Service {
	s := &Service{
		provider: p,
		cache:    opts.Cache,
		loc:      opts.Location,
		timeout:  opts.Timeout,
		now:      opts.Now,
		snap:     Snapshot{Status: StatusLoading},
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Today returns midnight of the current day in the display timezone.
func (s *Service) Today() time.Time {
	return datemath.Today(s.now(), s.loc)
}

// Snapshot returns the current state.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Service) set(snap Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

// Refresh runs the boot sequence for today. A payload already cached for
// today is reused. While a previous ready payload exists it stays visible
// until the new one is complete; without one, failure moves the service to
// StatusFailed so the UI can offer a retry.
//
// Only one refresh runs at a time; a concurrent call returns
// ErrRefreshInProgress immediately.
func (s *Service) Refresh(ctx context.Context) (Snapshot, error) {
	if !s.refreshing.TryLock() {
		return s.Snapshot(), ErrRefreshInProgress
	}
	defer s.refreshing.Unlock()
	return s.run(ctx, false)
}

// Retry drops today's cached payload and runs the boot sequence again in the
// background. Without a ready payload the status is already StatusLoading
// when Retry returns, so a client polling right after the call sees the new
// attempt rather than the old failure. It returns ErrRefreshInProgress when
// a refresh is already running.
func (s *Service) Retry(ctx context.Context) error {
	if !s.refreshing.TryLock() {
		return ErrRefreshInProgress
	}
	if !s.Snapshot().Ready() {
		s.set(Snapshot{Status: StatusLoading, Day: s.Today()})
	}

	go func() {
		defer s.refreshing.Unlock()
		if _, err := s.run(ctx, true); err != nil {
			appLog.Error("daily retry failed", err)
		}
	}()
	return nil
}

// run executes one boot sequence. The caller holds s.refreshing.
func (s *Service) run(ctx context.Context, force bool) (Snapshot, error) {
	today := s.Today()
	prev := s.Snapshot()

	if s.cache != nil {
		if force {
			if err := s.cache.Invalidate(today); err != nil {
				appLog.Error("daily cache invalidate failed", err)
			}
		} else if info, banner, ok := s.cache.Load(today); ok {
			snap := Snapshot{Status: StatusReady, Day: today, Info: info, Banner: banner, UpdatedAt: s.now()}
			s.set(snap)
			appLog.Info("daily info served from cache", "day", today.Format("2006-01-02"), "banner", banner != nil)
			return snap, nil
		}
	}

	if !prev.Ready() {
		s.set(Snapshot{Status: StatusLoading, Day: today})
	}

	appLog.Info("daily refresh start", "day", today.Format("2006-01-02"), "forced", force)

	info, err := s.fetch(ctx, today)
	if err != nil {
		appLog.Error("daily fetch failed", err, "day", today.Format("2006-01-02"))
		if prev.Ready() {
			// Keep serving the last complete payload.
			return prev, err
		}
		failed := Snapshot{Status: StatusFailed, Day: today, Err: err.Error(), UpdatedAt: s.now()}
		s.set(failed)
		return failed, err
	}

	banner := s.banner(ctx, info)

	if s.cache != nil {
		if err := s.cache.Save(today, info, banner); err != nil {
			appLog.Error("daily cache save failed", err, "day", today.Format("2006-01-02"))
		}
		s.cache.Prune(today, 7)
	}

	snap := Snapshot{Status: StatusReady, Day: today, Info: info, Banner: banner, UpdatedAt: s.now()}
	s.set(snap)
	appLog.Info("daily refresh done", "day", today.Format("2006-01-02"), "banner", banner != nil)
	return snap, nil
}

func (s *Service) fetch(ctx context.Context, today time.Time) (model.DailyInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	info, err := s.provider.Fetch(ctx, today)
	if err != nil {
		return model.DailyInfo{}, err
	}
	if err := info.Validate(); err != nil {
		return model.DailyInfo{}, fmt.Errorf("daily: provider returned %w", err)
	}
	return info, nil
}

// banner never fails: errors are logged and reported as "no banner".
func (s *Service) banner(ctx context.Context, info model.DailyInfo) []byte {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	img, err := s.provider.GenerateBanner(ctx, info)
	if err != nil {
		appLog.Error("banner generation failed", err)
		return nil
	}
	if len(img) == 0 {
		return nil
	}
	return img
}
