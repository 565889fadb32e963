package feeds

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

var (
	ErrSyncInProgress = errors.New("feed sync already in progress")
	errNeverSynced    = errors.New("feed has not synced since startup")
)

type Status struct {
	Feed        string     `json:"feed"`
	State       State      `json:"state"`
	LastSuccess *time.Time `json:"lastSuccess,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
}

// Syncer refreshes one feed and remembers the last good copy. A failed
// refresh never clears data that was already loaded.
type Syncer[T any] struct {
	name   string
	fetch  func(context.Context) (T, error)
	cache  Cache
	logger *zap.Logger
	now    func() time.Time

	mu          sync.Mutex
	state       State
	current     Result[T]
	lastSuccess time.Time
	lastErr     error
}

func NewSyncer[T any](name string, fetch func(context.Context) (T, error), cache Cache, logger *zap.Logger) *Syncer[T] {
	return &Syncer[T]{
		name:    name,
		fetch:   fetch,
		cache:   cache,
		logger:  logger.With(zap.String("feed", name)),
		now:     func() time.Time { return time.Now().UTC() },
		state:   StateNotConnected,
		current: NotConnected[T](errNeverSynced),
	}
}

func (s *Syncer[T]) Name() string {
	return s.name
}

// Sync fetches the feed once. The fetch runs to completion even if ctx is
// cancelled; the HTTP client timeout bounds it.
func (s *Syncer[T]) Sync(ctx context.Context) (Result[T], error) {
	s.mu.Lock()
	if s.state == StateSyncing {
		s.mu.Unlock()
		return Result[T]{}, ErrSyncInProgress
	}
	s.state = StateSyncing
	s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	s.logger.Info("feed sync started")
	data, err := s.fetch(ctx)

	var res Result[T]
	if err == nil {
		res = Connected(data, s.now())
		s.remember(ctx, data)
		s.logger.Info("feed sync succeeded")
	} else {
		res = s.fallback(ctx, err)
		s.logger.Warn("feed sync degraded", zap.String("state", string(res.State)), zap.Error(err))
	}
	recordSync(s.name, res.State)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = res.State
	s.lastErr = err
	if res.Usable() {
		s.current = res
	}
	if err == nil {
		s.lastSuccess = res.FetchedAt
	}
	return res, nil
}

func (s *Syncer[T]) remember(ctx context.Context, data T) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("encode feed snapshot", zap.Error(err))
		return
	}
	if err := s.cache.Put(ctx, s.name, payload); err != nil {
		s.logger.Error("store feed snapshot", zap.Error(err))
	}
}

func (s *Syncer[T]) fallback(ctx context.Context, cause error) Result[T] {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current.Usable() {
		return Degraded(current.Data, current.FetchedAt, cause)
	}
	if data, at, ok := s.cached(ctx); ok {
		return Degraded(data, at, cause)
	}
	return NotConnected[T](cause)
}

func (s *Syncer[T]) cached(ctx context.Context) (T, time.Time, bool) {
	var data T
	if s.cache == nil {
		return data, time.Time{}, false
	}
	payload, at, err := s.cache.Get(ctx, s.name)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Error("load feed snapshot", zap.Error(err))
		}
		return data, time.Time{}, false
	}
	if err := json.Unmarshal(payload, &data); err != nil {
		s.logger.Error("decode feed snapshot", zap.Error(err))
		return data, time.Time{}, false
	}
	return data, at, true
}

// Latest returns the freshest data without fetching. Before the first sync
// it falls back to the cached snapshot.
func (s *Syncer[T]) Latest(ctx context.Context) Result[T] {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current.Usable() {
		return current
	}
	if data, at, ok := s.cached(ctx); ok {
		res := Degraded(data, at, errNeverSynced)
		s.mu.Lock()
		if !s.current.Usable() {
			s.current = res
		}
		s.mu.Unlock()
		return res
	}
	return current
}

func (s *Syncer[T]) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{Feed: s.name, State: s.state}
	if !s.lastSuccess.IsZero() {
		at := s.lastSuccess
		st.LastSuccess = &at
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
