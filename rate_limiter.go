package main

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Limiter throttles issuance and validation attempts per key. Throttling is
// best-effort: counters may be lost on restart without harming correctness,
// since the attempt budget on the code row bounds brute force on its own.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type window struct {
	count   int
	resetAt time.Time
}

// sweep the window map for expired entries once per this many calls, so
// attacker-controlled keys (per-IP ones in particular) cannot grow it
// without bound
const limiterSweepEvery = 1024

// WindowLimiter keeps fixed per-key windows in process memory.
type WindowLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	calls   int
	now     func() time.Time
}

func NewWindowLimiter() *WindowLimiter {
	return &WindowLimiter{windows: make(map[string]*window), now: time.Now}
}

func (l *WindowLimiter) Allow(ctx context.Context, key string, limit int, windowSize time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.calls++
	if l.calls%limiterSweepEvery == 0 {
		for k, w := range l.windows {
			if !now.Before(w.resetAt) {
				delete(l.windows, k)
			}
		}
	}

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(windowSize)}
		l.windows[key] = w
	}
	w.count++
	return w.count <= limit, nil
}

// RedisLimiter counts per-key attempts with INCR and lets the key expire at
// the window boundary. On Redis errors it fails open: a throttling outage
// must not take the verification flow down with it.
type RedisLimiter struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisLimiter(client *redis.Client, logger *zap.Logger) *RedisLimiter {
	return &RedisLimiter{client: client, logger: logger}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, windowSize time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, windowSize)
		return nil
	})
	if err != nil {
		l.logger.Warn("rate limit check failed, allowing request",
			zap.String("key", key), zap.Error(err))
		return true, nil
	}
	return incr.Val() <= int64(limit), nil
}

const (
	EventRateLimited       = "rate_limited"
	EventCodeMismatch      = "code_mismatch"
	EventAttemptsExhausted = "attempts_exhausted"
)

type SecurityEvent struct {
	ID     uuid.UUID `json:"id"`
	Kind   string    `json:"kind"`
	Key    string    `json:"key"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// SecurityLog is a fixed-capacity ring buffer of security-relevant events,
// queryable from the operator status endpoint. Oldest entries are
// overwritten once the buffer is full.
type SecurityLog struct {
	mu     sync.Mutex
	events []SecurityEvent
	next   int
	filled bool
}

func NewSecurityLog(capacity int) *SecurityLog {
	if capacity <= 0 {
		capacity = 256
	}
	return &SecurityLog{events: make([]SecurityEvent, capacity)}
}

func (s *SecurityLog) Record(kind, key, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[s.next] = SecurityEvent{
		ID:     uuid.New(),
		Kind:   kind,
		Key:    key,
		Detail: detail,
		At:     time.Now(),
	}
	s.next++
	if s.next == len(s.events) {
		s.next = 0
		s.filled = true
	}
}

// Events returns the recorded events, newest first.
func (s *SecurityLog) Events() []SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.next
	if s.filled {
		size = len(s.events)
	}
	out := make([]SecurityEvent, 0, size)
	for i := 1; i <= size; i++ {
		idx := s.next - i
		if idx < 0 {
			idx += len(s.events)
		}
		out = append(out, s.events[idx])
	}
	return out
}
