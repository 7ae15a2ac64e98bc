// Package audit records authentication events. Recording is best-effort: failures are logged
// and never change the outcome of the operation being audited.
package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/metadata"

	"ridehail-identity/internal/audit/domain"
	auditrepo "ridehail-identity/internal/audit/repository"
)

// maxUserAgent caps the stored user-agent header.
const maxUserAgent = 512

// emitTimeout bounds a single asynchronous record.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long shutdown should wait for in-flight records. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// Sink receives audit events.
type Sink interface {
	Record(ctx context.Context, e domain.Event) error
}

// IPExtractor returns the client IP from the request context (e.g. gRPC metadata or peer).
type IPExtractor func(context.Context) string

// RepositorySink persists events through the audit repository.
type RepositorySink struct {
	repo auditrepo.Repository
}

// NewRepositorySink returns a Sink that writes to repo.
func NewRepositorySink(repo auditrepo.Repository) *RepositorySink {
	return &RepositorySink{repo: repo}
}

func (s *RepositorySink) Record(ctx context.Context, e domain.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	return s.repo.Create(ctx, &e)
}

// Fanout delivers each event to every sink and joins their errors.
type Fanout []Sink

func (f Fanout) Record(ctx context.Context, e domain.Event) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Logger stamps events and records them asynchronously. A nil Logger discards events.
type Logger struct {
	sink        Sink
	ipExtractor IPExtractor
	now         func() time.Time
	wg          sync.WaitGroup
}

// NewLogger returns a Logger writing to sink. ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(sink Sink, ipExtractor IPExtractor) *Logger {
	return &Logger{sink: sink, ipExtractor: ipExtractor, now: func() time.Time { return time.Now().UTC() }}
}

// LogEvent fills ID, IP, UserAgent and CreatedAt from the request context and records e in a goroutine.
// The goroutine uses context.Background() with emitTimeout so request cancellation does not abort it.
func (l *Logger) LogEvent(ctx context.Context, e domain.Event) {
	if l == nil || l.sink == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.now()
	}
	if e.IP == "" {
		e.IP = "unknown"
		if l.ipExtractor != nil {
			if ip := l.ipExtractor(ctx); ip != "" {
				e.IP = ip
			}
		}
	}
	if e.UserAgent == "" {
		e.UserAgent = userAgent(ctx)
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := l.sink.Record(emitCtx, e); err != nil {
			log.Warn().Err(err).Str("event_type", string(e.Type)).Msg("audit: failed to record event")
		}
	}()
}

func userAgent(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("user-agent")
	if len(vals) == 0 {
		return ""
	}
	ua := vals[0]
	if len(ua) > maxUserAgent {
		ua = ua[:maxUserAgent]
	}
	return ua
}

// Wait blocks until every in-flight record has finished.
func (l *Logger) Wait() {
	if l == nil {
		return
	}
	l.wg.Wait()
}
