package sequence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/finhr/backend/internal/domain/sequence"
	"github.com/finhr/backend/internal/domain/shared"
	"github.com/finhr/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Metrics records allocator activity. It is satisfied by telemetry.EditorMetrics.
type Metrics interface {
	RecordCodeAllocated(ctx context.Context, tenantID uuid.UUID, scope string)
	RecordAllocatorConflict(ctx context.Context, tenantID uuid.UUID, scope string)
}

type noopMetrics struct{}

func (noopMetrics) RecordCodeAllocated(context.Context, uuid.UUID, string)     {}
func (noopMetrics) RecordAllocatorConflict(context.Context, uuid.UUID, string) {}

// Config holds allocation settings
type Config struct {
	MaxRetries   int
	DefaultWidth int
}

// CodeService allocates sequential codes over a shared stored counter.
// Concurrent callers are serialized by the store's compare-and-swap:
// a lost race is detected and retried with a fresh read.
type CodeService struct {
	repo    sequence.Repository
	config  Config
	metrics Metrics
	logger  *zap.Logger
}

// NewCodeService creates a new CodeService
func NewCodeService(repo sequence.Repository, cfg Config, metrics Metrics, logger *zap.Logger) *CodeService {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.DefaultWidth <= 0 {
		cfg.DefaultWidth = 4
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CodeService{repo: repo, config: cfg, metrics: metrics, logger: logger}
}

// Next allocates the next code of a scope. Unknown scopes start at zero with
// an empty prefix and the default width.
func (s *CodeService) Next(ctx context.Context, tenantID uuid.UUID, scope sequence.Scope) (*CodeResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sequence", "next",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrScope, string(scope)),
	)
	defer span.End()

	resp, err := s.next(ctx, tenantID, scope)
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return resp, err
}

func (s *CodeService) next(ctx context.Context, tenantID uuid.UUID, scope sequence.Scope) (*CodeResponse, error) {
	span := trace.SpanFromContext(ctx)
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		state, err := s.fetchOrInit(ctx, tenantID, scope)
		if err != nil {
			return nil, err
		}

		code, next, err := sequence.Next(state)
		if err != nil {
			return nil, err
		}

		err = s.repo.CompareAndSwap(ctx, tenantID, scope, state, next)
		if err == nil {
			s.metrics.RecordCodeAllocated(ctx, tenantID, string(scope))
			s.logger.Debug("code allocated",
				zap.String("tenant_id", tenantID.String()),
				zap.String("scope", string(scope)),
				zap.String("code", code),
			)
			return &CodeResponse{Scope: string(scope), Code: code, Counter: next.Counter}, nil
		}
		if !errors.Is(err, sequence.ErrAllocatorConflict) {
			return nil, err
		}

		s.metrics.RecordAllocatorConflict(ctx, tenantID, string(scope))
		telemetry.AddEvent(span, "allocator_conflict", "attempt", attempt+1)
		s.logger.Warn("allocator conflict",
			zap.String("tenant_id", tenantID.String()),
			zap.String("scope", string(scope)),
			zap.Int("attempt", attempt+1),
		)
		if attempt >= s.config.MaxRetries {
			return nil, err
		}
	}
}

// Allocate returns the next code of a scope
func (s *CodeService) Allocate(ctx context.Context, tenantID uuid.UUID, scope sequence.Scope) (string, error) {
	resp, err := s.Next(ctx, tenantID, scope)
	if err != nil {
		return "", err
	}
	return resp.Code, nil
}

// Peek returns the code Next would produce without advancing the counter
func (s *CodeService) Peek(ctx context.Context, tenantID uuid.UUID, scope sequence.Scope) (*CodeResponse, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	state, err := s.repo.Fetch(ctx, tenantID, scope)
	if errors.Is(err, shared.ErrNotFound) {
		state = s.initialState()
	} else if err != nil {
		return nil, err
	}
	code, next, err := sequence.Next(state)
	if err != nil {
		return nil, err
	}
	return &CodeResponse{Scope: string(scope), Code: code, Counter: next.Counter}, nil
}

// Configure creates a scope or changes its prefix and width. The counter can
// be raised (e.g. when importing existing codes) but never lowered.
func (s *CodeService) Configure(ctx context.Context, tenantID uuid.UUID, scope sequence.Scope, req ConfigureRequest) (*StateResponse, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		current, err := s.repo.Fetch(ctx, tenantID, scope)
		if errors.Is(err, shared.ErrNotFound) {
			state := s.initialState()
			applyConfigure(&state, req)
			if err := state.Validate(); err != nil {
				return nil, err
			}
			if err := s.repo.Create(ctx, tenantID, scope, state); err != nil {
				if errors.Is(err, shared.ErrAlreadyExists) && attempt < s.config.MaxRetries {
					continue
				}
				return nil, err
			}
			return toStateResponse(scope, state), nil
		}
		if err != nil {
			return nil, err
		}

		next := current
		applyConfigure(&next, req)
		if next.Counter < current.Counter {
			return nil, shared.NewDomainError("INVALID_COUNTER",
				fmt.Sprintf("Counter cannot move backwards (current %d, requested %d)", current.Counter, next.Counter))
		}
		if err := next.Validate(); err != nil {
			return nil, err
		}

		err = s.repo.CompareAndSwap(ctx, tenantID, scope, current, next)
		if err == nil {
			s.logger.Info("sequence configured",
				zap.String("tenant_id", tenantID.String()),
				zap.String("scope", string(scope)),
				zap.String("prefix", next.Prefix),
				zap.Int("width", next.Width),
			)
			return toStateResponse(scope, next), nil
		}
		if !errors.Is(err, sequence.ErrAllocatorConflict) || attempt >= s.config.MaxRetries {
			return nil, err
		}
	}
}

// fetchOrInit reads the state of a scope, creating it on first use
func (s *CodeService) fetchOrInit(ctx context.Context, tenantID uuid.UUID, scope sequence.Scope) (sequence.State, error) {
	state, err := s.repo.Fetch(ctx, tenantID, scope)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return sequence.State{}, err
	}

	state = s.initialState()
	if err := s.repo.Create(ctx, tenantID, scope, state); err != nil {
		if !errors.Is(err, shared.ErrAlreadyExists) {
			return sequence.State{}, err
		}
		// Created concurrently; read the winner's state
		return s.repo.Fetch(ctx, tenantID, scope)
	}
	return state, nil
}

func (s *CodeService) initialState() sequence.State {
	return sequence.State{Width: s.config.DefaultWidth}
}

func applyConfigure(state *sequence.State, req ConfigureRequest) {
	if req.Prefix != nil {
		state.Prefix = strings.TrimSpace(*req.Prefix)
	}
	if req.Width != nil {
		state.Width = *req.Width
	}
	if req.Counter != nil {
		state.Counter = *req.Counter
	}
}
