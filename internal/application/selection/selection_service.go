package selection

import (
	"context"
	"errors"
	"time"

	"github.com/finhr/backend/internal/domain/reference"
	"github.com/finhr/backend/internal/domain/shared"
	"github.com/finhr/backend/internal/infrastructure/cache"
	"github.com/finhr/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned for unknown, expired or foreign sessions
var ErrSessionNotFound = shared.NewDomainError("SESSION_NOT_FOUND", "Selection session not found or expired")

// CatalogSource fetches reference rows. It is satisfied by the catalog
// repository and by its caching decorator.
type CatalogSource interface {
	FetchCatalog(ctx context.Context, filter reference.CatalogFilter) ([]reference.ReferenceRow, error)
}

// Metrics records cleared selections. It is satisfied by telemetry.EditorMetrics.
type Metrics interface {
	RecordSelectionCleared(ctx context.Context, kind string)
}

type noopMetrics struct{}

func (noopMetrics) RecordSelectionCleared(context.Context, string) {}

// SelectionService serves visible-row queries and keeps the cascade
// sessions of open forms.
type SelectionService struct {
	source   CatalogSource
	sessions *cache.InMemoryStore[uuid.UUID, *Session]
	metrics  Metrics
	logger   *zap.Logger
}

// NewSelectionService creates a new SelectionService. Sessions expire after
// sessionTTL without activity.
func NewSelectionService(source CatalogSource, sessionTTL time.Duration, metrics Metrics, logger *zap.Logger) *SelectionService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	sessions := cache.NewInMemoryStore[uuid.UUID, *Session](
		cache.WithTTL(sessionTTL),
		cache.WithSlidingExpiration(),
		cache.WithLogger(logger),
	)
	// A late fetch for an expired session must not apply.
	sessions.OnEvict(func(_ uuid.UUID, sess *Session) { sess.Close() })
	return &SelectionService{
		source:   source,
		sessions: sessions,
		metrics:  metrics,
		logger:   logger,
	}
}

// Visible returns the rows selectable for a kind under a parent
func (s *SelectionService) Visible(ctx context.Context, tenantID uuid.UUID, kindName, parent, policyName string) (*VisibleResponse, error) {
	kind, policy, err := resolveKind(kindName, policyName)
	if err != nil {
		return nil, err
	}
	catalog, err := s.fetch(ctx, tenantID, kind, parent)
	if err != nil {
		return nil, err
	}
	visible, err := reference.ComputeVisible(catalog, parent, policy)
	if err != nil {
		return nil, err
	}
	return &VisibleResponse{
		Kind:   string(kind),
		Parent: parent,
		Policy: policy.String(),
		Rows:   toRowResponses(visible),
	}, nil
}

// Resolve reconciles a posted selection against the current catalog
// without keeping any state.
func (s *SelectionService) Resolve(ctx context.Context, tenantID uuid.UUID, req ResolveRequest) (*ResolveResponse, error) {
	kind, policy, err := resolveKind(req.Kind, req.Policy)
	if err != nil {
		return nil, err
	}
	catalog, err := s.fetch(ctx, tenantID, kind, req.Parent)
	if err != nil {
		return nil, err
	}
	visible, err := reference.ComputeVisible(catalog, req.Parent, policy)
	if err != nil {
		return nil, err
	}

	decision := reference.ReconcileSelection(visible, req.Selection, req.Hydrating, req.Supplied)
	resp := &ResolveResponse{
		Decision:  decision.String(),
		Selection: req.Selection,
		Visible:   toRowResponses(visible),
	}
	if decision == reference.Clear {
		resp.Selection = ""
		resp.Cleared = true
		s.recordCleared(ctx, []Change{{Kind: kind, Previous: req.Selection}})
	}
	return resp, nil
}

// Open creates a session, loads the catalog of every level and, when
// values are given, starts hydration with them. Levels must be listed
// parents first.
func (s *SelectionService) Open(ctx context.Context, tenantID uuid.UUID, req OpenSessionRequest) (*SessionResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "selection", "open",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
		telemetry.WithAttribute("levels", len(req.Levels)),
		telemetry.WithAttribute("hydrating", len(req.Values) > 0),
	)
	defer span.End()

	resp, err := s.open(ctx, tenantID, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrSessionID, resp.ID.String())
	return resp, nil
}

func (s *SelectionService) open(ctx context.Context, tenantID uuid.UUID, req OpenSessionRequest) (*SessionResponse, error) {
	sess := NewSession(tenantID)
	for _, lr := range req.Levels {
		kind, policy, err := resolveKind(lr.Kind, lr.Policy)
		if err != nil {
			return nil, err
		}
		parent := kind.ParentKind()
		if lr.Parent != "" {
			if parent, err = reference.ParseCatalogKind(lr.Parent); err != nil {
				return nil, err
			}
		}
		if err := sess.Link(kind, parent, policy); err != nil {
			return nil, err
		}
	}

	if len(req.Values) > 0 {
		values := make(map[reference.CatalogKind]string, len(req.Values))
		for k, v := range req.Values {
			kind, err := reference.ParseCatalogKind(k)
			if err != nil {
				return nil, err
			}
			values[kind] = v
		}
		if err := sess.Hydrate(values); err != nil {
			return nil, err
		}
	}

	var changes []Change
	for _, kind := range sess.Kinds() {
		c, _, err := s.refresh(ctx, sess, kind)
		if err != nil {
			return nil, err
		}
		changes = append(changes, c...)
	}

	s.sessions.Set(sess.ID(), sess)
	s.recordCleared(ctx, changes)
	s.logger.Debug("selection session opened",
		zap.String("session_id", sess.ID().String()),
		zap.String("tenant_id", tenantID.String()),
		zap.Int("levels", len(req.Levels)),
		zap.Bool("hydrating", sess.IsHydrating()))
	return toSessionResponse(sess, changes), nil
}

// Get returns the state of a session
func (s *SelectionService) Get(ctx context.Context, tenantID, id uuid.UUID) (*SessionResponse, error) {
	sess, err := s.session(tenantID, id)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(sess, nil), nil
}

// Refresh fetches a level's catalog again. When a newer fetch for the same
// level overtook this one the result is dropped and Stale is set.
func (s *SelectionService) Refresh(ctx context.Context, tenantID, id uuid.UUID, req RefreshRequest) (*SessionResponse, error) {
	sess, err := s.session(tenantID, id)
	if err != nil {
		return nil, err
	}
	kind, err := reference.ParseCatalogKind(req.Kind)
	if err != nil {
		return nil, err
	}
	changes, stale, err := s.refresh(ctx, sess, kind)
	if err != nil {
		return nil, err
	}
	s.recordCleared(ctx, changes)
	resp := toSessionResponse(sess, changes)
	resp.Stale = stale
	return resp, nil
}

// Select sets a level's selection; the levels below are reset and reloaded
func (s *SelectionService) Select(ctx context.Context, tenantID, id uuid.UUID, req SelectRequest) (*SessionResponse, error) {
	sess, err := s.session(tenantID, id)
	if err != nil {
		return nil, err
	}
	kind, err := reference.ParseCatalogKind(req.Kind)
	if err != nil {
		return nil, err
	}
	changes, err := sess.Select(kind, req.Value)
	if err != nil {
		return nil, err
	}
	more, err := s.reloadBelow(ctx, sess, kind)
	if err != nil {
		return nil, err
	}
	changes = append(changes, more...)
	s.recordCleared(ctx, changes)
	return toSessionResponse(sess, changes), nil
}

// SetParent sets the outside parent of a level, then reloads it and the levels below
func (s *SelectionService) SetParent(ctx context.Context, tenantID, id uuid.UUID, req SetParentRequest) (*SessionResponse, error) {
	sess, err := s.session(tenantID, id)
	if err != nil {
		return nil, err
	}
	kind, err := reference.ParseCatalogKind(req.Kind)
	if err != nil {
		return nil, err
	}
	changes, err := sess.SetParent(kind, req.Parent)
	if err != nil {
		return nil, err
	}
	more, _, err := s.refresh(ctx, sess, kind)
	if err != nil {
		return nil, err
	}
	changes = append(changes, more...)
	below, err := s.reloadBelow(ctx, sess, kind)
	if err != nil {
		return nil, err
	}
	changes = append(changes, below...)
	s.recordCleared(ctx, changes)
	return toSessionResponse(sess, changes), nil
}

// FinishHydration ends edit-mode loading
func (s *SelectionService) FinishHydration(ctx context.Context, tenantID, id uuid.UUID) (*SessionResponse, error) {
	sess, err := s.session(tenantID, id)
	if err != nil {
		return nil, err
	}
	changes, err := sess.FinishHydration()
	if err != nil {
		return nil, err
	}
	s.recordCleared(ctx, changes)
	return toSessionResponse(sess, changes), nil
}

// Close discards a session
func (s *SelectionService) Close(ctx context.Context, tenantID, id uuid.UUID) error {
	sess, err := s.session(tenantID, id)
	if err != nil {
		return err
	}
	sess.Close()
	s.sessions.Delete(id)
	return nil
}

// Shutdown stops the session registry
func (s *SelectionService) Shutdown() error {
	return s.sessions.Close()
}

func (s *SelectionService) session(tenantID, id uuid.UUID) (*Session, error) {
	sess, ok := s.sessions.Get(id)
	if !ok || sess.TenantID() != tenantID {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *SelectionService) fetch(ctx context.Context, tenantID uuid.UUID, kind reference.CatalogKind, parent string) (*reference.Catalog, error) {
	rows, err := s.source.FetchCatalog(ctx, reference.CatalogFilter{TenantID: tenantID, Kind: kind, ParentKey: parent})
	if err != nil {
		return nil, err
	}
	return reference.NewCatalog(kind, rows), nil
}

func (s *SelectionService) refresh(ctx context.Context, sess *Session, kind reference.CatalogKind) ([]Change, bool, error) {
	ticket, err := sess.BeginFetch(kind)
	if err != nil {
		return nil, false, err
	}
	rows, err := s.source.FetchCatalog(ctx, reference.CatalogFilter{
		TenantID:  sess.TenantID(),
		Kind:      kind,
		ParentKey: ticket.Parent,
	})
	if err != nil {
		return nil, false, err
	}
	changes, err := sess.ApplyCatalog(ticket, rows)
	if errors.Is(err, ErrStaleFetch) {
		s.logger.Debug("stale catalog fetch dropped",
			zap.String("session_id", sess.ID().String()),
			zap.String("kind", string(kind)))
		return nil, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return changes, false, nil
}

func (s *SelectionService) reloadBelow(ctx context.Context, sess *Session, kind reference.CatalogKind) ([]Change, error) {
	var changes []Change
	for _, k := range sess.Below(kind) {
		c, _, err := s.refresh(ctx, sess, k)
		if err != nil {
			return changes, err
		}
		changes = append(changes, c...)
	}
	return changes, nil
}

func (s *SelectionService) recordCleared(ctx context.Context, changes []Change) {
	for _, c := range changes {
		s.metrics.RecordSelectionCleared(ctx, string(c.Kind))
		s.logger.Debug("selection cleared",
			zap.String("kind", string(c.Kind)),
			zap.String("previous", c.Previous))
	}
}

func resolveKind(kindName, policyName string) (reference.CatalogKind, reference.CatalogPolicy, error) {
	kind, err := reference.ParseCatalogKind(kindName)
	if err != nil {
		return "", reference.CatalogPolicy{}, err
	}
	if policyName == "" {
		policy, err := kind.DefaultPolicy()
		return kind, policy, err
	}
	policy, err := reference.ParsePolicy(policyName)
	return kind, policy, err
}
