package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Metric names
const (
	MetricDocumentSaved      = "finhr.document.saved"
	MetricSaveBlocked        = "finhr.document.save_blocked"
	MetricCodeAllocated      = "finhr.sequence.allocated"
	MetricAllocatorConflicts = "finhr.sequence.conflicts"
	MetricSelectionCleared   = "finhr.selection.cleared"
)

// EditorMetrics records document, allocator and selection activity.
// The application services depend on it through small interfaces.
type EditorMetrics struct {
	documentSaved      metric.Int64Counter
	saveBlocked        metric.Int64Counter
	codeAllocated      metric.Int64Counter
	allocatorConflicts metric.Int64Counter
	selectionCleared   metric.Int64Counter
	logger             *zap.Logger
}

func NewEditorMetrics(meter metric.Meter, logger *zap.Logger) (*EditorMetrics, error) {
	if meter == nil {
		return nil, errors.New("NewEditorMetrics: meter cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &EditorMetrics{logger: logger}
	for _, c := range []struct {
		dst              *metric.Int64Counter
		name, desc, unit string
	}{
		{&m.documentSaved, MetricDocumentSaved, "Documents saved after reconciliation", "{document}"},
		{&m.saveBlocked, MetricSaveBlocked, "Saves refused by reconciliation", "{attempt}"},
		{&m.codeAllocated, MetricCodeAllocated, "Codes handed out by the sequence allocator", "{code}"},
		{&m.allocatorConflicts, MetricAllocatorConflicts, "Allocations that lost a compare-and-swap race", "{conflict}"},
		{&m.selectionCleared, MetricSelectionCleared, "Dependent selections cleared by a cascade", "{selection}"},
	} {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", c.name, err)
		}
		*c.dst = counter
	}
	return m, nil
}

func inc(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *EditorMetrics) RecordDocumentSaved(ctx context.Context, tenantID uuid.UUID) {
	inc(ctx, m.documentSaved, AttrTenantID.String(tenantID.String()))
}

// RecordSaveBlocked counts a save refused for reason
func (m *EditorMetrics) RecordSaveBlocked(ctx context.Context, tenantID uuid.UUID, reason string) {
	inc(ctx, m.saveBlocked, AttrTenantID.String(tenantID.String()), AttrReason.String(reason))
}

func (m *EditorMetrics) RecordCodeAllocated(ctx context.Context, tenantID uuid.UUID, scope string) {
	inc(ctx, m.codeAllocated, AttrTenantID.String(tenantID.String()), AttrScope.String(scope))
}

// RecordAllocatorConflict counts a lost compare-and-swap
func (m *EditorMetrics) RecordAllocatorConflict(ctx context.Context, tenantID uuid.UUID, scope string) {
	inc(ctx, m.allocatorConflicts, AttrTenantID.String(tenantID.String()), AttrScope.String(scope))
	m.logger.Debug("allocator conflict", zap.String("scope", scope))
}

// RecordSelectionCleared counts a selection reset by its parent
func (m *EditorMetrics) RecordSelectionCleared(ctx context.Context, kind string) {
	inc(ctx, m.selectionCleared, AttrKind.String(kind))
}
