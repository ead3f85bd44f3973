package selection

import (
	"context"

	"github.com/finhr/backend/internal/domain/reference"
	"github.com/finhr/backend/internal/domain/shared"
	"github.com/finhr/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxRowIDLength = 64

// CatalogWriter stores reference rows. Behind the caching decorator a write
// also drops the cached fetches of its kind on every instance.
type CatalogWriter interface {
	Save(ctx context.Context, tenantID uuid.UUID, kind reference.CatalogKind, row reference.ReferenceRow) error
	Delete(ctx context.Context, tenantID uuid.UUID, kind reference.CatalogKind, id string) error
}

// CatalogService maintains the reference rows the selectors read
type CatalogService struct {
	writer CatalogWriter
	logger *zap.Logger
}

func NewCatalogService(writer CatalogWriter, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{writer: writer, logger: logger}
}

// SaveRow creates or replaces the row id of a catalog kind
func (s *CatalogService) SaveRow(ctx context.Context, tenantID uuid.UUID, kindName, id string, req SaveRowRequest) (*RowResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "catalog", "save_row",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
		telemetry.WithAttribute("kind", kindName),
	)
	defer span.End()

	kind, err := parseRowTarget(kindName, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	row := req.ToRow(id)
	if err := s.writer.Save(ctx, tenantID, kind, row); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.logger.Info("reference row saved",
		zap.String("tenant_id", tenantID.String()),
		zap.String("kind", string(kind)),
		zap.String("id", id))
	resp := toRowResponses([]reference.ReferenceRow{row})[0]
	return &resp, nil
}

// DeleteRow removes the row id of a catalog kind
func (s *CatalogService) DeleteRow(ctx context.Context, tenantID uuid.UUID, kindName, id string) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "catalog", "delete_row",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
		telemetry.WithAttribute("kind", kindName),
	)
	defer span.End()

	kind, err := parseRowTarget(kindName, id)
	if err == nil {
		err = s.writer.Delete(ctx, tenantID, kind, id)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	s.logger.Info("reference row deleted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("kind", string(kind)),
		zap.String("id", id))
	return nil
}

func parseRowTarget(kindName, id string) (reference.CatalogKind, error) {
	kind, err := reference.ParseCatalogKind(kindName)
	if err != nil {
		return "", err
	}
	if id == "" || len(id) > maxRowIDLength {
		return "", shared.NewDomainError("INVALID_INPUT", "Reference row id must be 1 to 64 characters")
	}
	return kind, nil
}
