// Package inventory orchestrates the lifecycle of inventory records: it
// resolves licenses and components through the catalogs and maintains the
// file index, running each operation as a single transaction.
package inventory

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/go-tangra/go-tangra-license-inventory/internal/apperr"
	"github.com/go-tangra/go-tangra-license-inventory/internal/catalog"
	"github.com/go-tangra/go-tangra-license-inventory/internal/metrics"
	"github.com/go-tangra/go-tangra-license-inventory/internal/model"
	"github.com/go-tangra/go-tangra-license-inventory/internal/store"
)

// Service is the only writer of inventory records.
type Service struct {
	store   *store.Store
	logger  *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService returns a Service backed by st.
func NewService(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		logger: zap.NewNop(),
		tracer: otel.Tracer("github.com/go-tangra/go-tangra-license-inventory/internal/inventory"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetAll returns every inventory matching the non-empty fields of f.
func (s *Service) GetAll(ctx context.Context, f model.InventoryFilter) ([]model.Inventory, error) {
	var out []model.Inventory
	err := s.run(ctx, "inventory.getAll", func(ctx context.Context, q store.Querier) error {
		var err error
		out, err = list(ctx, q, f)
		return err
	})
	return out, err
}

// Get returns the single inventory selected by f. It fails with NotFound
// when nothing matches and with Conflict when f is ambiguous.
func (s *Service) Get(ctx context.Context, f model.InventoryFilter) (*model.Inventory, error) {
	var out *model.Inventory
	err := s.run(ctx, "inventory.get", func(ctx context.Context, q store.Querier) error {
		var err error
		out, err = getOne(ctx, q, f)
		return err
	})
	return out, err
}

// Create declares a new inventory. The license is resolved by id, or by
// name with on-demand creation; the component is found or created; the new
// inventory starts with no files.
func (s *Service) Create(ctx context.Context, spec model.InventorySpec) (*model.Inventory, error) {
	spec.Normalize()
	if err := spec.Validate(); err != nil {
		return nil, s.reject("inventory.create", err)
	}

	var out *model.Inventory
	err := s.run(ctx, "inventory.create", func(ctx context.Context, q store.Querier) error {
		licenseID, err := resolveLicense(ctx, q, spec)
		if err != nil {
			return err
		}

		comp, err := catalog.NewComponentCatalog(q).GetOrCreate(ctx, spec.ComponentSpec(licenseID))
		if err != nil {
			return err
		}

		createdAt := s.now().Truncate(time.Second)
		id, err := insert(ctx, q, comp.ID, createdAt)
		if err != nil {
			return err
		}

		out = &model.Inventory{
			ID:          id,
			ComponentID: comp.ID,
			Component:   *comp,
			License:     model.License{ID: comp.LicenseID, Name: comp.LicenseName},
			Files:       []string{},
			CreatedAt:   createdAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("inventory created",
		zap.Int64("inventory_id", out.ID),
		zap.String("component", out.Component.Name+"@"+out.Component.Version),
		zap.String("license", out.License.Name))
	return out, nil
}

func resolveLicense(ctx context.Context, q store.Querier, spec model.InventorySpec) (int64, error) {
	licenses := catalog.NewLicenseCatalog(q)

	if spec.LicenseID != 0 {
		ok, err := licenses.Exists(ctx, spec.LicenseID)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, apperr.InvalidReference("inventory.Create", "license %d does not exist", spec.LicenseID)
		}
		return spec.LicenseID, nil
	}

	l, err := licenses.GetOrCreateByName(ctx, spec.LicenseName)
	if err != nil {
		return 0, err
	}
	return l.ID, nil
}

// AttachFile adds fileID to the inventory and reports whether it was newly
// attached.
func (s *Service) AttachFile(ctx context.Context, inventoryID int64, fileID string) (bool, error) {
	return s.mutateFile(ctx, "inventory.attachFile", inventoryID, fileID, (*catalog.FileIndex).Attach)
}

// DetachFile removes fileID from the inventory and reports whether it was
// attached. Detaching an absent file is not an error.
func (s *Service) DetachFile(ctx context.Context, inventoryID int64, fileID string) (bool, error) {
	return s.mutateFile(ctx, "inventory.detachFile", inventoryID, fileID, (*catalog.FileIndex).Detach)
}

type fileMutation func(x *catalog.FileIndex, ctx context.Context, inventoryID int64, fileID string) (bool, error)

func (s *Service) mutateFile(ctx context.Context, op string, inventoryID int64, fileID string, mutate fileMutation) (bool, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return false, s.reject(op, apperr.Validation(op, "file_id is required"))
	}

	var changed bool
	err := s.run(ctx, op, func(ctx context.Context, q store.Querier) error {
		ok, err := exists(ctx, q, inventoryID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound(op, "inventory %d not found", inventoryID)
		}

		changed, err = mutate(catalog.NewFileIndex(q), ctx, inventoryID, fileID)
		return err
	})
	if err != nil {
		return false, err
	}

	if changed {
		direction := "attach"
		if op == "inventory.detachFile" {
			direction = "detach"
		}
		s.metrics.FileAssociation(direction)
	}
	s.logger.Debug("file association",
		zap.String("op", op),
		zap.Int64("inventory_id", inventoryID),
		zap.String("file_id", fileID),
		zap.Bool("changed", changed))
	return changed, nil
}

// Delete removes the inventory selected by f together with all of its file
// associations. It returns false, not an error, when nothing matched.
func (s *Service) Delete(ctx context.Context, f model.InventoryFilter) (bool, error) {
	var (
		deleted bool
		target  int64
		files   int64
	)
	err := s.run(ctx, "inventory.delete", func(ctx context.Context, q store.Querier) error {
		inv, err := getOne(ctx, q, f)
		if apperr.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		target = inv.ID

		files, err = catalog.NewFileIndex(q).RemoveAllFor(ctx, inv.ID)
		if err != nil {
			return err
		}
		deleted, err = remove(ctx, q, inv.ID)
		return err
	})
	if err != nil {
		return false, err
	}

	if deleted {
		s.logger.Info("inventory deleted", zap.Int64("inventory_id", target), zap.Int64("files", files))
	}
	return deleted, nil
}

// Progress reports how many detected files are covered by inventories or
// explicitly ignored.
func (s *Service) Progress(ctx context.Context, detected, ignored int) (*model.Progress, error) {
	if detected < 0 || ignored < 0 {
		return nil, s.reject("inventory.progress",
			apperr.Validation("inventory.progress", "file counts must not be negative"))
	}

	p := &model.Progress{Detected: detected, Ignored: ignored}
	err := s.run(ctx, "inventory.progress", func(ctx context.Context, q store.Querier) error {
		var err error
		p.Identified, err = catalog.NewFileIndex(q).CountIdentified(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if detected > 0 {
		p.Percentage = (p.Identified + p.Ignored) * 100 / detected
		if p.Percentage > 100 {
			p.Percentage = 100
		}
	}
	return p, nil
}

// run executes fn in one transaction, with a span, a metric sample and a
// debug log line on failure.
func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context, q store.Querier) error) error {
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("inventory.operation", op)))
	defer span.End()

	start := time.Now()
	err := s.store.InTx(ctx, func(q store.Querier) error {
		return fn(ctx, q)
	})
	err = apperr.Storage(op, err)
	s.metrics.Observe(op, err, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.KindOf(err).String())
		s.logger.Debug("operation failed", zap.String("op", op), zap.Error(err))
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// reject records a request refused before any transaction was opened.
func (s *Service) reject(op string, err error) error {
	s.metrics.Observe(op, err, 0)
	s.logger.Debug("request rejected", zap.String("op", op), zap.Error(err))
	return err
}
