package inventory

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/go-tangra/go-tangra-license-inventory/internal/apperr"
	"github.com/go-tangra/go-tangra-license-inventory/internal/catalog"
	"github.com/go-tangra/go-tangra-license-inventory/internal/model"
	"github.com/go-tangra/go-tangra-license-inventory/internal/store"
)

// Licenses returns every known license.
func (s *Service) Licenses(ctx context.Context) ([]model.License, error) {
	var out []model.License
	err := s.run(ctx, "license.getAll", func(ctx context.Context, q store.Querier) error {
		var err error
		out, err = catalog.NewLicenseCatalog(q).GetAll(ctx)
		return err
	})
	return out, err
}

// CreateLicense registers a new license name.
func (s *Service) CreateLicense(ctx context.Context, name string) (*model.License, error) {
	var out *model.License
	err := s.run(ctx, "license.create", func(ctx context.Context, q store.Querier) error {
		var err error
		out, err = catalog.NewLicenseCatalog(q).Create(ctx, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("license created", zap.Int64("license_id", out.ID), zap.String("name", out.Name))
	return out, nil
}

// Component returns the component with id.
func (s *Service) Component(ctx context.Context, id int64) (*model.Component, error) {
	var out *model.Component
	err := s.run(ctx, "component.get", func(ctx context.Context, q store.Querier) error {
		var err error
		out, err = catalog.NewComponentCatalog(q).Get(ctx, id)
		return err
	})
	return out, err
}

// Components returns every declared component.
func (s *Service) Components(ctx context.Context) ([]model.Component, error) {
	var out []model.Component
	err := s.run(ctx, "component.getAll", func(ctx context.Context, q store.Querier) error {
		var err error
		out, err = catalog.NewComponentCatalog(q).GetAll(ctx)
		return err
	})
	return out, err
}

// SetComponentLicense rebinds a component that has no attached files yet.
func (s *Service) SetComponentLicense(ctx context.Context, componentID, licenseID int64) (*model.Component, error) {
	var out *model.Component
	err := s.run(ctx, "component.setLicense", func(ctx context.Context, q store.Querier) error {
		var err error
		out, err = catalog.NewComponentCatalog(q).SetLicense(ctx, componentID, licenseID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("component license changed",
		zap.Int64("component_id", out.ID),
		zap.String("license", out.LicenseName))
	return out, nil
}

// InventoriesForFile returns the ids of the inventories fileID is attached
// to, in ascending order. A file covered by several licenses has several.
func (s *Service) InventoriesForFile(ctx context.Context, fileID string) ([]int64, error) {
	const op = "file.inventories"

	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, s.reject(op, apperr.Validation(op, "file_id is required"))
	}

	var out []int64
	err := s.run(ctx, op, func(ctx context.Context, q store.Querier) error {
		var err error
		out, err = catalog.NewFileIndex(q).InventoriesFor(ctx, fileID)
		return err
	})
	return out, err
}
