package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-tangra/go-tangra-license-inventory/internal/apperr"
	"github.com/go-tangra/go-tangra-license-inventory/internal/model"
	"github.com/go-tangra/go-tangra-license-inventory/internal/store"
)

const componentColumns = `c.id, c.name, c.version, c.purl, c.url, c.license_id, l.name`

const componentFrom = ` FROM components c JOIN licenses l ON l.id = c.license_id`

// ComponentCatalog provides access to Component rows.
type ComponentCatalog struct {
	q        store.Querier
	licenses *LicenseCatalog
}

// NewComponentCatalog returns a ComponentCatalog bound to q.
func NewComponentCatalog(q store.Querier) *ComponentCatalog {
	return &ComponentCatalog{q: q, licenses: NewLicenseCatalog(q)}
}

// GetOrCreate returns the component identified by (Name, Version, Purl),
// creating it when absent. An existing component is never rebound to a
// different license: a mismatching LicenseID is reported as a conflict.
func (c *ComponentCatalog) GetOrCreate(ctx context.Context, spec model.ComponentSpec) (*model.Component, error) {
	const op = "component.GetOrCreate"

	if spec.Name == "" || spec.Version == "" || spec.Purl == "" || spec.URL == "" {
		return nil, apperr.Validation(op, "name, version, purl and url are required")
	}

	ok, err := c.licenses.Exists(ctx, spec.LicenseID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.InvalidReference(op, "license %d does not exist", spec.LicenseID)
	}

	_, err = c.q.ExecContext(ctx,
		`INSERT INTO components (name, version, purl, url, license_id) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name, version, purl) DO NOTHING`,
		spec.Name, spec.Version, spec.Purl, spec.URL, spec.LicenseID)
	if err != nil {
		return nil, apperr.Storage(op, fmt.Errorf("insert component: %w", err))
	}

	comp, err := c.getByIdentity(ctx, spec.Name, spec.Version, spec.Purl)
	if err != nil {
		return nil, err
	}
	if comp.LicenseID != spec.LicenseID {
		return nil, apperr.Conflict(op, "component %s@%s is declared under license %q (id %d), not id %d",
			comp.Name, comp.Version, comp.LicenseName, comp.LicenseID, spec.LicenseID)
	}
	return comp, nil
}

// Get returns the component with id.
func (c *ComponentCatalog) Get(ctx context.Context, id int64) (*model.Component, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+componentColumns+componentFrom+` WHERE c.id = ?`, id)
	comp, err := scanComponent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("component.Get", "component %d not found", id)
	}
	if err != nil {
		return nil, apperr.Storage("component.Get", fmt.Errorf("get component: %w", err))
	}
	return comp, nil
}

// GetAll returns every component ordered by name and version.
func (c *ComponentCatalog) GetAll(ctx context.Context) ([]model.Component, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT `+componentColumns+componentFrom+` ORDER BY c.name, c.version`)
	if err != nil {
		return nil, apperr.Storage("component.GetAll", fmt.Errorf("list components: %w", err))
	}
	defer rows.Close()

	components := []model.Component{}
	for rows.Next() {
		comp, err := scanComponent(rows)
		if err != nil {
			return nil, apperr.Storage("component.GetAll", fmt.Errorf("scan component: %w", err))
		}
		components = append(components, *comp)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("component.GetAll", err)
	}
	return components, nil
}

// SetLicense rebinds a component to another license. A component becomes
// read-only once any of its inventories has a file attached.
func (c *ComponentCatalog) SetLicense(ctx context.Context, id, licenseID int64) (*model.Component, error) {
	const op = "component.SetLicense"

	comp, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if comp.LicenseID == licenseID {
		return comp, nil
	}

	ok, err := c.licenses.Exists(ctx, licenseID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.InvalidReference(op, "license %d does not exist", licenseID)
	}

	var attached int
	err = c.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM inventory_files f JOIN inventories i ON i.id = f.inventory_id
		 WHERE i.component_id = ?`, id).Scan(&attached)
	if err != nil {
		return nil, apperr.Storage(op, fmt.Errorf("count attached files: %w", err))
	}
	if attached > 0 {
		return nil, apperr.Conflict(op, "component %d is read-only: %d files attached", id, attached)
	}

	if _, err := c.q.ExecContext(ctx, `UPDATE components SET license_id = ? WHERE id = ?`, licenseID, id); err != nil {
		return nil, apperr.Storage(op, fmt.Errorf("update component license: %w", err))
	}
	return c.Get(ctx, id)
}

func (c *ComponentCatalog) getByIdentity(ctx context.Context, name, version, purl string) (*model.Component, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+componentColumns+componentFrom+` WHERE c.name = ? AND c.version = ? AND c.purl = ?`,
		name, version, purl)
	comp, err := scanComponent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("component.GetOrCreate", "component %s@%s not found", name, version)
	}
	if err != nil {
		return nil, apperr.Storage("component.GetOrCreate", fmt.Errorf("get component: %w", err))
	}
	return comp, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanComponent(row scanner) (*model.Component, error) {
	var comp model.Component
	err := row.Scan(&comp.ID, &comp.Name, &comp.Version, &comp.Purl, &comp.URL, &comp.LicenseID, &comp.LicenseName)
	if err != nil {
		return nil, err
	}
	return &comp, nil
}
