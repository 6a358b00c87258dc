// Package catalog owns the License and Component entities and the
// inventory-to-file association index.
//
// Every catalog is bound to a store.Querier, which is either the database
// or an open transaction, so the inventory service can compose several
// catalog calls into one atomic unit.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-tangra/go-tangra-license-inventory/internal/apperr"
	"github.com/go-tangra/go-tangra-license-inventory/internal/model"
	"github.com/go-tangra/go-tangra-license-inventory/internal/store"
)

// LicenseCatalog provides access to License rows.
type LicenseCatalog struct {
	q store.Querier
}

// NewLicenseCatalog returns a LicenseCatalog bound to q.
func NewLicenseCatalog(q store.Querier) *LicenseCatalog {
	return &LicenseCatalog{q: q}
}

// GetAll returns every license ordered by name.
func (c *LicenseCatalog) GetAll(ctx context.Context) ([]model.License, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT id, name FROM licenses ORDER BY name`)
	if err != nil {
		return nil, apperr.Storage("license.GetAll", fmt.Errorf("list licenses: %w", err))
	}
	defer rows.Close()

	licenses := []model.License{}
	for rows.Next() {
		var l model.License
		if err := rows.Scan(&l.ID, &l.Name); err != nil {
			return nil, apperr.Storage("license.GetAll", fmt.Errorf("scan license: %w", err))
		}
		licenses = append(licenses, l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("license.GetAll", err)
	}
	return licenses, nil
}

// Get returns the license with id.
func (c *LicenseCatalog) Get(ctx context.Context, id int64) (*model.License, error) {
	var l model.License
	err := c.q.QueryRowContext(ctx, `SELECT id, name FROM licenses WHERE id = ?`, id).Scan(&l.ID, &l.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("license.Get", "license %d not found", id)
	}
	if err != nil {
		return nil, apperr.Storage("license.Get", fmt.Errorf("get license: %w", err))
	}
	return &l, nil
}

// GetByName returns the license called name.
func (c *LicenseCatalog) GetByName(ctx context.Context, name string) (*model.License, error) {
	var l model.License
	err := c.q.QueryRowContext(ctx, `SELECT id, name FROM licenses WHERE name = ?`, name).Scan(&l.ID, &l.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("license.GetByName", "license %q not found", name)
	}
	if err != nil {
		return nil, apperr.Storage("license.GetByName", fmt.Errorf("get license by name: %w", err))
	}
	return &l, nil
}

// GetOrCreateByName returns the license called name, creating it first if
// needed. Concurrent callers asking for the same new name all observe the
// single row that wins the insert.
func (c *LicenseCatalog) GetOrCreateByName(ctx context.Context, name string) (*model.License, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("license.GetOrCreateByName", "license name is required")
	}

	_, err := c.q.ExecContext(ctx, `INSERT INTO licenses (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name)
	if err != nil {
		return nil, apperr.Storage("license.GetOrCreateByName", fmt.Errorf("insert license: %w", err))
	}
	return c.GetByName(ctx, name)
}

// Create inserts a new license. It fails with a conflict when the name is
// already taken.
func (c *LicenseCatalog) Create(ctx context.Context, name string) (*model.License, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("license.Create", "license name is required")
	}

	result, err := c.q.ExecContext(ctx, `INSERT INTO licenses (name) VALUES (?)`, name)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return nil, apperr.Conflict("license.Create", "license %q already exists", name)
		}
		return nil, apperr.Storage("license.Create", fmt.Errorf("insert license: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, apperr.Storage("license.Create", fmt.Errorf("get last insert id: %w", err))
	}
	return &model.License{ID: id, Name: name}, nil
}

// Exists reports whether a license with id is present.
func (c *LicenseCatalog) Exists(ctx context.Context, id int64) (bool, error) {
	_, err := c.Get(ctx, id)
	if apperr.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
