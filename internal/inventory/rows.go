package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/go-tangra/go-tangra-license-inventory/internal/apperr"
	"github.com/go-tangra/go-tangra-license-inventory/internal/catalog"
	"github.com/go-tangra/go-tangra-license-inventory/internal/model"
	"github.com/go-tangra/go-tangra-license-inventory/internal/store"
)

const selectInventories = `SELECT i.id, i.component_id, i.created_at,
	c.name, c.version, c.purl, c.url, c.license_id, l.name
	FROM inventories i
	JOIN components c ON c.id = i.component_id
	JOIN licenses l ON l.id = c.license_id`

func buildWhere(f model.InventoryFilter) (string, []any) {
	var w store.Where
	w.EqID("i.id", f.ID)
	w.EqID("i.component_id", f.ComponentID)
	w.EqID("c.license_id", f.LicenseID)
	w.EqString("c.name", f.Name)
	w.EqString("c.version", f.Version)
	w.EqString("c.purl", f.Purl)
	w.EqString("c.url", f.URL)
	w.EqString("l.name", f.LicenseName)
	if f.File != "" {
		w.Add("EXISTS (SELECT 1 FROM inventory_files f WHERE f.inventory_id = i.id AND f.file_id = ?)", f.File)
	}
	return w.SQL()
}

// list returns the inventories matching f with their files loaded.
func list(ctx context.Context, q store.Querier, f model.InventoryFilter) ([]model.Inventory, error) {
	where, args := buildWhere(f)

	rows, err := q.QueryContext(ctx, selectInventories+where+` ORDER BY i.id`, args...)
	if err != nil {
		return nil, apperr.Storage("inventory.list", fmt.Errorf("list inventories: %w", err))
	}

	inventories := []model.Inventory{}
	for rows.Next() {
		var (
			inv       model.Inventory
			createdAt string
		)
		err := rows.Scan(&inv.ID, &inv.ComponentID, &createdAt,
			&inv.Component.Name, &inv.Component.Version, &inv.Component.Purl, &inv.Component.URL,
			&inv.License.ID, &inv.License.Name)
		if err != nil {
			rows.Close()
			return nil, apperr.Storage("inventory.list", fmt.Errorf("scan inventory: %w", err))
		}
		inv.Component.ID = inv.ComponentID
		inv.Component.LicenseID = inv.License.ID
		inv.Component.LicenseName = inv.License.Name
		inv.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			rows.Close()
			return nil, apperr.Storage("inventory.list", fmt.Errorf("parse created_at: %w", err))
		}
		inventories = append(inventories, inv)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, apperr.Storage("inventory.list", err)
	}

	// Files are loaded after the cursor is closed so the single
	// connection is free for the follow-up queries.
	files := catalog.NewFileIndex(q)
	for i := range inventories {
		inventories[i].Files, err = files.FilesFor(ctx, inventories[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return inventories, nil
}

// getOne resolves f to exactly one inventory.
func getOne(ctx context.Context, q store.Querier, f model.InventoryFilter) (*model.Inventory, error) {
	const op = "inventory.Get"

	if f.IsEmpty() {
		return nil, apperr.Validation(op, "filter must select an inventory")
	}

	found, err := list(ctx, q, f)
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, apperr.NotFound(op, "no inventory matches %s", describe(f))
	case 1:
		return &found[0], nil
	default:
		return nil, apperr.Conflict(op, "%d inventories match %s", len(found), describe(f))
	}
}

func exists(ctx context.Context, q store.Querier, id int64) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM inventories WHERE id = ?`, id).Scan(&n); err != nil {
		return false, apperr.Storage("inventory.exists", fmt.Errorf("check inventory: %w", err))
	}
	return n > 0, nil
}

func insert(ctx context.Context, q store.Querier, componentID int64, createdAt time.Time) (int64, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO inventories (component_id, created_at) VALUES (?, ?)`,
		componentID, createdAt.Format(time.RFC3339))
	if err != nil {
		return 0, apperr.Storage("inventory.insert", fmt.Errorf("insert inventory: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, apperr.Storage("inventory.insert", fmt.Errorf("get last insert id: %w", err))
	}
	return id, nil
}

func remove(ctx context.Context, q store.Querier, id int64) (bool, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM inventories WHERE id = ?`, id)
	if err != nil {
		return false, apperr.Storage("inventory.remove", fmt.Errorf("delete inventory: %w", err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, apperr.Storage("inventory.remove", fmt.Errorf("rows affected: %w", err))
	}
	return n == 1, nil
}

func describe(f model.InventoryFilter) string {
	if f.ID != 0 {
		return fmt.Sprintf("id %d", f.ID)
	}
	return fmt.Sprintf("filter %+v", f)
}
