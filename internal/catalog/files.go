package catalog

import (
	"context"
	"fmt"

	"github.com/go-tangra/go-tangra-license-inventory/internal/apperr"
	"github.com/go-tangra/go-tangra-license-inventory/internal/store"
)

// FileIndex is the many-to-many mapping between inventories and source
// files. Attach and Detach are idempotent per (inventory, file) pair and
// report whether they changed anything, so exactly one of several racing
// callers observes the transition.
type FileIndex struct {
	q store.Querier
}

// NewFileIndex returns a FileIndex bound to q.
func NewFileIndex(q store.Querier) *FileIndex {
	return &FileIndex{q: q}
}

// Attach adds the pair and reports whether it was newly added.
func (x *FileIndex) Attach(ctx context.Context, inventoryID int64, fileID string) (bool, error) {
	result, err := x.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO inventory_files (inventory_id, file_id) VALUES (?, ?)`, inventoryID, fileID)
	if err != nil {
		if store.IsForeignKeyViolation(err) {
			return false, apperr.NotFound("files.Attach", "inventory %d not found", inventoryID)
		}
		return false, apperr.Storage("files.Attach", fmt.Errorf("attach file: %w", err))
	}
	return changed(result, "files.Attach")
}

// Detach removes the pair and reports whether it was present.
func (x *FileIndex) Detach(ctx context.Context, inventoryID int64, fileID string) (bool, error) {
	result, err := x.q.ExecContext(ctx,
		`DELETE FROM inventory_files WHERE inventory_id = ? AND file_id = ?`, inventoryID, fileID)
	if err != nil {
		return false, apperr.Storage("files.Detach", fmt.Errorf("detach file: %w", err))
	}
	return changed(result, "files.Detach")
}

// FilesFor returns the files attached to an inventory, sorted.
func (x *FileIndex) FilesFor(ctx context.Context, inventoryID int64) ([]string, error) {
	rows, err := x.q.QueryContext(ctx,
		`SELECT file_id FROM inventory_files WHERE inventory_id = ? ORDER BY file_id`, inventoryID)
	if err != nil {
		return nil, apperr.Storage("files.FilesFor", fmt.Errorf("list files: %w", err))
	}
	defer rows.Close()

	files := []string{}
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, apperr.Storage("files.FilesFor", fmt.Errorf("scan file: %w", err))
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("files.FilesFor", err)
	}
	return files, nil
}

// RemoveAllFor drops every association of an inventory and returns how
// many were removed.
func (x *FileIndex) RemoveAllFor(ctx context.Context, inventoryID int64) (int64, error) {
	result, err := x.q.ExecContext(ctx, `DELETE FROM inventory_files WHERE inventory_id = ?`, inventoryID)
	if err != nil {
		return 0, apperr.Storage("files.RemoveAllFor", fmt.Errorf("remove files: %w", err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, apperr.Storage("files.RemoveAllFor", fmt.Errorf("rows affected: %w", err))
	}
	return n, nil
}

// InventoriesFor returns the ids of every inventory a file is attached to.
func (x *FileIndex) InventoriesFor(ctx context.Context, fileID string) ([]int64, error) {
	rows, err := x.q.QueryContext(ctx,
		`SELECT inventory_id FROM inventory_files WHERE file_id = ? ORDER BY inventory_id`, fileID)
	if err != nil {
		return nil, apperr.Storage("files.InventoriesFor", fmt.Errorf("list inventories: %w", err))
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Storage("files.InventoriesFor", fmt.Errorf("scan inventory id: %w", err))
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("files.InventoriesFor", err)
	}
	return ids, nil
}

// CountIdentified returns the number of distinct files attached to at least
// one inventory.
func (x *FileIndex) CountIdentified(ctx context.Context) (int, error) {
	var n int
	err := x.q.QueryRowContext(ctx, `SELECT COUNT(DISTINCT file_id) FROM inventory_files`).Scan(&n)
	if err != nil {
		return 0, apperr.Storage("files.CountIdentified", fmt.Errorf("count files: %w", err))
	}
	return n, nil
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func changed(result rowsAffecter, op string) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, apperr.Storage(op, fmt.Errorf("rows affected: %w", err))
	}
	return n == 1, nil
}
