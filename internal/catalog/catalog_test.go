package catalog

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-tangra/go-tangra-license-inventory/internal/apperr"
	"github.com/go-tangra/go-tangra-license-inventory/internal/model"
	"github.com/go-tangra/go-tangra-license-inventory/internal/store"
)

// testDB migrates a fresh database file and returns a connection to it.
// Statements run outside of any transaction, each atomic on its own.
func testDB(t *testing.T) store.Querier {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")

	s, err := store.New(path)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	s.Close()

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func mustLicense(t *testing.T, q store.Querier, name string) *model.License {
	t.Helper()
	l, err := NewLicenseCatalog(q).GetOrCreateByName(context.Background(), name)
	if err != nil {
		t.Fatalf("GetOrCreateByName(%q): %v", name, err)
	}
	return l
}

func mustInventory(t *testing.T, q store.Querier, componentID int64) int64 {
	t.Helper()
	res, err := q.ExecContext(context.Background(),
		`INSERT INTO inventories (component_id, created_at) VALUES (?, '2024-01-01T00:00:00Z')`, componentID)
	if err != nil {
		t.Fatalf("insert inventory: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

func leftPad(licenseID int64) model.ComponentSpec {
	return model.ComponentSpec{
		Name:      "left-pad",
		Version:   "1.3.0",
		Purl:      "pkg:npm/left-pad@1.3.0",
		URL:       "https://npmjs.com/left-pad",
		LicenseID: licenseID,
	}
}

func TestLicenseCatalog_GetOrCreateByName(t *testing.T) {
	q := testDB(t)
	ctx := context.Background()
	c := NewLicenseCatalog(q)

	first, err := c.GetOrCreateByName(ctx, "Apache-2.0")
	if err != nil {
		t.Fatalf("GetOrCreateByName: %v", err)
	}
	second, err := c.GetOrCreateByName(ctx, " Apache-2.0 ")
	if err != nil {
		t.Fatalf("GetOrCreateByName again: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("ids differ: %d vs %d", first.ID, second.ID)
	}

	all, err := c.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 1 || all[0].Name != "Apache-2.0" {
		t.Errorf("GetAll = %+v, want one Apache-2.0", all)
	}

	if _, err := c.GetOrCreateByName(ctx, "  "); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("empty name error kind = %v, want validation", apperr.KindOf(err))
	}
}

func TestLicenseCatalog_GetOrCreateByName_Concurrent(t *testing.T) {
	q := testDB(t)
	ctx := context.Background()
	c := NewLicenseCatalog(q)

	const workers = 16
	ids := make([]int64, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l, err := c.GetOrCreateByName(ctx, "MIT")
			errs[i] = err
			if l != nil {
				ids[i] = l.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range errs {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Errorf("worker %d saw id %d, want %d", i, ids[i], ids[0])
		}
	}

	all, _ := c.GetAll(ctx)
	if len(all) != 1 {
		t.Errorf("licenses = %d, want 1", len(all))
	}
}

func TestLicenseCatalog_Create(t *testing.T) {
	q := testDB(t)
	ctx := context.Background()
	c := NewLicenseCatalog(q)

	l, err := c.Create(ctx, "BSD-3-Clause")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if l.ID == 0 {
		t.Errorf("Create returned zero id")
	}

	_, err = c.Create(ctx, "BSD-3-Clause")
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Errorf("duplicate Create kind = %v, want conflict", apperr.KindOf(err))
	}

	got, err := c.Get(ctx, l.ID)
	if err != nil || got.Name != "BSD-3-Clause" {
		t.Errorf("Get = %+v, %v", got, err)
	}

	if _, err := c.Get(ctx, 999); !apperr.IsNotFound(err) {
		t.Errorf("Get(999) kind = %v, want not_found", apperr.KindOf(err))
	}
}

func TestComponentCatalog_GetOrCreate_Idempotent(t *testing.T) {
	q := testDB(t)
	ctx := context.Background()
	mit := mustLicense(t, q, "MIT")
	c := NewComponentCatalog(q)

	first, err := c.GetOrCreate(ctx, leftPad(mit.ID))
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	second, err := c.GetOrCreate(ctx, leftPad(mit.ID))
	if err != nil {
		t.Fatalf("GetOrCreate again: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("ids differ: %d vs %d", first.ID, second.ID)
	}
	if first.LicenseName != "MIT" {
		t.Errorf("LicenseName = %q, want MIT", first.LicenseName)
	}

	all, err := c.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("components = %d, want 1", len(all))
	}
}

func TestComponentCatalog_GetOrCreate_Concurrent(t *testing.T) {
	q := testDB(t)
	ctx := context.Background()
	mit := mustLicense(t, q, "MIT")
	c := NewComponentCatalog(q)

	const workers = 12
	ids := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			comp, err := c.GetOrCreate(ctx, leftPad(mit.ID))
			if err != nil {
				t.Errorf("GetOrCreate: %v", err)
				return
			}
			ids <- comp.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		seen[id] = true
	}
	if len(seen) != 1 {
		t.Errorf("distinct component ids = %d, want 1", len(seen))
	}
}

func TestComponentCatalog_GetOrCreate_Errors(t *testing.T) {
	q := testDB(t)
	ctx := context.Background()
	mit := mustLicense(t, q, "MIT")
	apache := mustLicense(t, q, "Apache-2.0")
	c := NewComponentCatalog(q)

	if _, err := c.GetOrCreate(ctx, leftPad(999)); apperr.KindOf(err) != apperr.KindInvalidReference {
		t.Errorf("dangling license kind = %v, want invalid_reference", apperr.KindOf(err))
	}

	if _, err := c.GetOrCreate(ctx, leftPad(mit.ID)); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, err := c.GetOrCreate(ctx, leftPad(apache.ID)); apperr.KindOf(err) != apperr.KindConflict {
		t.Errorf("license mismatch kind = %v, want conflict", apperr.KindOf(err))
	}

	spec := leftPad(mit.ID)
	spec.URL = ""
	if _, err := c.GetOrCreate(ctx, spec); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("missing url kind = %v, want validation", apperr.KindOf(err))
	}

	if _, err := c.Get(ctx, 4242); !apperr.IsNotFound(err) {
		t.Errorf("Get(4242) kind = %v, want not_found", apperr.KindOf(err))
	}
}

func TestComponentCatalog_SetLicense(t *testing.T) {
	q := testDB(t)
	ctx := context.Background()
	mit := mustLicense(t, q, "MIT")
	apache := mustLicense(t, q, "Apache-2.0")
	c := NewComponentCatalog(q)

	comp, err := c.GetOrCreate(ctx, leftPad(mit.ID))
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	invID := mustInventory(t, q, comp.ID)

	updated, err := c.SetLicense(ctx, comp.ID, apache.ID)
	if err != nil {
		t.Fatalf("SetLicense before attach: %v", err)
	}
	if updated.LicenseID != apache.ID || updated.LicenseName != "Apache-2.0" {
		t.Errorf("SetLicense = %+v", updated)
	}

	if _, err := c.SetLicense(ctx, comp.ID, 777); apperr.KindOf(err) != apperr.KindInvalidReference {
		t.Errorf("dangling license kind = %v, want invalid_reference", apperr.KindOf(err))
	}

	if _, err := NewFileIndex(q).Attach(ctx, invID, "index.js"); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if _, err := c.SetLicense(ctx, comp.ID, mit.ID); apperr.KindOf(err) != apperr.KindConflict {
		t.Errorf("SetLicense after attach kind = %v, want conflict", apperr.KindOf(err))
	}
}

func TestFileIndex_AttachDetach(t *testing.T) {
	q := testDB(t)
	ctx := context.Background()
	mit := mustLicense(t, q, "MIT")
	comp, err := NewComponentCatalog(q).GetOrCreate(ctx, leftPad(mit.ID))
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	inv := mustInventory(t, q, comp.ID)
	other := mustInventory(t, q, comp.ID)
	x := NewFileIndex(q)

	steps := []struct {
		name string
		do   func() (bool, error)
		want bool
	}{
		{"attach", func() (bool, error) { return x.Attach(ctx, inv, "src/index.js") }, true},
		{"attach again", func() (bool, error) { return x.Attach(ctx, inv, "src/index.js") }, false},
		{"attach second file", func() (bool, error) { return x.Attach(ctx, inv, "src/a.js") }, true},
		{"attach to other inventory", func() (bool, error) { return x.Attach(ctx, other, "src/index.js") }, true},
		{"detach", func() (bool, error) { return x.Detach(ctx, inv, "src/index.js") }, true},
		{"detach again", func() (bool, error) { return x.Detach(ctx, inv, "src/index.js") }, false},
	}
	for _, s := range steps {
		got, err := s.do()
		if err != nil {
			t.Fatalf("%s: %v", s.name, err)
		}
		if got != s.want {
			t.Errorf("%s = %v, want %v", s.name, got, s.want)
		}
	}

	files, err := x.FilesFor(ctx, inv)
	if err != nil {
		t.Fatalf("FilesFor: %v", err)
	}
	if len(files) != 1 || files[0] != "src/a.js" {
		t.Errorf("FilesFor = %v, want [src/a.js]", files)
	}

	ids, err := x.InventoriesFor(ctx, "src/index.js")
	if err != nil {
		t.Fatalf("InventoriesFor: %v", err)
	}
	if len(ids) != 1 || ids[0] != other {
		t.Errorf("InventoriesFor = %v, want [%d]", ids, other)
	}

	n, err := x.CountIdentified(ctx)
	if err != nil || n != 2 {
		t.Errorf("CountIdentified = %d, %v, want 2", n, err)
	}

	removed, err := x.RemoveAllFor(ctx, inv)
	if err != nil || removed != 1 {
		t.Errorf("RemoveAllFor = %d, %v, want 1", removed, err)
	}
	files, _ = x.FilesFor(ctx, inv)
	if len(files) != 0 {
		t.Errorf("FilesFor after RemoveAllFor = %v", files)
	}

	if _, err := x.Attach(ctx, 9999, "src/x.js"); !apperr.IsNotFound(err) {
		t.Errorf("Attach to missing inventory kind = %v, want not_found", apperr.KindOf(err))
	}
}

func TestFileIndex_ConcurrentAttachSingleWinner(t *testing.T) {
	q := testDB(t)
	ctx := context.Background()
	mit := mustLicense(t, q, "MIT")
	comp, err := NewComponentCatalog(q).GetOrCreate(ctx, leftPad(mit.ID))
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	inv := mustInventory(t, q, comp.ID)
	x := NewFileIndex(q)

	const workers = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added, err := x.Attach(ctx, inv, "src/index.js")
			if err != nil {
				t.Errorf("Attach: %v", err)
				return
			}
			if added {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("newly attached reported %d times, want 1", wins)
	}
}
