package store

const createTableSQL = `
CREATE TABLE IF NOT EXISTS licenses (
    id    INTEGER PRIMARY KEY AUTOINCREMENT,
    name  TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS components (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT NOT NULL,
    version     TEXT NOT NULL,
    purl        TEXT NOT NULL,
    url         TEXT NOT NULL,
    license_id  INTEGER NOT NULL REFERENCES licenses(id),
    UNIQUE (name, version, purl)
);

CREATE TABLE IF NOT EXISTS inventories (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    component_id  INTEGER NOT NULL REFERENCES components(id),
    created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS inventory_files (
    inventory_id  INTEGER NOT NULL REFERENCES inventories(id) ON DELETE CASCADE,
    file_id       TEXT NOT NULL,
    PRIMARY KEY (inventory_id, file_id)
);

CREATE INDEX IF NOT EXISTS idx_components_license_id ON components(license_id);
CREATE INDEX IF NOT EXISTS idx_inventories_component_id ON inventories(component_id);
CREATE INDEX IF NOT EXISTS idx_inventory_files_file_id ON inventory_files(file_id);
`
