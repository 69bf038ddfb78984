package db

import (
	"context"
	"fmt"
)

// Registry schema. The unique constraint on (module_id, version) is load
// bearing: it closes the race between concurrent uploads of the same new
// version that both pass the application-level conflict check.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS modules (
	id            TEXT PRIMARY KEY,
	namespace     TEXT NOT NULL,
	name          TEXT NOT NULL,
	provider      TEXT NOT NULL,
	description   TEXT,
	source_url    TEXT,
	owner         TEXT,
	published_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	verified      BOOLEAN NOT NULL DEFAULT false,
	UNIQUE (namespace, name, provider)
);

CREATE TABLE IF NOT EXISTS module_versions (
	id              TEXT PRIMARY KEY,
	module_id       TEXT NOT NULL REFERENCES modules(id),
	version         TEXT NOT NULL,
	protocols       JSONB NOT NULL DEFAULT '["5.0"]',
	platforms       JSONB NOT NULL DEFAULT '[{"os":"linux","arch":"amd64"}]',
	content_locator TEXT NOT NULL,
	documentation   JSONB,
	repository_url  TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (module_id, version)
);

CREATE INDEX IF NOT EXISTS idx_module_versions_module
	ON module_versions (module_id);
`

// InitSchema creates the registry tables if they do not exist.
// Intended as a bootstrap DB init hook.
func InitSchema(db *DB) error {
	if _, err := db.Exec(context.Background(), schemaDDL); err != nil {
		return fmt.Errorf("init registry schema: %w", err)
	}
	return nil
}
