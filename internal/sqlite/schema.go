package sqlite

// Schema DDL. SQLite is a query engine over the JSONL files; the database is
// rebuilt from them on every Attach.
const (
	createParameters = `CREATE TABLE parameters (
    slug TEXT PRIMARY KEY NOT NULL,
    name TEXT NOT NULL,
    value_type TEXT NOT NULL,
    value TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    is_global INTEGER NOT NULL DEFAULT 0,
    enable_cypher INTEGER NOT NULL DEFAULT 0,
    enable_history INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createParameterValidators = `CREATE TABLE parameter_validators (
    validator_id TEXT PRIMARY KEY NOT NULL,
    slug TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    validator_type TEXT NOT NULL,
    validator_params TEXT NOT NULL DEFAULT '{}',
    FOREIGN KEY (slug) REFERENCES parameters(slug) ON DELETE CASCADE
);`

	createParameterHistory = `CREATE TABLE parameter_history (
    history_id TEXT PRIMARY KEY NOT NULL,
    slug TEXT NOT NULL,
    previous_value TEXT NOT NULL,
    created_at TEXT NOT NULL,
    FOREIGN KEY (slug) REFERENCES parameters(slug) ON DELETE CASCADE
);`
)

// Index DDL for common queries.
const (
	idxParametersGlobal      = `CREATE INDEX idx_parameters_global ON parameters(is_global);`
	idxParametersCypher      = `CREATE INDEX idx_parameters_cypher ON parameters(enable_cypher);`
	idxValidatorsSlugOrdinal = `CREATE INDEX idx_validators_slug_ordinal ON parameter_validators(slug, ordinal);`
	idxHistorySlugCreated    = `CREATE INDEX idx_history_slug_created ON parameter_history(slug, created_at);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createParameters,
	createParameterValidators,
	createParameterHistory,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxParametersGlobal,
	idxParametersCypher,
	idxValidatorsSlugOrdinal,
	idxHistorySlugCreated,
}
