package sqlite

import "kongman/internal/storage"

const schema = `
-- Gateway connection profiles; rowid keeps insertion order
CREATE TABLE IF NOT EXISTS gateways (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    admin_url TEXT NOT NULL,
    variant TEXT NOT NULL DEFAULT 'standard',
    skip_tls_verify BOOLEAN DEFAULT 0,

    -- Auth details (type tag + JSON payload)
    auth_type TEXT NOT NULL DEFAULT 'none',
    auth_config TEXT,

    -- Metadata
    tags TEXT,
    notes TEXT,

    -- Stats
    last_used TIMESTAMP,
    use_count INTEGER DEFAULT 0,

    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Connection test results for saved gateways
CREATE TABLE IF NOT EXISTS probe_results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    gateway_id TEXT NOT NULL,
    success BOOLEAN NOT NULL,
    status_code INTEGER DEFAULT 0,
    latency_ms INTEGER,
    message TEXT,
    tested_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (gateway_id) REFERENCES gateways(id) ON DELETE CASCADE
);

-- Application settings
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Active gateway tracking; deleting the gateway clears the selection
CREATE TABLE IF NOT EXISTS active_gateway (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    gateway_id TEXT NOT NULL,
    selected_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (gateway_id) REFERENCES gateways(id) ON DELETE CASCADE
);

-- Indexes for performance
CREATE INDEX IF NOT EXISTS idx_gateways_name ON gateways(name);
CREATE INDEX IF NOT EXISTS idx_probe_results_gateway_id ON probe_results(gateway_id);
CREATE INDEX IF NOT EXISTS idx_probe_results_tested_at ON probe_results(tested_at);

-- Triggers for updated_at
CREATE TRIGGER IF NOT EXISTS update_gateways_timestamp AFTER UPDATE ON gateways
BEGIN
    UPDATE gateways SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
END;

CREATE TRIGGER IF NOT EXISTS update_settings_timestamp AFTER UPDATE ON settings
BEGIN
    UPDATE settings SET updated_at = CURRENT_TIMESTAMP WHERE key = NEW.key;
END;
`

// runMigrations executes the database schema and default data
func runMigrations(db *DB) error {
	if _, err := db.db.Exec(schema); err != nil {
		return err
	}

	for key, value := range storage.DefaultSettings {
		if _, err := db.db.Exec(`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, key, value); err != nil {
			return err
		}
	}

	return nil
}
