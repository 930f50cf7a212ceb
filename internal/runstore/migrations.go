package runstore

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    descriptor TEXT NOT NULL,
    model TEXT,
    output_dir TEXT,
    files INTEGER DEFAULT 0,
    cells INTEGER DEFAULT 0,
    failures INTEGER DEFAULT 0,
    dry_run BOOLEAN DEFAULT FALSE,
    report TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);

CREATE TABLE IF NOT EXISTS scans (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    run_id TEXT REFERENCES runs(id),
    started_at TIMESTAMP,
    finished_at TIMESTAMP,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_scans_name ON scans(name);
`
