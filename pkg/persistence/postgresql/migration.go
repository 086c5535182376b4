package postgresql

const (
	selectSnapshotSQL = `SELECT data FROM config_snapshots WHERE key = $1`

	upsertSnapshotSQL = `
		INSERT INTO config_snapshots (key, data, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`
)

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE config_snapshots (
				key VARCHAR(64) PRIMARY KEY,
				data JSONB NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
		`,
		2: `
			CREATE INDEX idx_config_snapshots_updated_at ON config_snapshots(updated_at);
		`,
	}
}
