package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Face templates table - one enrolled embedding per user key
		`CREATE TABLE IF NOT EXISTS face_templates (
			id TEXT PRIMARY KEY,
			user_key TEXT NOT NULL UNIQUE,
			embedding TEXT NOT NULL,
			quality REAL NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			last_verified_at DATETIME,
			verification_count INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE INDEX IF NOT EXISTS idx_face_templates_user_key ON face_templates(user_key)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
