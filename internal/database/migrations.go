package database

// migrations is an ordered list of SQL migration groups. Each entry is a slice
// of SQL statements that are executed together in a single transaction. The
// version number is the 1-based index into this slice.
var migrations = [][]string{
	// Migration 1: records, jobs, batches
	{
		`CREATE TABLE records (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			object_type TEXT NOT NULL,
			id TEXT NOT NULL,
			fields TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE (object_type, id)
		)`,
		`CREATE INDEX idx_records_type ON records(object_type, seq)`,

		`CREATE TABLE jobs (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT UNIQUE NOT NULL,
			job_type TEXT NOT NULL,
			operation TEXT NOT NULL,
			object TEXT NOT NULL,
			state TEXT NOT NULL,
			external_id_field TEXT NOT NULL DEFAULT '',
			content_type TEXT NOT NULL DEFAULT 'CSV',
			line_ending TEXT NOT NULL DEFAULT 'LF',
			column_delimiter TEXT NOT NULL DEFAULT 'COMMA',
			query TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL DEFAULT '',
			query_results TEXT NOT NULL DEFAULT '',
			result_fields TEXT NOT NULL DEFAULT '[]',
			successful_results TEXT NOT NULL DEFAULT '[]',
			failed_results TEXT NOT NULL DEFAULT '[]',
			records_processed INTEGER NOT NULL DEFAULT 0,
			records_failed INTEGER NOT NULL DEFAULT 0,
			total_processing_time INTEGER NOT NULL DEFAULT 0,
			retries INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX idx_jobs_type ON jobs(job_type, seq)`,

		`CREATE TABLE batches (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT UNIQUE NOT NULL,
			job_id TEXT NOT NULL,
			state TEXT NOT NULL,
			state_message TEXT NOT NULL DEFAULT '',
			records_processed INTEGER NOT NULL DEFAULT 0,
			records_failed INTEGER NOT NULL DEFAULT 0,
			results TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (job_id) REFERENCES jobs(id)
		)`,
		`CREATE INDEX idx_batches_job ON batches(job_id, seq)`,
	},
}
