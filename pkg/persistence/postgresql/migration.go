package postgresql

import "github.com/PFerreria/Concilium/pkg/persistence/sqlbase"

func migrations() []sqlbase.Migration {
	return []sqlbase.Migration{
		{
			Version:     1,
			Description: "create jobs table",
			SQL: `
				CREATE TABLE jobs (
					id VARCHAR(64) PRIMARY KEY,
					status VARCHAR(20) NOT NULL CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
					title VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					input_ref VARCHAR(255) NOT NULL,
					input JSONB NOT NULL,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL,
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
					completed_at TIMESTAMP WITH TIME ZONE
				);

				CREATE INDEX idx_jobs_status ON jobs(status);
				CREATE INDEX idx_jobs_created_at ON jobs(created_at);
			`,
		},
		{
			Version:     2,
			Description: "artifact references, failure reason and renderer strategy",
			SQL: `
				ALTER TABLE jobs
					ADD COLUMN artifacts JSONB NOT NULL DEFAULT '{}',
					ADD COLUMN error JSONB,
					ADD COLUMN renderer_strategy VARCHAR(64) NOT NULL DEFAULT '';

				CREATE INDEX idx_jobs_updated_at ON jobs(updated_at);
			`,
		},
	}
}
