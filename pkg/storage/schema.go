package storage

// Schema DDL per dialect (spec §6). Every dialect, postgres included,
// stores the embedding as a JSON-encoded float array in a text column
// (there is no pgvector column) and relies on VectorIndex or sequential
// scan for similarity search.

const postgresSchemaSQL = `
CREATE TABLE IF NOT EXISTS conversations (
  id              bigserial PRIMARY KEY,
  session_id      varchar(64) NOT NULL,
  turn_id         int NOT NULL,
  role            varchar(50) NOT NULL,
  content         text NOT NULL,
  embedding       text,
  metadata        jsonb,
  is_agent_report boolean,
  agent_metadata  jsonb,
  created_at      timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_conversations_created_at ON conversations (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_conversations_session_id ON conversations (session_id);
`

const mysqlSchemaSQL = `
CREATE TABLE IF NOT EXISTS conversations (
  id              bigint AUTO_INCREMENT PRIMARY KEY,
  session_id      varchar(64) NOT NULL,
  turn_id         int NOT NULL,
  role            varchar(50) NOT NULL,
  content         text NOT NULL,
  embedding       longtext,
  metadata        json,
  is_agent_report boolean,
  agent_metadata  json,
  created_at      timestamp NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX idx_conversations_created_at ON conversations (created_at);
CREATE INDEX idx_conversations_session_id ON conversations (session_id);
`

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS conversations (
  id              INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id      TEXT NOT NULL,
  turn_id         INTEGER NOT NULL,
  role            TEXT NOT NULL,
  content         TEXT NOT NULL,
  embedding       TEXT,
  metadata        TEXT,
  is_agent_report INTEGER,
  agent_metadata  TEXT,
  created_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_created_at ON conversations (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_conversations_session_id ON conversations (session_id);
`

func schemaFor(dialect string) string {
	switch dialect {
	case "mysql":
		return mysqlSchemaSQL
	case "sqlite":
		return sqliteSchemaSQL
	default:
		return postgresSchemaSQL
	}
}
