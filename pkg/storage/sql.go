package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	// Database drivers, grounded on kadirpekel/hector's
	// pkg/memory/session_service_sql.go driver set.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jetgogoing/sage/pkg/assembler"
	"github.com/jetgogoing/sage/pkg/backup"
	"github.com/jetgogoing/sage/pkg/config"
	"github.com/jetgogoing/sage/pkg/embedder"
	"github.com/jetgogoing/sage/pkg/model"
	"github.com/jetgogoing/sage/pkg/sageerr"
)

// SQLStore is the primary Store implementation: postgres, mysql or
// sqlite via database/sql, with an optional VectorIndex for
// accelerated search_vector and a sequential-cosine fallback otherwise
// (spec §4.5's vector-index-absent degrade path).
type SQLStore struct {
	db         *sql.DB
	dialect    string
	embedder   embedder.Embedder
	index      VectorIndex
	collection string
	scanLimit  int
	backup     *backup.Writer
}

// Open connects to dbCfg's database, runs the dialect schema, and
// returns a ready SQLStore. index may be nil, in which case
// SearchVector always uses the sequential-cosine path. backupWriter may
// be nil, in which case Save failures are surfaced with no local backup
// (callers that skip it accept the data-loss risk spec §7 warns about).
func Open(ctx context.Context, dbCfg config.DatabaseConfig, emb embedder.Embedder, index VectorIndex, collection string, backupWriter *backup.Writer) (*SQLStore, error) {
	driverName := dbCfg.Driver
	if driverName == "sqlite" {
		driverName = "sqlite3"
	}
	if driverName == "" {
		driverName = "postgres"
	}

	db, err := sql.Open(driverName, dbCfg.DSN())
	if err != nil {
		return nil, sageerr.New(sageerr.StorageFatal, "storage", fmt.Errorf("open database: %w", err))
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, sageerr.New(sageerr.StorageTransient, "storage", fmt.Errorf("ping database: %w", err))
	}

	dialect := dbCfg.Driver
	if dialect == "" {
		dialect = "postgres"
	}
	if _, err := db.ExecContext(ctx, schemaFor(dialect)); err != nil {
		db.Close()
		return nil, sageerr.New(sageerr.StorageFatal, "storage", fmt.Errorf("apply schema: %w", err))
	}

	if collection == "" {
		collection = "conversations"
	}
	return &SQLStore{
		db:         db,
		dialect:    dialect,
		embedder:   emb,
		index:      index,
		collection: collection,
		scanLimit:  defaultSequentialScanLimit,
		backup:     backupWriter,
	}, nil
}

// backupOnFailure writes turn to the local JSON backup fallback when a
// save can't be committed (spec §7 StorageTransient/StorageFatal, §8
// scenario 6). Best-effort: a backup write failure is logged, never
// returned, so it can't mask the original storage error.
func (s *SQLStore) backupOnFailure(turn *model.Turn, cause error) {
	if s.backup == nil {
		return
	}
	reason := "unknown"
	if se, ok := sageerr.As(cause); ok {
		reason = string(se.Kind)
	}
	if path, err := s.backup.Write(turn, reason); err != nil {
		slog.Error("local backup write failed after save error", "session_id", turn.SessionID, "error", err)
	} else {
		slog.Warn("save failed, wrote local backup", "session_id", turn.SessionID, "path", path, "reason", reason)
	}
}

// ph returns the dialect-appropriate placeholder for the nth
// (1-indexed) bound parameter, grounded on session_service_sql.go's
// "?" (mysql/sqlite) vs "$N" (postgres) branching.
func (s *SQLStore) ph(n int) string {
	if s.dialect == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLStore) insertSQL() string {
	return fmt.Sprintf(
		`INSERT INTO conversations (session_id, turn_id, role, content, embedding, metadata, is_agent_report, agent_metadata, created_at)
VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9))
}

// Save implements Store.Save. It inserts one row per non-empty side of
// turn inside a single transaction, requesting an embedding for each
// row's content before the row is written, and rolls back wholesale on
// any failure (spec §4.5).
func (s *SQLStore) Save(ctx context.Context, turn *model.Turn) ([]string, error) {
	type side struct {
		role    model.Role
		content string
	}
	var sides []side
	if turn.UserPrompt != "" {
		sides = append(sides, side{model.RoleUser, turn.UserPrompt})
	}
	if turn.AssistantResponse != "" {
		sides = append(sides, side{model.RoleAssistant, turn.AssistantResponse})
	}
	if len(sides) == 0 {
		return nil, sageerr.New(sageerr.InputInvalid, "storage", fmt.Errorf("turn has no content to save"))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		txErr := sageerr.New(sageerr.StorageTransient, "storage", fmt.Errorf("begin transaction: %w", err))
		s.backupOnFailure(turn, txErr)
		return nil, txErr
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	agentReport := turn.Metadata != nil && turn.Metadata["agent_metadata"] != nil
	var agentMetaJSON []byte
	if agentReport {
		agentMetaJSON, _ = json.Marshal(turn.Metadata["agent_metadata"])
	}
	metaJSON, err := json.Marshal(turn.Metadata)
	if err != nil {
		return nil, sageerr.New(sageerr.InputInvalid, "storage", fmt.Errorf("marshal metadata: %w", err))
	}

	ids := make([]string, 0, len(sides))
	insertSQL := s.insertSQL()

	for _, sd := range sides {
		content, truncated := assembler.TruncateBytes(sd.content)
		if truncated {
			slog.Warn("row content exceeded size guard, truncated", "session_id", turn.SessionID, "limit_bytes", rowSizeGuardBytes)
		}

		vec, err := s.embedder.Embed(ctx, content)
		if err != nil {
			// embedder.Client.Embed already returns a *sageerr.Error
			// tagged with the precise provider failure kind (timeout,
			// 5xx, 4xx, schema); preserve it instead of flattening it
			// so the dispatcher can surface isError:true with that
			// kind (spec §8 scenario 6). The whole save is rolled
			// back (deferred tx.Rollback), but the turn is not lost:
			// it's captured in the local backup first.
			s.backupOnFailure(turn, err)
			return nil, err
		}
		embJSON, err := json.Marshal(vec)
		if err != nil {
			return nil, sageerr.New(sageerr.InputInvalid, "storage", fmt.Errorf("marshal embedding: %w", err))
		}

		res, err := tx.ExecContext(ctx, insertSQL,
			turn.SessionID, turn.TurnIndex, string(sd.role), content,
			string(embJSON), string(metaJSON), agentReport, string(agentMetaJSON), nowUTC())
		if err != nil {
			insertErr := sageerr.New(sageerr.StorageTransient, "storage", fmt.Errorf("insert row: %w", err))
			s.backupOnFailure(turn, insertErr)
			return nil, insertErr
		}

		id, err := s.rowID(ctx, tx, res)
		if err != nil {
			rowIDErr := sageerr.New(sageerr.StorageTransient, "storage", err)
			s.backupOnFailure(turn, rowIDErr)
			return nil, rowIDErr
		}
		ids = append(ids, id)

		if s.index != nil {
			if err := s.index.Upsert(ctx, s.collection, id, vec, map[string]any{
				"session_id": turn.SessionID,
				"role":       string(sd.role),
			}); err != nil {
				// The vector index is an accelerator, not the record of
				// truth; indexing failure degrades future search_vector
				// calls to the sequential path but must not roll back
				// the row written in this transaction.
				slog.Warn("vector index upsert failed, search_vector will degrade to sequential scan", "memory_id", id, "error", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		commitErr := sageerr.New(sageerr.StorageTransient, "storage", fmt.Errorf("commit transaction: %w", err))
		s.backupOnFailure(turn, commitErr)
		return nil, commitErr
	}
	committed = true
	return ids, nil
}

// rowID extracts the id of the row just inserted by res. SQLite and
// MySQL return LastInsertId directly; postgres's lib/pq driver does
// not implement it, so postgres reads SELECT lastval() in the same
// transaction, which is safe because the insert and the read share the
// same connection.
func (s *SQLStore) rowID(ctx context.Context, tx *sql.Tx, res sql.Result) (string, error) {
	if s.dialect == "postgres" {
		var id int64
		if err := tx.QueryRowContext(ctx, "SELECT lastval()").Scan(&id); err != nil {
			return "", fmt.Errorf("read inserted id: %w", err)
		}
		return fmt.Sprintf("%d", id), nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("read inserted id: %w", err)
	}
	return fmt.Sprintf("%d", id), nil
}

type conversationRow struct {
	id            int64
	sessionID     string
	turnID        int
	role          string
	content       string
	embedding     string
	metadata      string
	isAgentReport sql.NullBool
	agentMetadata sql.NullString
	createdAt     time.Time
}

func (s *SQLStore) scanRow(rows *sql.Rows) (conversationRow, error) {
	var r conversationRow
	var embedding, metadata sql.NullString
	err := rows.Scan(&r.id, &r.sessionID, &r.turnID, &r.role, &r.content, &embedding, &metadata, &r.isAgentReport, &r.agentMetadata, &r.createdAt)
	r.embedding = embedding.String
	r.metadata = metadata.String
	return r, err
}

func (r conversationRow) toStoredMemory() model.StoredMemory {
	sm := model.StoredMemory{
		MemoryID:      fmt.Sprintf("%d", r.id),
		SessionID:     r.sessionID,
		TurnIndex:     r.turnID,
		Role:          model.Role(r.role),
		Content:       r.content,
		CreatedAt:     r.createdAt,
		IsAgentReport: r.isAgentReport.Bool,
	}
	if r.embedding != "" {
		json.Unmarshal([]byte(r.embedding), &sm.Embedding)
	}
	if r.metadata != "" {
		json.Unmarshal([]byte(r.metadata), &sm.Metadata)
	}
	if r.agentMetadata.Valid && r.agentMetadata.String != "" {
		json.Unmarshal([]byte(r.agentMetadata.String), &sm.AgentMetadata)
	}
	return sm
}

// SearchVector implements Store.SearchVector. When a VectorIndex is
// configured, the index's ranked ids are hydrated from the rows table;
// otherwise it degrades to the sequential-cosine path bounded by
// scanLimit (spec §4.5).
func (s *SQLStore) SearchVector(ctx context.Context, queryEmbedding []float32, limit int) ([]model.StoredMemory, error) {
	if s.index != nil {
		hits, err := s.index.Search(ctx, s.collection, queryEmbedding, limit)
		if err == nil && len(hits) > 0 {
			return s.hydrate(ctx, hits)
		}
		// Index unavailable or empty: fall through to sequential scan.
	}
	return s.sequentialSearch(ctx, queryEmbedding, limit)
}

func (s *SQLStore) hydrate(ctx context.Context, hits []IndexResult) ([]model.StoredMemory, error) {
	out := make([]model.StoredMemory, 0, len(hits))
	for _, h := range hits {
		query := fmt.Sprintf(`SELECT id, session_id, turn_id, role, content, embedding, metadata, is_agent_report, agent_metadata, created_at
FROM conversations WHERE id = %s`, s.ph(1))
		row := s.db.QueryRowContext(ctx, query, h.ID)
		var r conversationRow
		var embedding, metadata sql.NullString
		err := row.Scan(&r.id, &r.sessionID, &r.turnID, &r.role, &r.content, &embedding, &metadata, &r.isAgentReport, &r.agentMetadata, &r.createdAt)
		if err != nil {
			continue
		}
		r.embedding = embedding.String
		r.metadata = metadata.String
		sm := r.toStoredMemory()
		out = append(out, sm)
	}
	return out, nil
}

func (s *SQLStore) sequentialSearch(ctx context.Context, queryEmbedding []float32, limit int) ([]model.StoredMemory, error) {
	query := fmt.Sprintf(`SELECT id, session_id, turn_id, role, content, embedding, metadata, is_agent_report, agent_metadata, created_at
FROM conversations ORDER BY created_at DESC LIMIT %s`, s.ph(1))
	rows, err := s.db.QueryContext(ctx, query, s.scanLimit)
	if err != nil {
		return nil, sageerr.New(sageerr.StorageTransient, "storage", fmt.Errorf("sequential scan: %w", err))
	}
	defer rows.Close()

	type scored struct {
		mem        model.StoredMemory
		similarity float64
	}
	var candidates []scored
	for rows.Next() {
		r, err := s.scanRow(rows)
		if err != nil {
			continue
		}
		sm := r.toStoredMemory()
		if len(sm.Embedding) == 0 {
			continue
		}
		candidates = append(candidates, scored{mem: sm, similarity: clampSimilarity(cosineSimilarity(queryEmbedding, sm.Embedding))})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].similarity > candidates[j].similarity })
	if limit > 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}
	out := make([]model.StoredMemory, len(candidates))
	for i, c := range candidates {
		out[i] = c.mem
	}
	return out, nil
}

// GetStats implements Store.GetStats.
func (s *SQLStore) GetStats(ctx context.Context) (model.Stats, error) {
	var stats model.Stats
	var earliest, latest sql.NullTime
	var withEmbeddings sql.NullInt64

	row := s.db.QueryRowContext(ctx, `
SELECT COUNT(*), COUNT(DISTINCT session_id), MIN(created_at), MAX(created_at)
FROM conversations`)
	if err := row.Scan(&stats.Total, &stats.Sessions, &earliest, &latest); err != nil {
		return stats, sageerr.New(sageerr.StorageTransient, "storage", fmt.Errorf("query stats: %w", err))
	}

	embRow := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE embedding IS NOT NULL AND embedding <> ''`)
	if err := embRow.Scan(&withEmbeddings); err == nil {
		stats.WithEmbeddings = int(withEmbeddings.Int64)
	}

	if earliest.Valid {
		stats.Earliest = earliest.Time
	}
	if latest.Valid {
		stats.Latest = latest.Time
	}
	if earliest.Valid && latest.Valid {
		stats.RangeSeconds = latest.Time.Sub(earliest.Time).Seconds()
	}
	return stats, nil
}

// ClearSession implements Store.ClearSession.
func (s *SQLStore) ClearSession(ctx context.Context, sessionID string) (int, error) {
	query := fmt.Sprintf(`DELETE FROM conversations WHERE session_id = %s`, s.ph(1))
	res, err := s.db.ExecContext(ctx, query, sessionID)
	if err != nil {
		return 0, sageerr.New(sageerr.StorageTransient, "storage", fmt.Errorf("clear session: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, sageerr.New(sageerr.StorageTransient, "storage", fmt.Errorf("rows affected: %w", err))
	}
	if s.index != nil {
		// Best-effort: the index is an accelerator; a stale entry there
		// is skipped by hydrate, whose row lookup fails once the row is
		// deleted.
		if err := s.index.DeleteCollection(ctx, s.collection+":"+sessionID); err != nil {
			slog.Debug("vector index has no per-session collection to clear", "session_id", sessionID, "error", err)
		}
	}
	return int(n), nil
}

// GetRecent implements Store.GetRecent.
func (s *SQLStore) GetRecent(ctx context.Context, n int) ([]model.StoredMemory, error) {
	if n <= 0 {
		n = 10
	}
	query := fmt.Sprintf(`SELECT id, session_id, turn_id, role, content, embedding, metadata, is_agent_report, agent_metadata, created_at
FROM conversations ORDER BY created_at DESC LIMIT %s`, s.ph(1))
	rows, err := s.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, sageerr.New(sageerr.StorageTransient, "storage", fmt.Errorf("get recent: %w", err))
	}
	defer rows.Close()

	var out []model.StoredMemory
	for rows.Next() {
		r, err := s.scanRow(rows)
		if err != nil {
			continue
		}
		out = append(out, r.toStoredMemory())
	}
	return out, nil
}

// Close implements Store.Close.
func (s *SQLStore) Close() error {
	if s.index != nil {
		s.index.Close()
	}
	return s.db.Close()
}

var _ Store = (*SQLStore)(nil)
