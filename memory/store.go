// Package memory implements the conversation memory store: durable sessions,
// immutable conversation turns, and long-term per-user facts, backed by
// SQLite. It supplies the short-term context and fact summaries injected into
// each orchestration turn and enforces the storage-retention policy.
//
// Layout is three tables - sessions, conversations, memory_facts - indexed
// for "turns by session, newest-first" and "facts by user". Turns are
// append-only: SaveTurn is the only write path for conversation history, and
// rows are only ever removed by retention cleanup or archival.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite"

	"github.com/miniagi/miniagi/logging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Session anchors a conversation's continuity across turns.
type Session struct {
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `json:"message_count"`
}

// Turn is one persisted (user message, AI answer) pair tied to a session.
// Turns are immutable once written.
type Turn struct {
	ID          int64          `json:"id"`
	SessionID   string         `json:"session_id"`
	UserID      string         `json:"user_id,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	UserMessage string         `json:"user_message"`
	AIResponse  string         `json:"ai_response"`
	Persona     string         `json:"persona,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Fact is a durable per-user key-value belief with a confidence score.
// Uniquely identified by (user_id, fact_key); writes upsert.
type Fact struct {
	UserID        string    `json:"user_id"`
	FactType      string    `json:"fact_type"`
	FactKey       string    `json:"fact_key"`
	FactValue     string    `json:"fact_value"`
	Confidence    float64   `json:"confidence"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	SourceSession string    `json:"source_session,omitempty"`
}

// Options configure a Store.
type Options struct {
	Logger logging.Logger
	// MaxSizeMB is the hard database size budget used by maintenance checks.
	MaxSizeMB float64
	// WarnSizeMB is the early-warning threshold.
	WarnSizeMB float64
}

// Store is the SQLite-backed memory store. Safe for concurrent use across
// sessions; SQLite runs in WAL mode with a busy timeout so independent turns
// can read and write concurrently.
type Store struct {
	db     *sql.DB
	path   string
	logger logging.Logger
	opts   Options
}

// Open creates (or opens) the store at dbPath and ensures the schema exists.
func Open(dbPath string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Logger: logging.NoOpLogger{}, MaxSizeMB: 100, WarnSizeMB: 80}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for concurrent readers alongside the single writer.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, path: dbPath, logger: opts.Logger, opts: opts}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS conversations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		timestamp INTEGER NOT NULL,
		user_message TEXT NOT NULL,
		ai_response TEXT NOT NULL,
		persona TEXT NOT NULL DEFAULT '',
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_session ON conversations(session_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_conversations_timestamp ON conversations(timestamp);

	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		last_activity INTEGER NOT NULL,
		message_count INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_last_activity ON sessions(last_activity);

	CREATE TABLE IF NOT EXISTS memory_facts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL DEFAULT '',
		fact_type TEXT NOT NULL DEFAULT 'general',
		fact_key TEXT NOT NULL,
		fact_value TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 1.0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		source_session TEXT NOT NULL DEFAULT '',
		UNIQUE(user_id, fact_key)
	);
	CREATE INDEX IF NOT EXISTS idx_facts_user ON memory_facts(user_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetOrCreateSession returns sessionID unchanged when it already exists;
// otherwise it mints a new globally-unique id and persists a fresh session
// row with message_count=0. Minting uses a v4 UUID, so concurrent creations
// cannot collide.
func (s *Store) GetOrCreateSession(ctx context.Context, sessionID, userID string) (string, error) {
	if sessionID != "" {
		var found string
		err := s.db.QueryRowContext(ctx,
			`SELECT session_id FROM sessions WHERE session_id = ?`, sessionID).Scan(&found)
		if err == nil {
			return found, nil
		}
		if err != sql.ErrNoRows {
			return "", fmt.Errorf("look up session: %w", err)
		}
	}

	id := uuid.NewString()
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_id, created_at, last_activity, message_count)
		 VALUES (?, ?, ?, ?, 0)`,
		id, userID, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	s.logger.Debug("session created", "session_id", id, "user_id", userID)
	return id, nil
}

// GetSession returns the session row, or nil when absent.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, user_id, created_at, last_activity, message_count
		 FROM sessions WHERE session_id = ?`, sessionID)

	var sess Session
	var createdAt, lastActivity int64
	err := row.Scan(&sess.SessionID, &sess.UserID, &createdAt, &lastActivity, &sess.MessageCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.LastActivity = time.Unix(lastActivity, 0)
	return &sess, nil
}

// SaveTurnParams are the inputs to SaveTurn. UserID, Persona and Metadata
// are optional.
type SaveTurnParams struct {
	SessionID   string
	UserMessage string
	AIResponse  string
	UserID      string
	Persona     string
	Metadata    map[string]any
}

// SaveTurn inserts one immutable conversation turn and atomically bumps the
// owning session's last_activity and message_count. This is the only write
// path for conversation history; the session row is created implicitly if
// the turn arrives before an explicit GetOrCreateSession.
func (s *Store) SaveTurn(ctx context.Context, p SaveTurnParams) (int64, error) {
	var metadata any
	if p.Metadata != nil {
		b, err := json.Marshal(p.Metadata)
		if err != nil {
			return 0, fmt.Errorf("encode turn metadata: %w", err)
		}
		metadata = string(b)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin save turn: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (session_id, user_id, timestamp, user_message, ai_response, persona, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.SessionID, p.UserID, now, p.UserMessage, p.AIResponse, p.Persona, metadata,
	)
	if err != nil {
		return 0, fmt.Errorf("insert turn: %w", err)
	}
	turnID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("turn id: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_id, created_at, last_activity, message_count)
		 VALUES (?, ?, ?, ?, 1)
		 ON CONFLICT(session_id) DO UPDATE SET
			last_activity = excluded.last_activity,
			message_count = sessions.message_count + 1`,
		p.SessionID, p.UserID, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("update session activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save turn: %w", err)
	}
	return turnID, nil
}

// History returns up to limit most recent turns for a session in
// chronological (oldest-first) order.
func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, user_id, timestamp, user_message, ai_response, persona, metadata
		 FROM conversations
		 WHERE session_id = ?
		 ORDER BY timestamp DESC, id DESC
		 LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}
	// Reverse from newest-first to chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// contextHeader prefixes the rendered recent-context block.
const contextHeader = "Previous conversation:\n"

// RecentContext renders the most recent turns (bounded by maxTurns),
// oldest-first, as alternating "User:"/"AI:" lines. The total rendered size
// never exceeds maxChars: the header counts toward the budget, a turn that
// would overflow is dropped entirely, and rendering stops at the first
// overflow (so the newest turns are the ones shed).
func (s *Store) RecentContext(ctx context.Context, sessionID string, maxTurns, maxChars int) (string, error) {
	turns, err := s.History(ctx, sessionID, maxTurns)
	if err != nil {
		return "", err
	}
	if len(turns) == 0 {
		return "", nil
	}

	total := len(contextHeader)
	var parts []string
	for _, turn := range turns {
		text := fmt.Sprintf("User: %s\nAI: %s\n", turn.UserMessage, turn.AIResponse)
		cost := len(text)
		if len(parts) > 0 {
			cost++ // joining newline
		}
		if total+cost > maxChars {
			break
		}
		parts = append(parts, text)
		total += cost
	}
	if len(parts) == 0 {
		return "", nil
	}
	return contextHeader + strings.Join(parts, "\n"), nil
}

// SaveFactParams are the inputs to SaveFact. FactType defaults to "general"
// and Confidence to 1.0 when zero-valued.
type SaveFactParams struct {
	UserID        string
	FactType      string
	FactKey       string
	FactValue     string
	Confidence    float64
	SourceSession string
}

// SaveFact upserts a long-term fact keyed by (user_id, fact_key): an
// existing key gets the new value and confidence and a bumped updated_at
// rather than a duplicate row.
func (s *Store) SaveFact(ctx context.Context, p SaveFactParams) error {
	if p.FactKey == "" {
		return fmt.Errorf("save fact: fact_key is required")
	}
	if p.FactType == "" {
		p.FactType = "general"
	}
	if p.Confidence == 0 {
		p.Confidence = 1.0
	}

	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_facts (user_id, fact_type, fact_key, fact_value, confidence, created_at, updated_at, source_session)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, fact_key) DO UPDATE SET
			fact_value = excluded.fact_value,
			confidence = excluded.confidence,
			updated_at = excluded.updated_at`,
		p.UserID, p.FactType, p.FactKey, p.FactValue, p.Confidence, now, now, p.SourceSession,
	)
	if err != nil {
		return fmt.Errorf("upsert fact: %w", err)
	}
	return nil
}

// Facts returns facts filtered by user and optionally by type, ordered by
// confidence descending then updated_at descending.
func (s *Store) Facts(ctx context.Context, userID, factType string) ([]Fact, error) {
	query := `SELECT user_id, fact_type, fact_key, fact_value, confidence, created_at, updated_at, source_session
	          FROM memory_facts WHERE user_id = ?`
	args := []any{userID}
	if factType != "" {
		query += ` AND fact_type = ?`
		args = append(args, factType)
	}
	query += ` ORDER BY confidence DESC, updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var f Fact
		var createdAt, updatedAt int64
		if err := rows.Scan(&f.UserID, &f.FactType, &f.FactKey, &f.FactValue, &f.Confidence, &createdAt, &updatedAt, &f.SourceSession); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		f.CreatedAt = time.Unix(createdAt, 0)
		f.UpdatedAt = time.Unix(updatedAt, 0)
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}
	return facts, nil
}

// FormatFacts renders all facts for a user as one "- key: value" line per
// fact under a short header; empty string when the user has none.
func (s *Store) FormatFacts(ctx context.Context, userID string) (string, error) {
	facts, err := s.Facts(ctx, userID, "")
	if err != nil {
		return "", err
	}
	if len(facts) == 0 {
		return "", nil
	}

	lines := make([]string, 0, len(facts))
	for _, f := range facts {
		lines = append(lines, fmt.Sprintf("- %s: %s", f.FactKey, f.FactValue))
	}
	return "Known facts about user:\n" + strings.Join(lines, "\n"), nil
}

// Search performs a case-insensitive substring match over user messages and
// AI responses, optionally narrowed by user or session, newest-first, bounded
// by limit.
func (s *Store) Search(ctx context.Context, query, userID, sessionID string, limit int) ([]Turn, error) {
	sqlQuery := `SELECT id, session_id, user_id, timestamp, user_message, ai_response, persona, metadata
	             FROM conversations
	             WHERE (LOWER(user_message) LIKE '%' || LOWER(?) || '%'
	                OR LOWER(ai_response) LIKE '%' || LOWER(?) || '%')`
	args := []any{query, query}
	if userID != "" {
		sqlQuery += ` AND user_id = ?`
		args = append(args, userID)
	}
	if sessionID != "" {
		sqlQuery += ` AND session_id = ?`
		args = append(args, sessionID)
	}
	sqlQuery += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

// CleanupOlderThan deletes all turns belonging to sessions whose
// last_activity strictly predates now minus ageDays, then deletes those
// sessions. The cutoff is computed once at the start, so a session touched
// after the cutoff survives even when cleanup overlaps its write. Returns
// the number of sessions removed.
func (s *Store) CleanupOlderThan(ctx context.Context, ageDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -ageDays).Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin cleanup: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM conversations WHERE session_id IN (
			SELECT session_id FROM sessions WHERE last_activity < ?
		)`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale turns: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE last_activity < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale sessions: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale sessions rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit cleanup: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("retention cleanup complete", "sessions_deleted", deleted, "age_days", ageDays)
	}
	return deleted, nil
}

// SessionStats summarizes one session.
type SessionStats struct {
	Session
	TurnCount int `json:"turn_count"`
}

// Stats returns statistics for one session, or nil when it does not exist.
func (s *Store) SessionStats(ctx context.Context, sessionID string) (*SessionStats, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil || sess == nil {
		return nil, err
	}

	var count int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE session_id = ?`, sessionID).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("count session turns: %w", err)
	}
	return &SessionStats{Session: *sess, TurnCount: count}, nil
}

func scanTurns(rows *sql.Rows) ([]Turn, error) {
	var turns []Turn
	for rows.Next() {
		var t Turn
		var ts int64
		var metadata sql.NullString
		if err := rows.Scan(&t.ID, &t.SessionID, &t.UserID, &ts, &t.UserMessage, &t.AIResponse, &t.Persona, &metadata); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Timestamp = time.Unix(ts, 0)
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &t.Metadata); err != nil {
				return nil, fmt.Errorf("decode turn metadata: %w", err)
			}
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}
