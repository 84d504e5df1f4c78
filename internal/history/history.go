// Package history provides SQLite-based persistence for chat messages.
// Messages form an append-only log; edits and deletes are tombstone flags.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/chatlog-go/internal/logger"
)

// ErrNotFound is returned when no message matches the lookup.
var ErrNotFound = errors.New("message not found")

const schema = `
CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id INTEGER NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    context TEXT NOT NULL DEFAULT 'Onboarding',
    created_at DATETIME NOT NULL,
    parent_id INTEGER REFERENCES messages(id),
    is_edited INTEGER NOT NULL DEFAULT 0,
    is_deleted INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_owner_context ON messages (owner_id, context);
CREATE INDEX IF NOT EXISTS idx_parent ON messages (parent_id);
`

const columns = `id, owner_id, role, content, context, created_at, parent_id, is_edited, is_deleted`

const active = `is_edited = 0 AND is_deleted = 0`

type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds the reads shared by Store and Tx.
type queries struct {
	r runner
}

// Store is the message log backed by a single SQLite connection, so
// transactions are serialized.
type Store struct {
	queries
	db *sql.DB
}

// Tx is a unit of work; paired flag updates and paired inserts go through it.
type Tx struct {
	queries
}

// Open opens (creating if needed) the SQLite database at path and ensures the
// messages table exists.
func Open(path string) (*Store, error) {
	if path == "" {
		path = "history.db"
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(10000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create messages table: %w", err)
	}
	logger.L.Info("sqlite history DB initialized", "path", path)

	return &Store{queries: queries{r: db}, db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rerr := sqlTx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
				logger.L.Warn("rollback failed", "error", rerr)
			}
		}
	}()

	if err := fn(&Tx{queries: queries{r: sqlTx}}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// Query filters reads of the log. Zero values disable a filter.
type Query struct {
	OwnerID  int64
	Context  string
	BeforeID int64
	Exclude  []int64
	Skip     int
	Limit    int
	// NewestFirst orders by id descending instead of ascending.
	NewestFirst bool
}

// Active returns the owner's messages that carry no tombstone.
func (q queries) Active(ctx context.Context, f Query) ([]Message, error) {
	var b strings.Builder
	args := []any{f.OwnerID}
	b.WriteString(`SELECT ` + columns + ` FROM messages WHERE owner_id = ? AND ` + active)
	if f.Context != "" {
		b.WriteString(` AND context = ?`)
		args = append(args, f.Context)
	}
	if f.BeforeID > 0 {
		b.WriteString(` AND id < ?`)
		args = append(args, f.BeforeID)
	}
	if len(f.Exclude) > 0 {
		b.WriteString(` AND id NOT IN (?` + strings.Repeat(`,?`, len(f.Exclude)-1) + `)`)
		for _, id := range f.Exclude {
			args = append(args, id)
		}
	}
	if f.NewestFirst {
		b.WriteString(` ORDER BY id DESC`)
	} else {
		b.WriteString(` ORDER BY id ASC`)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	b.WriteString(` LIMIT ? OFFSET ?`)
	args = append(args, limit, max(f.Skip, 0))

	return q.list(ctx, b.String(), args...)
}

// Get returns a message owned by ownerID regardless of its flags.
func (q queries) Get(ctx context.Context, ownerID, id int64) (Message, error) {
	return q.one(ctx, `SELECT `+columns+` FROM messages WHERE id = ? AND owner_id = ?;`, id, ownerID)
}

// ActiveUser returns the owner's active user message with the given id.
func (q queries) ActiveUser(ctx context.Context, ownerID, id int64) (Message, error) {
	return q.one(ctx, `SELECT `+columns+` FROM messages WHERE id = ? AND owner_id = ? AND role = ? AND `+active+`;`, id, ownerID, RoleUser)
}

// LatestActiveUser returns the owner's most recent active user message in any context.
func (q queries) LatestActiveUser(ctx context.Context, ownerID int64) (Message, error) {
	return q.one(ctx, `SELECT `+columns+` FROM messages WHERE owner_id = ? AND role = ? AND `+active+` ORDER BY id DESC LIMIT 1;`, ownerID, RoleUser)
}

// Replies returns every assistant message whose parent is id.
func (q queries) Replies(ctx context.Context, id int64) ([]Message, error) {
	return q.list(ctx, `SELECT `+columns+` FROM messages WHERE parent_id = ? AND role = ? ORDER BY id ASC;`, id, RoleAssistant)
}

// Unanswered returns active user messages that have no active assistant reply.
func (q queries) Unanswered(ctx context.Context) ([]Message, error) {
	return q.list(ctx, `SELECT `+columns+` FROM messages u WHERE role = ? AND `+active+`
        AND NOT EXISTS (
            SELECT 1 FROM messages a
            WHERE a.parent_id = u.id AND a.role = ? AND a.is_edited = 0 AND a.is_deleted = 0
        ) ORDER BY id ASC;`, RoleUser, RoleAssistant)
}

// Insert appends msg to the log, filling in its ID and Timestamp.
func (t *Tx) Insert(ctx context.Context, msg *Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	var parent sql.NullInt64
	if msg.ParentID != nil {
		parent = sql.NullInt64{Int64: *msg.ParentID, Valid: true}
	}
	res, err := t.r.ExecContext(ctx, `INSERT INTO messages (owner_id, role, content, context, created_at, parent_id, is_edited, is_deleted) VALUES (?,?,?,?,?,?,?,?);`,
		msg.OwnerID, msg.Role, msg.Content, msg.Context, msg.Timestamp, parent, msg.IsEdited, msg.IsDeleted)
	if err != nil {
		return fmt.Errorf("insert %s message: %w", msg.Role, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert %s message: %w", msg.Role, err)
	}
	msg.ID = id
	return nil
}

// MarkEdited flags the message and its assistant replies as superseded.
func (t *Tx) MarkEdited(ctx context.Context, id int64) (int64, error) {
	return t.flag(ctx, "is_edited", id)
}

// MarkDeleted flags the message and its assistant replies as deleted.
func (t *Tx) MarkDeleted(ctx context.Context, id int64) (int64, error) {
	return t.flag(ctx, "is_deleted", id)
}

func (t *Tx) flag(ctx context.Context, column string, id int64) (int64, error) {
	res, err := t.r.ExecContext(ctx, `UPDATE messages SET `+column+` = 1 WHERE id = ? OR (parent_id = ? AND role = ?);`, id, id, RoleAssistant)
	if err != nil {
		return 0, fmt.Errorf("set %s on %d: %w", column, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("set %s on %d: %w", column, id, err)
	}
	return n, nil
}

func (q queries) one(ctx context.Context, query string, args ...any) (Message, error) {
	m, err := scan(q.r.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	return m, err
}

func (q queries) list(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := q.r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (Message, error) {
	var (
		m      Message
		parent sql.NullInt64
	)
	if err := s.Scan(&m.ID, &m.OwnerID, &m.Role, &m.Content, &m.Context, &m.Timestamp, &parent, &m.IsEdited, &m.IsDeleted); err != nil {
		return Message{}, err
	}
	if parent.Valid {
		p := parent.Int64
		m.ParentID = &p
	}
	return m, nil
}
