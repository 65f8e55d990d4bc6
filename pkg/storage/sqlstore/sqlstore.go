// Package sqlstore implements storage.Driver over database/sql. It is
// database-agnostic and is embedded by the sqlite and postgres drivers, which
// supply the connection and a Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/KimYongKuk/commercial-analysis/pkg/llm"
	"github.com/KimYongKuk/commercial-analysis/pkg/storage"
)

// Dialect captures what differs between SQL backends.
type Dialect struct {
	// Name is used in error messages.
	Name string

	// Schema holds the idempotent DDL statements run by Migrate.
	Schema []string

	// NumberedParams rewrites "?" placeholders as $1, $2, ...
	NumberedParams bool
}

// Store provides turn storage on a *sql.DB.
type Store struct {
	DB      *sql.DB
	dialect Dialect
}

// New wraps db. Call Migrate before first use.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{DB: db, dialect: dialect}
}

// Migrate creates the tables and indexes if they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: applying schema: %w", s.dialect.Name, err)
		}
	}
	return nil
}

const turnColumns = "id, conversation_id, user_id, query, answer, error, status, started_at_ns, duration_ns"

// Put stores a turn. Returns false if the ID already exists.
func (s *Store) Put(ctx context.Context, turn *llm.ConversationTurn) (bool, error) {
	if turn == nil {
		return false, errors.New("cannot store nil turn")
	}
	if turn.ID == "" {
		return false, errors.New("cannot store turn without an id")
	}

	res, err := s.DB.ExecContext(ctx, s.rebind(
		"INSERT INTO turns ("+turnColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING"),
		turn.ID,
		turn.ConversationID,
		turn.User,
		turn.Query,
		turn.Answer,
		turn.Error,
		string(turn.Status),
		turn.StartedAt.UnixNano(),
		int64(turn.Duration),
	)
	if err != nil {
		return false, fmt.Errorf("inserting turn: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}

// Get retrieves a turn by its ID.
func (s *Store) Get(ctx context.Context, id string) (*llm.ConversationTurn, error) {
	row := s.DB.QueryRowContext(ctx, s.rebind("SELECT "+turnColumns+" FROM turns WHERE id = ?"), id)

	turn, err := scanTurn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("querying turn: %w", err)
	}
	return turn, nil
}

// ListByConversation returns the turns of one conversation, oldest first.
func (s *Store) ListByConversation(ctx context.Context, conversationID string) ([]*llm.ConversationTurn, error) {
	rows, err := s.DB.QueryContext(ctx, s.rebind(
		"SELECT "+turnColumns+" FROM turns WHERE conversation_id = ? ORDER BY started_at_ns, id"),
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}
	defer rows.Close()

	var turns []*llm.ConversationTurn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

const conversationsQuery = `
SELECT t.conversation_id,
       COUNT(*),
       MIN(t.started_at_ns),
       MAX(t.started_at_ns),
       (SELECT f.query FROM turns f
         WHERE f.conversation_id = t.conversation_id
         ORDER BY f.started_at_ns, f.id LIMIT 1),
       (SELECT f.user_id FROM turns f
         WHERE f.conversation_id = t.conversation_id
         ORDER BY f.started_at_ns, f.id LIMIT 1)
  FROM turns t
 WHERE t.conversation_id <> ''
 GROUP BY t.conversation_id
 ORDER BY MAX(t.started_at_ns) DESC, t.conversation_id`

// Conversations summarizes every conversation, most recently active first.
func (s *Store) Conversations(ctx context.Context) ([]storage.ConversationSummary, error) {
	rows, err := s.DB.QueryContext(ctx, conversationsQuery)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var summaries []storage.ConversationSummary
	for rows.Next() {
		var (
			summary     storage.ConversationSummary
			first, last int64
		)
		if err := rows.Scan(&summary.ID, &summary.TurnCount, &first, &last, &summary.FirstQuery, &summary.User); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		summary.StartedAt = time.Unix(0, first).UTC()
		summary.UpdatedAt = time.Unix(0, last).UTC()
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTurn(row scanner) (*llm.ConversationTurn, error) {
	var (
		turn      llm.ConversationTurn
		status    string
		startedAt int64
		duration  int64
	)
	err := row.Scan(
		&turn.ID,
		&turn.ConversationID,
		&turn.User,
		&turn.Query,
		&turn.Answer,
		&turn.Error,
		&status,
		&startedAt,
		&duration,
	)
	if err != nil {
		return nil, err
	}

	turn.Status = llm.TurnStatus(status)
	turn.StartedAt = time.Unix(0, startedAt).UTC()
	turn.Duration = time.Duration(duration)
	return &turn, nil
}

// rebind rewrites "?" placeholders for dialects with numbered parameters.
func (s *Store) rebind(query string) string {
	if !s.dialect.NumberedParams {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
