package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sciencegpt/core"
	"github.com/trezcool/sciencegpt/core/tutor"
)

const sessionColumns = `id, user_id, session_id, subject, grade, language, question, ai_response, context,
	request_type, provider, model_used, tokens_used, response_time_ms, cached, user_rating, user_feedback, created_at`

type sessionRow struct {
	ID             string      `db:"id"`
	UserID         string      `db:"user_id"`
	SessionID      string      `db:"session_id"`
	Subject        string      `db:"subject"`
	Grade          int         `db:"grade"`
	Language       string      `db:"language"`
	Question       string      `db:"question"`
	AIResponse     string      `db:"ai_response"`
	Context        string      `db:"context"`
	RequestType    string      `db:"request_type"`
	Provider       string      `db:"provider"`
	ModelUsed      string      `db:"model_used"`
	TokensUsed     int         `db:"tokens_used"`
	ResponseTimeMS int64       `db:"response_time_ms"`
	Cached         bool        `db:"cached"`
	UserRating     null.Int    `db:"user_rating"`
	UserFeedback   null.String `db:"user_feedback"`
	CreatedAt      time.Time   `db:"created_at"`
}

func toSessionRow(s tutor.Session) sessionRow {
	ctxJSON := string(s.Context)
	if ctxJSON == "" {
		ctxJSON = "{}"
	}
	return sessionRow{
		ID:             s.ID,
		UserID:         s.UserID,
		SessionID:      s.SessionID,
		Subject:        s.Subject,
		Grade:          s.Grade,
		Language:       s.Language,
		Question:       s.Question,
		AIResponse:     s.AIResponse,
		Context:        ctxJSON,
		RequestType:    s.RequestType,
		Provider:       s.Provider,
		ModelUsed:      s.ModelUsed,
		TokensUsed:     s.TokensUsed,
		ResponseTimeMS: s.ResponseTimeMS,
		Cached:         s.Cached,
		UserRating:     s.UserRating,
		UserFeedback:   s.UserFeedback,
		CreatedAt:      s.CreatedAt.UTC().Truncate(time.Second),
	}
}

func (r sessionRow) session() tutor.Session {
	return tutor.Session{
		ID:             r.ID,
		UserID:         r.UserID,
		SessionID:      r.SessionID,
		Subject:        r.Subject,
		Grade:          r.Grade,
		Language:       r.Language,
		Question:       r.Question,
		AIResponse:     r.AIResponse,
		Context:        json.RawMessage(r.Context),
		RequestType:    r.RequestType,
		Provider:       r.Provider,
		ModelUsed:      r.ModelUsed,
		TokensUsed:     r.TokensUsed,
		ResponseTimeMS: r.ResponseTimeMS,
		Cached:         r.Cached,
		UserRating:     r.UserRating,
		UserFeedback:   r.UserFeedback,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

type chatSessionRepository struct {
	db core.DB
}

var _ tutor.Repository = (*chatSessionRepository)(nil) // interface compliance check

func NewChatSessionRepository(db core.DB) tutor.Repository {
	return &chatSessionRepository{db: db}
}

func (repo chatSessionRepository) Create(ctx context.Context, s tutor.Session) (tutor.Session, error) {
	if s.ID == "" {
		s.ID = uuid.Must(uuid.NewV7()).String()
	}
	row := toSessionRow(s)
	err := core.InTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `INSERT INTO chat_sessions (` + sessionColumns + `) VALUES (:id, :user_id, :session_id, :subject,
			:grade, :language, :question, :ai_response, :context, :request_type, :provider, :model_used,
			:tokens_used, :response_time_ms, :cached, :user_rating, :user_feedback, :created_at)`
		if _, err := tx.NamedExecContext(ctx, q, row); err != nil {
			return errors.Wrap(err, "inserting chat session")
		}
		q = tx.Rebind(`UPDATE users SET total_questions_asked = total_questions_asked + 1 WHERE id = ?`)
		if _, err := tx.ExecContext(ctx, q, row.UserID); err != nil {
			return errors.Wrap(err, "counting user question")
		}
		return nil
	})
	if err != nil {
		return tutor.Session{}, err
	}
	return row.session(), nil
}

func (repo chatSessionRepository) GetByID(ctx context.Context, id string) (tutor.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return tutor.Session{}, tutor.ErrNotFound
	}
	var row sessionRow
	q := repo.db.Rebind(`SELECT ` + sessionColumns + ` FROM chat_sessions WHERE id = ?`)
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tutor.Session{}, tutor.ErrNotFound
		}
		return tutor.Session{}, errors.Wrap(err, "finding chat session by ID")
	}
	return row.session(), nil
}

func (repo chatSessionRepository) Query(ctx context.Context, userID string, filter tutor.HistoryFilter) ([]tutor.Session, error) {
	where := []string{`user_id = ?`}
	args := []interface{}{userID}
	if filter.Subject != "" {
		where = append(where, `subject = ?`)
		args = append(args, filter.Subject)
	}
	if filter.SessionID != "" {
		where = append(where, `session_id = ?`)
		args = append(args, filter.SessionID)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = tutor.DefaultHistoryLimit
	}
	args = append(args, limit)

	q := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC, id DESC LIMIT ?`
	var rows []sessionRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying chat sessions")
	}
	sessions := make([]tutor.Session, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, r.session())
	}
	return sessions, nil
}

// Update writes the rating fields, the exchange itself is immutable.
func (repo chatSessionRepository) Update(ctx context.Context, s tutor.Session) (tutor.Session, error) {
	row := toSessionRow(s)
	q := `UPDATE chat_sessions SET user_rating = :user_rating, user_feedback = :user_feedback WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return tutor.Session{}, errors.Wrap(err, "updating chat session")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return tutor.Session{}, tutor.ErrNotFound
	}
	return repo.GetByID(ctx, s.ID)
}

func (repo chatSessionRepository) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	q := repo.db.Rebind(`DELETE FROM chat_sessions WHERE created_at < ?`)
	res, err := repo.db.ExecContext(ctx, q, t.UTC().Truncate(time.Second))
	if err != nil {
		return 0, errors.Wrap(err, "deleting chat sessions")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting chat sessions")
	}
	return n, nil
}
