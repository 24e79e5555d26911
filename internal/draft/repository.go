package draft

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "pigeon/pkg/errors"
)

// NewDraftNotFoundError reports an operation against an unknown draft
// id.
func NewDraftNotFoundError(id string) *pkgerrors.Error {
	return pkgerrors.ErrNotFound.
		WithMessage("Draft %s not found", id).
		WithDetail("draft_id", id)
}

type Repository interface {
	Create(ctx context.Context, d *Draft) error
	Get(ctx context.Context, id string) (*Draft, error)
	List(ctx context.Context, campaignID string, status Status, limit, offset int) ([]Draft, error)
	Update(ctx context.Context, d *Draft) error
	// UpdateStatusIfDecidable flips the status only while the draft is
	// still in a draft-like state, returning false when the draft was
	// already decided.
	UpdateStatusIfDecidable(ctx context.Context, id string, to Status) (bool, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, d *Draft) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now

	recipient, err := json.Marshal(d.Recipient)
	if err != nil {
		return fmt.Errorf("failed to encode recipient: %w", err)
	}
	personalization, err := json.Marshal(d.Personalization)
	if err != nil {
		return fmt.Errorf("failed to encode personalization: %w", err)
	}
	var engagement []byte
	if d.Engagement != nil {
		if engagement, err = json.Marshal(d.Engagement); err != nil {
			return fmt.Errorf("failed to encode engagement: %w", err)
		}
	}

	query := `
		INSERT INTO drafts (id, campaign_id, status, recipient, subject, content,
			ai_generated, score, personalization, scheduled_at, sent_at, engagement, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.db.ExecContext(ctx, query,
		d.ID, nullableString(d.CampaignID), d.Status, recipient, d.Subject, d.Content,
		d.AIGenerated, d.Score, personalization, d.ScheduledAt, d.SentAt, engagement,
		d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create draft: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Draft, error) {
	query := draftSelect + ` WHERE id = $1`

	d, err := scanDraft(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewDraftNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return d, nil
}

func (r *PostgresRepository) List(ctx context.Context, campaignID string, status Status, limit, offset int) ([]Draft, error) {
	query := draftSelect
	args := []interface{}{}
	where := ""

	if campaignID != "" {
		args = append(args, campaignID)
		where = fmt.Sprintf(" WHERE campaign_id = $%d", len(args))
	}
	if status != "" {
		args = append(args, status)
		if where == "" {
			where = fmt.Sprintf(" WHERE status = $%d", len(args))
		} else {
			where += fmt.Sprintf(" AND status = $%d", len(args))
		}
	}
	query += where + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer rows.Close()

	var drafts []Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		drafts = append(drafts, *d)
	}

	return drafts, rows.Err()
}

func (r *PostgresRepository) Update(ctx context.Context, d *Draft) error {
	d.UpdatedAt = time.Now()

	personalization, err := json.Marshal(d.Personalization)
	if err != nil {
		return fmt.Errorf("failed to encode personalization: %w", err)
	}

	query := `
		UPDATE drafts
		SET status = $1, subject = $2, content = $3, score = $4,
			personalization = $5, scheduled_at = $6, sent_at = $7, updated_at = $8
		WHERE id = $9
	`

	res, err := r.db.ExecContext(ctx, query,
		d.Status, d.Subject, d.Content, d.Score,
		personalization, d.ScheduledAt, d.SentAt, d.UpdatedAt, d.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update draft: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return NewDraftNotFoundError(d.ID)
	}

	return nil
}

func (r *PostgresRepository) UpdateStatusIfDecidable(ctx context.Context, id string, to Status) (bool, error) {
	query := `
		UPDATE drafts
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status IN ('draft', 'pending_approval')
	`

	res, err := r.db.ExecContext(ctx, query, to, time.Now(), id)
	if err != nil {
		return false, fmt.Errorf("failed to update draft status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

const draftSelect = `
	SELECT id, campaign_id, status, recipient, subject, content,
		ai_generated, score, personalization, scheduled_at, sent_at, engagement, created_at, updated_at
	FROM drafts
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDraft(row rowScanner) (*Draft, error) {
	var d Draft
	var campaignID sql.NullString
	var recipient, personalization, engagement []byte

	err := row.Scan(
		&d.ID, &campaignID, &d.Status, &recipient, &d.Subject, &d.Content,
		&d.AIGenerated, &d.Score, &personalization, &d.ScheduledAt, &d.SentAt, &engagement,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.CampaignID = campaignID.String
	if len(recipient) > 0 {
		if err := json.Unmarshal(recipient, &d.Recipient); err != nil {
			return nil, fmt.Errorf("failed to decode recipient: %w", err)
		}
	}
	if len(personalization) > 0 {
		if err := json.Unmarshal(personalization, &d.Personalization); err != nil {
			return nil, fmt.Errorf("failed to decode personalization: %w", err)
		}
	}
	if len(engagement) > 0 {
		if err := json.Unmarshal(engagement, &d.Engagement); err != nil {
			return nil, fmt.Errorf("failed to decode engagement: %w", err)
		}
	}

	return &d, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
