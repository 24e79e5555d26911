package campaign

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	pkgerrors "pigeon/pkg/errors"
	"pigeon/pkg/models"
)

type Repository interface {
	Create(ctx context.Context, c *Campaign) error
	Get(ctx context.Context, id string) (*Campaign, error)
	List(ctx context.Context, status Status, limit, offset int) ([]Campaign, error)
	Update(ctx context.Context, c *Campaign) error
	Delete(ctx context.Context, id string) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

// campaignRow carries the JSONB-encoded columns between Go and SQL.
type campaignRow struct {
	recipients []byte
	schedule   []byte
	delivery   []byte
	metrics    []byte
}

func encodeCampaign(c *Campaign) (campaignRow, error) {
	var row campaignRow
	var err error

	if row.recipients, err = json.Marshal(c.Recipients); err != nil {
		return row, fmt.Errorf("failed to encode recipients: %w", err)
	}
	if c.Schedule != nil {
		if row.schedule, err = json.Marshal(c.Schedule); err != nil {
			return row, fmt.Errorf("failed to encode schedule: %w", err)
		}
	}
	if row.delivery, err = json.Marshal(c.Delivery); err != nil {
		return row, fmt.Errorf("failed to encode delivery config: %w", err)
	}
	if row.metrics, err = json.Marshal(c.Metrics); err != nil {
		return row, fmt.Errorf("failed to encode metrics: %w", err)
	}
	return row, nil
}

func (r *PostgresRepository) Create(ctx context.Context, c *Campaign) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	row, err := encodeCampaign(c)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO campaigns (id, name, status, type, audience_filter, recipients,
			schedule, subject, content, delivery, metrics, approved, owner, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = r.db.ExecContext(ctx, query,
		c.ID, c.Name, c.Status, c.Type, c.AudienceFilter, row.recipients,
		row.schedule, c.Subject, c.Content, row.delivery, row.metrics,
		c.Approved, c.Owner, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return pkgerrors.ErrConflict.WithCause(err).
				WithDetail("message", fmt.Sprintf("campaign '%s' already exists", c.Name))
		}
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Campaign, error) {
	query := `
		SELECT id, name, status, type, audience_filter, recipients,
			schedule, subject, content, delivery, metrics, approved, owner, created_at, updated_at
		FROM campaigns
		WHERE id = $1
	`

	c, err := scanCampaign(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewCampaignNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) List(ctx context.Context, status Status, limit, offset int) ([]Campaign, error) {
	query := `
		SELECT id, name, status, type, audience_filter, recipients,
			schedule, subject, content, delivery, metrics, approved, owner, created_at, updated_at
		FROM campaigns
	`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []Campaign
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, *c)
	}

	return campaigns, rows.Err()
}

func (r *PostgresRepository) Update(ctx context.Context, c *Campaign) error {
	c.UpdatedAt = time.Now()

	row, err := encodeCampaign(c)
	if err != nil {
		return err
	}

	query := `
		UPDATE campaigns
		SET name = $1, status = $2, audience_filter = $3, recipients = $4,
			schedule = $5, subject = $6, content = $7, delivery = $8,
			metrics = $9, approved = $10, updated_at = $11
		WHERE id = $12
	`

	res, err := r.db.ExecContext(ctx, query,
		c.Name, c.Status, c.AudienceFilter, row.recipients,
		row.schedule, c.Subject, c.Content, row.delivery,
		row.metrics, c.Approved, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return NewCampaignNotFoundError(c.ID)
	}

	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return NewCampaignNotFoundError(id)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(row rowScanner) (*Campaign, error) {
	var c Campaign
	var recipients, schedule, delivery, metrics []byte

	err := row.Scan(
		&c.ID, &c.Name, &c.Status, &c.Type, &c.AudienceFilter, &recipients,
		&schedule, &c.Subject, &c.Content, &delivery, &metrics,
		&c.Approved, &c.Owner, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(recipients) > 0 {
		if err := json.Unmarshal(recipients, &c.Recipients); err != nil {
			return nil, fmt.Errorf("failed to decode recipients: %w", err)
		}
	}
	if len(schedule) > 0 {
		var s Schedule
		if err := json.Unmarshal(schedule, &s); err != nil {
			return nil, fmt.Errorf("failed to decode schedule: %w", err)
		}
		c.Schedule = &s
	}
	if len(delivery) > 0 {
		if err := json.Unmarshal(delivery, &c.Delivery); err != nil {
			return nil, fmt.Errorf("failed to decode delivery config: %w", err)
		}
	}
	if len(metrics) > 0 {
		if err := json.Unmarshal(metrics, &c.Metrics); err != nil {
			return nil, fmt.Errorf("failed to decode metrics: %w", err)
		}
	}
	if c.Recipients == nil {
		c.Recipients = []models.Recipient{}
	}

	return &c, nil
}
