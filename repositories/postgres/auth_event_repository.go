package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bfyxzls/webSecurity/models"
	"github.com/bfyxzls/webSecurity/repositories"
)

// AuthEventRepository implements the repositories.AuthEventRepository interface
type AuthEventRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuthEventRepository creates a new auth event repository
func NewAuthEventRepository(db *DB, logger *zap.Logger) repositories.AuthEventRepository {
	return &AuthEventRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new auth event
func (r *AuthEventRepository) Insert(ctx context.Context, event *models.AuthEvent) error {
	query := `
		INSERT INTO auth_events (id, username, outcome, success, request_id, ip_address, user_agent, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		event.ID,
		event.Username,
		event.Outcome,
		event.Success,
		event.RequestID,
		event.IPAddress,
		event.UserAgent,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auth event: %w", err)
	}

	r.logger.Debug("auth event inserted", zap.String("id", event.ID.String()), zap.String("outcome", event.Outcome))
	return nil
}

// GetByUsername retrieves the most recent events for a username
func (r *AuthEventRepository) GetByUsername(ctx context.Context, username string, limit int) ([]*models.AuthEvent, error) {
	query := `
		SELECT id, username, outcome, success, request_id, ip_address, user_agent, timestamp
		FROM auth_events
		WHERE username = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, username, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query auth events: %w", err)
	}
	defer rows.Close()

	var events []*models.AuthEvent
	for rows.Next() {
		event := &models.AuthEvent{}
		if err := rows.Scan(
			&event.ID,
			&event.Username,
			&event.Outcome,
			&event.Success,
			&event.RequestID,
			&event.IPAddress,
			&event.UserAgent,
			&event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan auth event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auth event rows: %w", err)
	}

	return events, nil
}

// CountFailuresSince counts failed attempts for a username since the given time
func (r *AuthEventRepository) CountFailuresSince(ctx context.Context, username string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM auth_events WHERE username = $1 AND success = false AND timestamp >= $2`

	var count int
	executor := GetExecutor(ctx, r.db)
	if err := executor.QueryRowContext(ctx, query, username, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count auth failures: %w", err)
	}
	return count, nil
}
