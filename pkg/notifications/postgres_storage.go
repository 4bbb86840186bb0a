package notifications

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage is a PostgreSQL-backed implementation of the Storage
// interface. The schema is applied by the goose migration shipped in
// migrations/.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a notification storage on top of the given
// connection pool.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

const notificationColumns = `id, user_id, tenant_id, type, priority, title, message,
	related_entity_type, related_entity_id, read, read_at, created_at`

func scanNotification(row pgx.Row) (*Notification, error) {
	var (
		n          Notification
		entityType *string
		entityID   *string
	)
	err := row.Scan(
		&n.ID, &n.UserID, &n.TenantID, &n.Type, &n.Priority, &n.Title, &n.Message,
		&entityType, &entityID, &n.Read, &n.ReadAt, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if entityType != nil && entityID != nil {
		n.RelatedEntity = &RelatedEntity{Type: *entityType, ID: *entityID}
	}
	return &n, nil
}

func (s *PostgresStorage) Create(ctx context.Context, notif Notification) error {
	if notif.ID == "" {
		return ErrMissingID
	}
	if notif.UserID == "" {
		return ErrMissingUserID
	}
	if notif.TenantID == "" {
		return ErrMissingTenantID
	}

	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = time.Now()
	}

	var entityType, entityID *string
	if notif.RelatedEntity != nil {
		entityType = &notif.RelatedEntity.Type
		entityID = &notif.RelatedEntity.ID
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, tenant_id, type, priority, title, message,
			related_entity_type, related_entity_id, read, read_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		notif.ID, notif.UserID, notif.TenantID, notif.Type, notif.Priority,
		notif.Title, notif.Message, entityType, entityID, notif.Read, notif.ReadAt, notif.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Get(ctx context.Context, scope Scope, notifID string) (*Notification, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE tenant_id = $1 AND user_id = $2 AND id = $3`,
		scope.TenantID, scope.UserID, notifID,
	)

	notif, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to fetch notification: %w", err)
	}
	return notif, nil
}

func (s *PostgresStorage) List(ctx context.Context, scope Scope, opts ListOptions) ([]Notification, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + notificationColumns + ` FROM notifications WHERE tenant_id = $1 AND user_id = $2`)
	args := []any{scope.TenantID, scope.UserID}

	if opts.OnlyUnread {
		sb.WriteString(" AND read = FALSE")
	}
	if len(opts.Types) > 0 {
		types := make([]string, len(opts.Types))
		for i, t := range opts.Types {
			types[i] = string(t)
		}
		args = append(args, types)
		sb.WriteString(" AND type = ANY($" + strconv.Itoa(len(args)) + ")")
	}
	if opts.Since != nil {
		args = append(args, *opts.Since)
		sb.WriteString(" AND created_at > $" + strconv.Itoa(len(args)))
	}

	sb.WriteString(" ORDER BY created_at DESC")
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		sb.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		sb.WriteString(" OFFSET $" + strconv.Itoa(len(args)))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	defer rows.Close()

	notifications := []Notification{}
	for rows.Next() {
		notif, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to decode notification: %w", err)
		}
		notifications = append(notifications, *notif)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}
	return notifications, nil
}

func (s *PostgresStorage) MarkRead(ctx context.Context, scope Scope, notifID string) (bool, error) {
	// Matching only unread rows makes the transition idempotent and lets
	// RowsAffected reflect whether anything actually changed.
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET read = TRUE, read_at = NOW()
		WHERE tenant_id = $1 AND user_id = $2 AND id = $3 AND read = FALSE`,
		scope.TenantID, scope.UserID, notifID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStorage) Delete(ctx context.Context, scope Scope, notifIDs ...string) error {
	if len(notifIDs) == 0 {
		return nil
	}

	_, err := s.pool.Exec(ctx, `
		DELETE FROM notifications
		WHERE tenant_id = $1 AND user_id = $2 AND id = ANY($3)`,
		scope.TenantID, scope.UserID, notifIDs,
	)
	if err != nil {
		return fmt.Errorf("failed to delete notifications: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Count(ctx context.Context, scope Scope) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications WHERE tenant_id = $1 AND user_id = $2`,
		scope.TenantID, scope.UserID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

func (s *PostgresStorage) CountUnread(ctx context.Context, scope Scope) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications WHERE tenant_id = $1 AND user_id = $2 AND read = FALSE`,
		scope.TenantID, scope.UserID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}
