package postgres

import (
	"context"
	"time"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	return translate(r.db.WithContext(ctx).Create(n).Error)
}

func (r *notificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	var n domain.Notification
	err := r.db.WithContext(ctx).First(&n, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &n, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, status domain.NotificationStatus, page repository.Page) ([]*domain.Notification, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []*domain.Notification
	err := query.
		Order("created_at DESC").
		Scopes(paginate(page)).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

func (r *notificationRepository) Claim(ctx context.Context, id, token uuid.UUID, now time.Time, lease time.Duration) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ? AND status = ?", id, domain.NotificationPending).
		Where("claim_token IS NULL OR claimed_at < ?", now.Add(-lease)).
		Updates(map[string]interface{}{
			"claim_token": token,
			"claimed_at":  now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// transition applies an update to a pending notification still claimed with token
// and releases the claim.
func (r *notificationRepository) transition(ctx context.Context, id, token uuid.UUID, updates map[string]interface{}) (bool, error) {
	updates["claim_token"] = nil
	updates["claimed_at"] = nil

	result := r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ? AND status = ? AND claim_token = ?", id, domain.NotificationPending, token).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *notificationRepository) MarkSent(ctx context.Context, id, token uuid.UUID, sentAt time.Time) (bool, error) {
	return r.transition(ctx, id, token, map[string]interface{}{
		"status":         domain.NotificationSent,
		"sent_at":        sentAt,
		"failure_reason": "",
	})
}

func (r *notificationRepository) MarkRetry(ctx context.Context, id, token uuid.UUID, reason string) (bool, error) {
	return r.transition(ctx, id, token, map[string]interface{}{
		"retry_count":    gorm.Expr("retry_count + 1"),
		"failure_reason": reason,
	})
}

func (r *notificationRepository) MarkFailed(ctx context.Context, id, token uuid.UUID, reason string) (bool, error) {
	return r.transition(ctx, id, token, map[string]interface{}{
		"status":         domain.NotificationFailed,
		"failure_reason": reason,
	})
}

func (r *notificationRepository) MarkCancelled(ctx context.Context, id, token uuid.UUID, reason string) (bool, error) {
	return r.transition(ctx, id, token, map[string]interface{}{
		"status":         domain.NotificationCancelled,
		"failure_reason": reason,
	})
}

func (r *notificationRepository) Cancel(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ? AND status = ? AND claim_token IS NULL", id, domain.NotificationPending).
		Updates(map[string]interface{}{
			"status":         domain.NotificationCancelled,
			"failure_reason": reason,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *notificationRepository) ListStalePending(ctx context.Context, scheduledBefore time.Time, limit int) ([]*domain.Notification, error) {
	var notifications []*domain.Notification
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_for < ?", domain.NotificationPending, scheduledBefore).
		Order("scheduled_for ASC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *notificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&domain.Notification{})
	return result.RowsAffected, result.Error
}

func (r *notificationRepository) CountByStatus(ctx context.Context, userID uuid.UUID) (map[domain.NotificationStatus]int64, error) {
	var rows []struct {
		Status domain.NotificationStatus
		Count  int64
	}

	query := r.db.WithContext(ctx).Model(&domain.Notification{})
	if userID != uuid.Nil {
		query = query.Where("user_id = ?", userID)
	}
	err := query.
		Select("status, count(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.NotificationStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
