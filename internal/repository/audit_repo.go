package repository

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/migratesafely/membership_server/internal/model"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) WithTx(tx *gorm.DB) *AuditRepository {
	return &AuditRepository{db: tx}
}

func (r *AuditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// Record 写入审计记录，details 序列化为 JSON
func (r *AuditRepository) Record(ctx context.Context, actorID *int64, action, resourceType, resourceID string, details map[string]interface{}) error {
	log := &model.AuditLog{
		ActorID:      actorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		CreatedAt:    time.Now().UTC(),
	}
	if len(details) > 0 {
		data, err := json.Marshal(details)
		if err != nil {
			return err
		}
		log.Details = string(data)
	}
	return r.Create(ctx, log)
}

func (r *AuditRepository) ListByResource(ctx context.Context, resourceType, resourceID string) ([]*model.AuditLog, error) {
	var logs []*model.AuditLog
	err := r.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("id ASC").
		Find(&logs).Error
	return logs, err
}

func (r *AuditRepository) CountByAction(ctx context.Context, action string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.AuditLog{}).Where("action = ?", action).Count(&count).Error
	return count, err
}
