package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/migratesafely/membership_server/internal/model"
)

type ConfigRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

func (r *ConfigRepository) WithTx(tx *gorm.DB) *ConfigRepository {
	return &ConfigRepository{db: tx}
}

func (r *ConfigRepository) Create(ctx context.Context, cfg *model.MembershipConfig) error {
	return r.db.WithContext(ctx).Create(cfg).Error
}

// ListCandidates 返回指定国家和全局的全部配置，生效时间由调用方筛选
func (r *ConfigRepository) ListCandidates(ctx context.Context, countryCode string) ([]model.MembershipConfig, error) {
	var configs []model.MembershipConfig
	query := r.db.WithContext(ctx)
	if countryCode == "" {
		query = query.Where("country_code IS NULL")
	} else {
		query = query.Where("country_code = ? OR country_code IS NULL", countryCode)
	}
	err := query.Find(&configs).Error
	return configs, err
}

func (r *ConfigRepository) List(ctx context.Context) ([]*model.MembershipConfig, error) {
	var configs []*model.MembershipConfig
	err := r.db.WithContext(ctx).Order("effective_from DESC, id DESC").Find(&configs).Error
	return configs, err
}
