package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/migratesafely/membership_server/internal/model"
	"github.com/migratesafely/membership_server/internal/model/dto"
	"github.com/migratesafely/membership_server/internal/pkg/sanitize"
	"github.com/migratesafely/membership_server/internal/repository"
)

var (
	ErrBonusConfigNotFound = errors.New("未找到适用的推荐奖励配置")
	ErrInvalidBonusConfig  = errors.New("奖励配置参数无效")
)

// BonusConfig 解析后的推荐奖励
type BonusConfig struct {
	ConfigID      int64
	CountryCode   string // 空表示全局配置
	Amount        decimal.Decimal
	Currency      string
	EffectiveFrom time.Time
}

// ResolveBonusConfig 在 asOf 时刻已生效的配置中，优先取该国家最新的一条，
// 否则取最新的全局配置。生效时间相同按 ID 较大者。
func ResolveBonusConfig(configs []model.MembershipConfig, countryCode string, asOf time.Time) (*BonusConfig, bool) {
	country := strings.ToUpper(strings.TrimSpace(countryCode))

	var bestCountry, bestGlobal *model.MembershipConfig
	for i := range configs {
		c := &configs[i]
		if c.EffectiveFrom.After(asOf) {
			continue
		}
		code := ""
		if c.CountryCode != nil {
			code = strings.ToUpper(strings.TrimSpace(*c.CountryCode))
		}
		switch {
		case code == "":
			if newerConfig(c, bestGlobal) {
				bestGlobal = c
			}
		case country != "" && code == country:
			if newerConfig(c, bestCountry) {
				bestCountry = c
			}
		}
	}

	best := bestCountry
	if best == nil {
		best = bestGlobal
	}
	if best == nil {
		return nil, false
	}

	result := &BonusConfig{
		ConfigID:      best.ID,
		Amount:        best.BonusAmount,
		Currency:      best.BonusCurrency,
		EffectiveFrom: best.EffectiveFrom,
	}
	if best == bestCountry {
		result.CountryCode = country
	}
	return result, true
}

func newerConfig(c, best *model.MembershipConfig) bool {
	if best == nil {
		return true
	}
	if c.EffectiveFrom.Equal(best.EffectiveFrom) {
		return c.ID > best.ID
	}
	return c.EffectiveFrom.After(best.EffectiveFrom)
}

// loadBonusConfig 从给定 repo（可以是事务内的）读取候选配置并解析
func loadBonusConfig(ctx context.Context, repo *repository.ConfigRepository, countryCode string, asOf time.Time) (*BonusConfig, error) {
	candidates, err := repo.ListCandidates(ctx, strings.ToUpper(strings.TrimSpace(countryCode)))
	if err != nil {
		return nil, err
	}
	cfg, ok := ResolveBonusConfig(candidates, countryCode, asOf)
	if !ok {
		return nil, ErrBonusConfigNotFound
	}
	return cfg, nil
}

type ConfigService struct {
	db         *gorm.DB
	configRepo *repository.ConfigRepository
	auditRepo  *repository.AuditRepository
	logger     *zap.Logger
	now        func() time.Time
}

func NewConfigService(db *gorm.DB, configRepo *repository.ConfigRepository, auditRepo *repository.AuditRepository, logger *zap.Logger) *ConfigService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigService{
		db:         db,
		configRepo: configRepo,
		auditRepo:  auditRepo,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ResolveBonusConfig 解析 asOf 时刻对该国家生效的奖励
func (s *ConfigService) ResolveBonusConfig(ctx context.Context, countryCode string, asOf time.Time) (*BonusConfig, error) {
	return loadBonusConfig(ctx, s.configRepo, countryCode, asOf)
}

// CreateConfig 新增一条奖励配置，已有推荐记录不受影响
func (s *ConfigService) CreateConfig(ctx context.Context, adminID int64, req *dto.CreateBonusConfigRequest) (*dto.BonusConfigInfo, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(req.BonusAmount))
	if err != nil || !amount.IsPositive() {
		return nil, ErrInvalidBonusConfig
	}
	currency := strings.ToUpper(strings.TrimSpace(req.BonusCurrency))
	if len(currency) != 3 {
		return nil, ErrInvalidBonusConfig
	}

	cfg := &model.MembershipConfig{
		BonusAmount:   amount.Round(2),
		BonusCurrency: currency,
		EffectiveFrom: s.now(),
		CreatedBy:     &adminID,
	}
	if strings.TrimSpace(req.CountryCode) != "" {
		code := sanitize.CountryCode(req.CountryCode)
		if code == "" {
			return nil, ErrInvalidBonusConfig
		}
		cfg.CountryCode = &code
	}
	if req.EffectiveFrom != "" {
		at, err := time.Parse(time.RFC3339, req.EffectiveFrom)
		if err != nil {
			return nil, ErrInvalidBonusConfig
		}
		cfg.EffectiveFrom = at.UTC()
	}

	var country interface{}
	if cfg.CountryCode != nil {
		country = *cfg.CountryCode
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.configRepo.WithTx(tx).Create(ctx, cfg); err != nil {
			return err
		}
		return s.auditRepo.WithTx(tx).Record(ctx, &adminID, "config.created", "membership_config",
			strconv.FormatInt(cfg.ID, 10), map[string]interface{}{
				"country_code":   country,
				"bonus_amount":   cfg.BonusAmount.StringFixed(2),
				"bonus_currency": cfg.BonusCurrency,
				"effective_from": cfg.EffectiveFrom.Format(time.RFC3339),
			})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("bonus config created",
		zap.Int64("config_id", cfg.ID),
		zap.Int64("admin_id", adminID),
		zap.String("amount", cfg.BonusAmount.StringFixed(2)),
		zap.String("currency", cfg.BonusCurrency),
	)
	return toBonusConfigInfo(cfg), nil
}

// ListConfigs 全部配置，按生效时间倒序
func (s *ConfigService) ListConfigs(ctx context.Context) ([]*dto.BonusConfigInfo, error) {
	configs, err := s.configRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]*dto.BonusConfigInfo, 0, len(configs))
	for _, c := range configs {
		items = append(items, toBonusConfigInfo(c))
	}
	return items, nil
}

func toBonusConfigInfo(c *model.MembershipConfig) *dto.BonusConfigInfo {
	info := &dto.BonusConfigInfo{
		ID:            c.ID,
		BonusAmount:   c.BonusAmount.StringFixed(2),
		BonusCurrency: c.BonusCurrency,
		EffectiveFrom: c.EffectiveFrom.UTC().Format(time.RFC3339),
	}
	if c.CountryCode != nil {
		info.CountryCode = *c.CountryCode
	}
	return info
}
