package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/migratesafely/membership_server/internal/model"
	"github.com/migratesafely/membership_server/internal/model/dto"
	"github.com/migratesafely/membership_server/internal/pkg/sanitize"
	"github.com/migratesafely/membership_server/internal/repository"
)

var ErrInvalidCountryCode = errors.New("国家代码无效")

type ProfileService struct {
	profileRepo *repository.ProfileRepository
}

func NewProfileService(profileRepo *repository.ProfileRepository) *ProfileService {
	return &ProfileService{profileRepo: profileRepo}
}

// GetProfile 获取用户资料
func (s *ProfileService) GetProfile(ctx context.Context, userID int64) (*dto.ProfileInfo, error) {
	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return toProfileInfo(profile), nil
}

// UpdateProfile 更新姓名与国家。国家变更不影响已创建的推荐记录
func (s *ProfileService) UpdateProfile(ctx context.Context, userID int64, req *dto.UpdateProfileRequest) (*dto.ProfileInfo, error) {
	fields := make(map[string]interface{})
	if req.FullName != nil {
		fields["full_name"] = sanitize.Text(*req.FullName)
	}
	if req.CountryCode != nil {
		code := sanitize.CountryCode(*req.CountryCode)
		if code == "" {
			return nil, ErrInvalidCountryCode
		}
		fields["country_code"] = code
	}

	if len(fields) > 0 {
		if err := s.profileRepo.UpdateFields(ctx, userID, fields); err != nil {
			return nil, err
		}
	}
	return s.GetProfile(ctx, userID)
}

// GetRole 当前角色，用于后台权限校验
func (s *ProfileService) GetRole(ctx context.Context, userID int64) (string, error) {
	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	return profile.Role, nil
}

func toProfileInfo(p *model.Profile) *dto.ProfileInfo {
	info := &dto.ProfileInfo{
		ID:         p.ID,
		Email:      p.Email,
		FullName:   p.FullName,
		Role:       p.Role,
		IsVerified: p.IsVerified,
		CreatedAt:  p.CreatedAt.UTC().Format(time.RFC3339),
	}
	if p.CountryCode != nil {
		info.CountryCode = *p.CountryCode
	}
	if p.ReferralCode != nil {
		info.ReferralCode = *p.ReferralCode
	}
	return info
}
