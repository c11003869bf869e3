package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/migratesafely/membership_server/config"
	"github.com/migratesafely/membership_server/internal/pkg/pubsub"
	"github.com/migratesafely/membership_server/internal/pkg/queue"
	"github.com/migratesafely/membership_server/internal/repository"
	"github.com/migratesafely/membership_server/internal/testutil"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*pubsub.MemberEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, evt *pubsub.MemberEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	return f.err
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeQueue struct {
	mu       sync.Mutex
	messages []*queue.NotificationMessage
}

func (f *fakeQueue) Push(_ context.Context, msg *queue.NotificationMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) PutReceipt(userID int64, data []byte, ext string) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("receipts/%d/%d%s", userID, len(f.objects)+1, ext)
	f.objects[key] = data
	return key, nil
}

func (f *fakeStorage) SignedURL(key string, _ int64) (string, error) {
	if key == "" {
		return "", errors.New("empty key")
	}
	return "https://signed.example.com/" + key, nil
}

func (f *fakeStorage) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

type testEnv struct {
	db          *gorm.DB
	publisher   *fakePublisher
	queue       *fakeQueue
	storage     *fakeStorage
	wallets     *WalletService
	configs     *ConfigService
	referrals   *ReferralService
	memberships *MembershipService
	payments    *PaymentService
	auth        *AuthService
	profiles    *ProfileService

	profileRepo    *repository.ProfileRepository
	membershipRepo *repository.MembershipRepository
	referralRepo   *repository.ReferralRepository
	walletRepo     *repository.WalletRepository
	auditRepo      *repository.AuditRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	env := &testEnv{
		db:             db,
		publisher:      &fakePublisher{},
		queue:          &fakeQueue{},
		storage:        newFakeStorage(),
		profileRepo:    repository.NewProfileRepository(db),
		membershipRepo: repository.NewMembershipRepository(db),
		referralRepo:   repository.NewReferralRepository(db),
		walletRepo:     repository.NewWalletRepository(db),
		auditRepo:      repository.NewAuditRepository(db),
	}
	configRepo := repository.NewConfigRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	notifier := NewNotifier(env.publisher, env.queue, nil)

	env.wallets = NewWalletService(db, env.walletRepo, env.auditRepo, nil)
	env.configs = NewConfigService(db, configRepo, env.auditRepo, nil)
	env.referrals = NewReferralService(db, env.profileRepo, env.referralRepo, env.membershipRepo,
		configRepo, env.auditRepo, env.wallets, notifier, nil)
	env.memberships = NewMembershipService(db, env.membershipRepo, env.profileRepo, env.auditRepo,
		env.referrals, notifier, config.MembershipConfig{
			FeeAmount:         1000,
			FeeCurrency:       "BDT",
			ValidityDays:      365,
			RenewalWindowDays: 30,
		}, nil)
	env.payments = NewPaymentService(db, paymentRepo, env.membershipRepo, env.auditRepo,
		env.memberships, env.storage, notifier, config.UploadConfig{MaxSize: 1024}, nil)
	env.auth = NewAuthService(db, env.profileRepo, env.memberships, env.referrals,
		config.JWTConfig{Secret: "test-secret", ExpireHours: 1}, nil)
	env.profiles = NewProfileService(env.profileRepo)
	return env
}

// setNow 固定所有服务的当前时间
func (e *testEnv) setNow(now time.Time) {
	clock := func() time.Time { return now }
	e.wallets.now = clock
	e.configs.now = clock
	e.referrals.now = clock
	e.memberships.now = clock
	e.payments.now = clock
}
