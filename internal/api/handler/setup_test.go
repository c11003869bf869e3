package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/migratesafely/membership_server/config"
	"github.com/migratesafely/membership_server/internal/api/middleware"
	"github.com/migratesafely/membership_server/internal/pkg/jwt"
	"github.com/migratesafely/membership_server/internal/pkg/response"
	"github.com/migratesafely/membership_server/internal/repository"
	"github.com/migratesafely/membership_server/internal/service"
	"github.com/migratesafely/membership_server/internal/testutil"
)

const testJWTSecret = "test-secret-key"

func init() {
	gin.SetMode(gin.TestMode)
}

type memStorage struct {
	objects map[string][]byte
}

func (m *memStorage) PutReceipt(userID int64, data []byte, ext string) (string, error) {
	key := fmt.Sprintf("receipts/%d/%d%s", userID, len(m.objects)+1, ext)
	m.objects[key] = data
	return key, nil
}

func (m *memStorage) SignedURL(key string, _ int64) (string, error) {
	return "https://oss.example.com/" + key + "?sig=1", nil
}

func (m *memStorage) Delete(key string) error {
	delete(m.objects, key)
	return nil
}

type handlerEnv struct {
	db          *gorm.DB
	auth        *service.AuthService
	profiles    *service.ProfileService
	memberships *service.MembershipService
	referrals   *service.ReferralService
	wallets     *service.WalletService
	payments    *service.PaymentService
	configs     *service.ConfigService
	storage     *memStorage
}

func setupHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	profileRepo := repository.NewProfileRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	configRepo := repository.NewConfigRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	env := &handlerEnv{db: db, storage: &memStorage{objects: make(map[string][]byte)}}
	env.wallets = service.NewWalletService(db, walletRepo, auditRepo, nil)
	env.configs = service.NewConfigService(db, configRepo, auditRepo, nil)
	env.referrals = service.NewReferralService(db, profileRepo, referralRepo, membershipRepo,
		configRepo, auditRepo, env.wallets, nil, nil)
	env.memberships = service.NewMembershipService(db, membershipRepo, profileRepo, auditRepo,
		env.referrals, nil, config.MembershipConfig{FeeAmount: 1000, FeeCurrency: "BDT", ValidityDays: 365, RenewalWindowDays: 30}, nil)
	env.payments = service.NewPaymentService(db, paymentRepo, membershipRepo, auditRepo,
		env.memberships, env.storage, nil, config.UploadConfig{MaxSize: 1 << 20}, nil)
	env.auth = service.NewAuthService(db, profileRepo, env.memberships, env.referrals,
		config.JWTConfig{Secret: testJWTSecret, ExpireHours: 24}, nil)
	env.profiles = service.NewProfileService(profileRepo)
	return env
}

// authed 带认证中间件的路由
func authed() *gin.Engine {
	router := gin.New()
	router.Use(middleware.Auth(testJWTSecret))
	return router
}

func bearer(t *testing.T, userID int64, role string) string {
	t.Helper()
	token, err := jwt.GenerateToken(userID, role, testJWTSecret, 24)
	require.NoError(t, err)
	return "Bearer " + token
}

func performRequest(r http.Handler, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

// dataMap 把 data 字段解码为 map
func dataMap(t *testing.T, resp response.Response) map[string]interface{} {
	t.Helper()
	m, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data is %T", resp.Data)
	return m
}
