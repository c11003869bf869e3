package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/migratesafely/membership_server/config"
)

func TestNew(t *testing.T) {
	logger, err := New(config.LogConfig{Level: "warn", Encoding: "console"}, "release")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	_, err = New(config.LogConfig{Level: "loud"}, "release")
	assert.Error(t, err)
}

func TestSanitizeFields(t *testing.T) {
	fields := SanitizeFields([]zap.Field{
		zap.String("authorization", "Bearer abc"),
		zap.String("path", "/api/v1/wallet"),
		zap.Any("request_body", map[string]interface{}{
			"email":    "a@example.com",
			"password": "hunter2",
		}),
	})

	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}

	assert.Equal(t, "***", enc.Fields["authorization"])
	assert.Equal(t, "/api/v1/wallet", enc.Fields["path"])

	body, ok := enc.Fields["request_body"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "***", body["password"])
	assert.Equal(t, "a@example.com", body["email"])
}

func TestIsSensitiveKey(t *testing.T) {
	for _, key := range []string{"password", "Password_Hash", "jwt-token", "access_key_secret", "Authorization"} {
		assert.True(t, isSensitiveKey(key), key)
	}
	for _, key := range []string{"", "email", "amount", "user_id"} {
		assert.False(t, isSensitiveKey(key), key)
	}
}
