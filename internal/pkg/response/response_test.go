package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	var resp Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

func serve(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	router := gin.New()
	router.GET("/test", handler)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
	return w
}

func TestSuccess(t *testing.T) {
	w := serve(func(c *gin.Context) {
		Success(c, gin.H{"balance": "300.00"})
	})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := parseResponse(t, w)
	assert.Equal(t, CodeSuccess, resp.Code)
	assert.Equal(t, "success", resp.Message)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "300.00", data["balance"])
}

func TestSuccessPage(t *testing.T) {
	w := serve(func(c *gin.Context) {
		SuccessPage(c, 42, 2, 10, []string{"a", "b"})
	})

	resp := parseResponse(t, w)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(42), data["total"])
	assert.Equal(t, float64(2), data["page"])
	assert.Equal(t, float64(10), data["page_size"])
	assert.Len(t, data["items"], 2)
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name        string
		call        func(c *gin.Context, msg string)
		code        int
		defaultText string
	}{
		{"param", ParamError, CodeParamError, "参数错误"},
		{"auth", AuthError, CodeAuthFailed, "认证失败"},
		{"permission", PermissionError, CodePermissionDenied, "权限不足"},
		{"not found", NotFoundError, CodeResourceNotFound, "资源不存在"},
		{"rate limit", RateLimitError, CodeRateLimited, "请求过于频繁"},
		{"duplicate", DuplicateError, CodeDuplicateAction, "重复操作"},
		{"conflict", ConflictError, CodeStateConflict, "状态冲突"},
		{"insufficient funds", InsufficientFundsError, CodeInsufficientFunds, "余额不足"},
		{"server", ServerError, CodeServerError, "服务器内部错误"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(func(c *gin.Context) { tt.call(c, "") })
			resp := parseResponse(t, w)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.defaultText, resp.Message)
			assert.Nil(t, resp.Data)

			w = serve(func(c *gin.Context) { tt.call(c, "自定义消息") })
			resp = parseResponse(t, w)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, "自定义消息", resp.Message)
		})
	}
}
