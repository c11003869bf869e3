package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text 去掉首尾空白与所有 HTML 标签
func Text(input string) string {
	return strings.TrimSpace(strict.Sanitize(strings.TrimSpace(input)))
}

func TextPtr(input *string) *string {
	if input == nil {
		return nil
	}
	value := Text(*input)
	return &value
}

// CountryCode 规范化为两位大写字母，不合法时返回空串
func CountryCode(input string) string {
	code := strings.ToUpper(strings.TrimSpace(input))
	if len(code) != 2 {
		return ""
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return ""
		}
	}
	return code
}

// ReferralCode 推荐码统一大写并去空白
func ReferralCode(input string) string {
	return strings.ToUpper(strings.TrimSpace(input))
}
