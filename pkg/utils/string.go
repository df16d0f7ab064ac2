package utils

import (
	"github.com/duke-git/lancet/v2/cryptor"
	"github.com/duke-git/lancet/v2/strutil"
)

// IsEmpty 判断字符串是否为空
func IsEmpty(s string) bool {
	return strutil.IsBlank(s)
}

// IsNotEmpty 判断字符串是否不为空
func IsNotEmpty(s string) bool {
	return !IsEmpty(s)
}

// Trim 去除字符串两端空格
func Trim(s string) string {
	return strutil.Trim(s)
}

// SHA256 SHA256摘要
func SHA256(s string) string {
	return cryptor.Sha256(s)
}

// Truncate 截断字符串到指定的最大字节数（按 rune 边界截断）
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	out := make([]rune, 0, len(runes))
	size := 0
	for _, r := range runes {
		size += len(string(r))
		if size > max {
			break
		}
		out = append(out, r)
	}
	return string(out)
}
