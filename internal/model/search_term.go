package model

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// SearchTerm 热搜词记录，按规范化后的 Term 唯一
type SearchTerm struct {
	ID        string    `json:"id"`
	Term      string    `json:"term"`
	Count     int       `json:"count"`
	PosterURL string    `json:"poster_url"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeTerm 去掉首尾空白、NFC 归一并转小写，作为去重键
// 组合与分解形式的同一标题（如 "Amélie"）得到相同的键
func NormalizeTerm(term string) string {
	// Caser 有状态，不能跨 goroutine 共享
	return cases.Lower(language.Und).String(norm.NFC.String(strings.TrimSpace(term)))
}
