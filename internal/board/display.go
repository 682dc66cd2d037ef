package board

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const (
	// snippetLength は一覧に表示する本文の文字数。
	snippetLength = 80
	// recentWindow は相対時刻で表示する範囲。
	recentWindow = 24 * time.Hour
)

// timestampLayouts はバックエンドが返しうる日時表現。
// タイムゾーンのない表現はサーバーのローカル時刻として解釈する。
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp はバックエンドの日時文字列を解釈する。
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// PlainText はHTMLからテキストのみを取り出す。タグを含まない入力はそのまま返る。
func PlainText(content string) string {
	if !strings.ContainsAny(content, "<&") {
		return content
	}

	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(content))
	skip := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skip++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}

// Snippet は本文の先頭80文字を返し、それより長い場合は"..."を付ける。
func Snippet(content string) string {
	text := PlainText(content)
	if utf8.RuneCountInString(text) <= snippetLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:snippetLength]) + "..."
}

// RelativeTime はnowから見たtの経過時間を表す。
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "방금 전"
	case d < time.Hour:
		return fmt.Sprintf("%d분 전", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d시간 전", int(d/time.Hour))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%d일 전", int(d/(24*time.Hour)))
	case d < 365*24*time.Hour:
		return fmt.Sprintf("%d개월 전", int(d/(30*24*time.Hour)))
	default:
		return fmt.Sprintf("%d년 전", int(d/(365*24*time.Hour)))
	}
}

// FormatCreatedAt は作成日時を24時間以内なら相対時刻、それより前なら2006-01-02形式で返す。
// 解釈できない値はそのまま返す。
func FormatCreatedAt(createdAt string, now time.Time) string {
	t, ok := ParseTimestamp(createdAt)
	if !ok {
		return createdAt
	}
	if now.Sub(t) > recentWindow {
		return t.Format("2006-01-02")
	}
	return RelativeTime(t, now)
}

// EditedSuffix は更新日時が作成日時と異なる場合に" | 수정됨 …"を返す。
func EditedSuffix(createdAt, updatedAt string, now time.Time) string {
	if updatedAt == "" || updatedAt == createdAt {
		return ""
	}
	t, ok := ParseTimestamp(updatedAt)
	if !ok {
		return " | 수정됨"
	}
	return " | 수정됨 " + RelativeTime(t, now)
}
