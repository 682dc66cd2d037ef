package board

import (
	"strings"
	"testing"
)

func TestSegments_ConcatenationPreservesText(t *testing.T) {
	tests := []struct {
		name string
		text string
		term string
	}{
		{"一致なし", "삼성전자 실적 발표", "카카오"},
		{"先頭一致", "Tesla 주가 분석", "tesla"},
		{"複数一致", "abc ABC aBc", "abc"},
		{"正規表現の特殊文字", "1+1=2 (정답)", "(정답)"},
		{"空の検索語", "본문", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b strings.Builder
			for _, s := range Segments(tt.text, tt.term) {
				b.WriteString(s.Text)
			}
			if got := b.String(); got != tt.text {
				t.Errorf("連結結果 = %q, want %q", got, tt.text)
			}
		})
	}
}

func TestSegments_CaseInsensitiveMatch(t *testing.T) {
	segs := Segments("Apple apple APPLE", "aPpLe")

	var matches []string
	for _, s := range segs {
		if s.Match {
			matches = append(matches, s.Text)
		}
	}
	want := []string{"Apple", "apple", "APPLE"}
	if len(matches) != len(want) {
		t.Fatalf("一致数 = %d, want %d (%+v)", len(matches), len(want), segs)
	}
	for i := range want {
		if matches[i] != want[i] {
			t.Errorf("matches[%d] = %q, want %q", i, matches[i], want[i])
		}
	}
}

func TestSegments_EmptyInputs(t *testing.T) {
	if segs := Segments("", "x"); segs != nil {
		t.Errorf("空のtextに対してnilを期待したが %+v", segs)
	}
	segs := Segments("hello", "")
	if len(segs) != 1 || segs[0].Match || segs[0].Text != "hello" {
		t.Errorf("空の検索語で単一の非一致セグメントを期待したが %+v", segs)
	}
}

func TestHighlight_EscapesAndMarks(t *testing.T) {
	got := string(Highlight("<b>NVDA</b> nvda", "nvda"))
	want := "&lt;b&gt;<mark>NVDA</mark>&lt;/b&gt; <mark>nvda</mark>"
	if got != want {
		t.Errorf("Highlight = %q, want %q", got, want)
	}
}
