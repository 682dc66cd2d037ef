package board

import (
	"html/template"
	"regexp"
	"strings"
)

// Segment は強調表示の単位。Matchは検索語に一致した部分。
type Segment struct {
	Text  string
	Match bool
}

// Segments はtextを検索語の出現位置で分割する。
// 大文字小文字を区別しないリテラル一致で、順位付けや曖昧一致は行わない。
// 検索語が空の場合はtext全体を1つの非一致セグメントとして返す。
func Segments(text, term string) []Segment {
	if term == "" || text == "" {
		if text == "" {
			return nil
		}
		return []Segment{{Text: text}}
	}

	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(term))

	var segs []Segment
	last := 0
	for _, loc := range re.FindAllStringIndex(text, -1) {
		if loc[0] > last {
			segs = append(segs, Segment{Text: text[last:loc[0]]})
		}
		segs = append(segs, Segment{Text: text[loc[0]:loc[1]], Match: true})
		last = loc[1]
	}
	if last < len(text) {
		segs = append(segs, Segment{Text: text[last:]})
	}
	return segs
}

// Highlight は検索語の出現を<mark>で囲んだHTMLを返す。それ以外の部分はエスケープのみ行う。
func Highlight(text, term string) template.HTML {
	var b strings.Builder
	for _, s := range Segments(text, term) {
		if s.Match {
			b.WriteString("<mark>")
			b.WriteString(template.HTMLEscapeString(s.Text))
			b.WriteString("</mark>")
			continue
		}
		b.WriteString(template.HTMLEscapeString(s.Text))
	}
	return template.HTML(b.String())
}
