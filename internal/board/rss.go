package board

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/hitoshi/orbit/internal/model"
)

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string  `xml:"title"`
	Link        string  `xml:"link"`
	GUID        rssGUID `xml:"guid"`
	Description string  `xml:"description"`
	Author      string  `xml:"author,omitempty"`
	PubDate     string  `xml:"pubDate,omitempty"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// WriteRSS は最新の投稿をRSS 2.0として書き出す。
// baseURLはリンクの組み立てに使う公開URL（末尾スラッシュなし）。
func WriteRSS(w io.Writer, posts []model.Post, authors map[string]string, baseURL string, now time.Time) error {
	doc := rssDocument{
		Version: "2.0",
		Channel: rssChannel{
			Title:         "Orbit Finance 게시판",
			Link:          baseURL + "/board",
			Description:   "Orbit Finance 게시판의 최신 글",
			Language:      "ko",
			LastBuildDate: now.Format(time.RFC1123Z),
		},
	}

	for _, p := range posts {
		link := baseURL + "/board/" + strconv.FormatInt(p.ID, 10)
		item := rssItem{
			Title:       p.Title,
			Link:        link,
			GUID:        rssGUID{IsPermaLink: true, Value: link},
			Description: Snippet(p.Content),
			Author:      AuthorName(authors, p.UserID),
		}
		if t, ok := ParseTimestamp(p.CreatedAt); ok {
			item.PubDate = t.Format(time.RFC1123Z)
		}
		doc.Channel.Items = append(doc.Channel.Items, item)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("RSSヘッダーの書き込みに失敗しました: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("RSSのエンコードに失敗しました: %w", err)
	}
	return enc.Flush()
}
