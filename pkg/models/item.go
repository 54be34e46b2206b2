package models

import (
	"encoding/json"
	"fmt"
)

// MediaKind classifies the media attached to an item
type MediaKind int

const (
	MediaNone MediaKind = iota
	MediaImage
	MediaVideo
)

var mediaKindNames = map[MediaKind]string{
	MediaNone:  "No media",
	MediaImage: "Image",
	MediaVideo: "Video",
}

func (m MediaKind) String() string {
	if name, ok := mediaKindNames[m]; ok {
		return name
	}
	return fmt.Sprintf("MediaKind(%d)", int(m))
}

// ParseMediaKind is the inverse of String
func ParseMediaKind(s string) (MediaKind, error) {
	for kind, name := range mediaKindNames {
		if name == s {
			return kind, nil
		}
	}
	return MediaNone, fmt.Errorf("unknown media type %q", s)
}

func (m MediaKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *MediaKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	kind, err := ParseMediaKind(s)
	if err != nil {
		return err
	}
	*m = kind
	return nil
}

// Item is one extracted timeline entry. URL is its identity: two items with
// the same URL are the same item.
type Item struct {
	Text          string    `json:"text"`
	AuthorName    string    `json:"author_name"`
	AuthorHandle  string    `json:"author_handle"`
	Date          string    `json:"date"`
	Lang          string    `json:"lang"`
	URL           string    `json:"url"`
	MentionedURLs []string  `json:"mentioned_urls"`
	IsReshare     bool      `json:"is_retweet"`
	Media         MediaKind `json:"media_type"`
	// ImageURLs is only populated when Media is MediaImage
	ImageURLs  []string `json:"images_urls"`
	NumReply   int      `json:"num_reply"`
	NumReshare int      `json:"num_retweet"`
	NumLike    int      `json:"num_like"`
}

// Columns lists the record keys in output order
var Columns = []string{
	"text", "author_name", "author_handle", "date", "lang", "url",
	"mentioned_urls", "is_retweet", "media_type", "images_urls",
	"num_reply", "num_retweet", "num_like",
}

// Preview returns at most n runes of the item text for progress logs
func (i *Item) Preview(n int) string {
	runes := []rune(i.Text)
	if len(runes) <= n {
		return i.Text
	}
	return string(runes[:n])
}
