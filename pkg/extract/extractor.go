// Package extract turns a captured timeline element into a models.Item.
//
// Every field is best effort: a missing sub-element yields the zero value.
// Only a structurally unreadable element is an error.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	errs "tweetcrawl/pkg/errors"
	"tweetcrawl/pkg/logger"
	"tweetcrawl/pkg/models"
	"tweetcrawl/pkg/timeline"
)

// maxContextLen bounds how much raw HTML is attached to errors and logs
const maxContextLen = 4096

// Extractor parses captured timeline elements
type Extractor struct {
	base   *url.URL
	logger logger.Logger
}

// New creates an Extractor that resolves relative item links against baseURL
func New(baseURL string, log logger.Logger) (*Extractor, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errs.Configuration(fmt.Sprintf("invalid base URL %q", baseURL))
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Extractor{base: base, logger: log}, nil
}

// Extract parses el. Failures are logged with the element's HTML and
// returned as extraction errors.
func (e *Extractor) Extract(el timeline.Element) (item *models.Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			item = nil
			err = e.fail(el, fmt.Sprintf("panic while extracting: %v", r), nil)
		}
	}()

	if strings.TrimSpace(el.HTML) == "" {
		return nil, e.fail(el, "front item is empty", nil)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(el.HTML))
	if err != nil {
		return nil, e.fail(el, "failed to parse HTML", err)
	}

	article := doc.Find(ItemArticle).First()
	if article.Length() == 0 {
		return nil, e.fail(el, "front item is not a timeline article", nil)
	}

	name, handle := ParseAuthor(renderedText(article.Find(ItemAuthor).First()))
	media := ClassifyMedia(article)

	item = &models.Item{
		Text:          renderedText(article.Find(ItemText).First()),
		AuthorName:    name,
		AuthorHandle:  handle,
		Date:          publishDay(article),
		Lang:          article.Find(ItemText).First().AttrOr("lang", ""),
		URL:           e.itemURL(article),
		MentionedURLs: mentionedURLs(article),
		IsReshare:     isReshare(article),
		Media:         media,
		NumReply:      countFor(article, ReplyButton),
		NumReshare:    countFor(article, ReshareButton),
		NumLike:       countFor(article, LikeButton),
	}
	if media == models.MediaImage {
		item.ImageURLs = imageURLs(article)
	}

	return item, nil
}

func (e *Extractor) fail(el timeline.Element, msg string, cause error) error {
	context := el.HTML
	if len(context) > maxContextLen {
		context = context[:maxContextLen]
	}
	e.logger.WithError(cause).WithFields(map[string]interface{}{
		"element_id": el.ID,
		"element":    context,
	}).Error("Error processing item: " + msg)
	return errs.Extraction(msg, context, cause)
}

// publishDay is the day part of the timestamp's datetime attribute
func publishDay(s *goquery.Selection) string {
	dt := s.Find(ItemTimestamp).First().AttrOr("datetime", "")
	if len(dt) > 10 {
		dt = dt[:10]
	}
	return dt
}

func (e *Extractor) itemURL(s *goquery.Selection) string {
	href := s.Find(ItemLink).First().AttrOr("href", "")
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	return e.base.ResolveReference(u).String()
}

func mentionedURLs(s *goquery.Selection) []string {
	urls := []string{}
	s.Find(ExternalLink).Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok && href != "" {
			urls = append(urls, href)
		}
	})
	return urls
}

func imageURLs(s *goquery.Selection) []string {
	var urls []string
	s.Find(ItemPhotoImg).Each(func(_ int, img *goquery.Selection) {
		if src := img.AttrOr("src", ""); src != "" {
			urls = append(urls, src)
		}
	})
	return urls
}

// isReshare looks for the "reposted" social context line. No marker means
// not a reshare.
func isReshare(s *goquery.Selection) bool {
	if social := strings.ToLower(s.Find(SocialContext).Text()); social != "" {
		if strings.Contains(social, "retweeted") || strings.Contains(social, "reposted") {
			return true
		}
	}
	found := false
	s.Find("div, span").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if strings.Contains(ownText(el), "Retweeted") {
			found = true
			return false
		}
		return true
	})
	return found
}

func countFor(s *goquery.Selection, selector string) int {
	return ParseCount(s.Find(selector).First().AttrOr("aria-label", ""))
}
