package browser

import (
	"encoding/json"
	"fmt"
	"strings"

	errs "tweetcrawl/pkg/errors"
	"tweetcrawl/pkg/timeline"
)

// crawlAttr tags captured items so Remove can find the same node later
const crawlAttr = "data-crawl-id"

type probeResult struct {
	ID     string `json:"id"`
	HTML   string `json:"html"`
	Banner bool   `json:"banner"`
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// probeScript returns JSON describing the front item and whether the reload
// banner is visible
func probeScript(selector, bannerText string) string {
	return fmt.Sprintf(`(() => {
	const banner = Array.from(document.querySelectorAll('span'))
		.some(s => s.textContent.includes(%[2]s));
	const el = document.querySelector(%[1]s);
	if (!el) {
		return JSON.stringify({banner: banner});
	}
	if (!el.hasAttribute(%[3]s)) {
		window.__crawlSeq = (window.__crawlSeq || 0) + 1;
		el.setAttribute(%[3]s, 'item-' + window.__crawlSeq);
	}
	return JSON.stringify({id: el.getAttribute(%[3]s), html: el.outerHTML, banner: banner});
})()`, jsString(selector), jsString(bannerText), jsString(crawlAttr))
}

// removeScript deletes the tagged item, falling back to the current front
// item when the tag was lost to a re-render
func removeScript(selector, id string) string {
	return fmt.Sprintf(`(() => {
	let el = document.querySelector('[' + %[3]s + '=' + JSON.stringify(%[2]s) + ']');
	if (!el) {
		el = document.querySelector(%[1]s);
	}
	if (!el) {
		return false;
	}
	el.remove();
	return true;
})()`, jsString(selector), jsString(id), jsString(crawlAttr))
}

// tabXPath finds a profile tab by its visible label
func tabXPath(label string) string {
	if strings.Contains(label, "'") {
		return fmt.Sprintf(`//span[text()="%s"]`, label)
	}
	return fmt.Sprintf(`//span[text()='%s']`, label)
}

func decodeProbe(raw string) (timeline.Probe, error) {
	var res probeResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return timeline.Probe{}, errs.Browser("unreadable probe result", err)
	}

	p := timeline.Probe{ErrorBanner: res.Banner}
	if res.ID != "" {
		p.Element = &timeline.Element{ID: res.ID, HTML: res.HTML}
	}
	return p, nil
}
