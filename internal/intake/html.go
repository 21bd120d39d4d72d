package intake

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// noiseSelector matches page chrome that never belongs to the RFQ body.
const noiseSelector = "nav, footer, header, script, style, noscript, " +
	".ad, .advertisement, .ads, .sidebar, .cookie-banner, .popup, .breadcrumb"

// contentSelectors are tried in order: procurement-portal layouts first,
// generic page containers after. The first match wins; no match falls back
// to the body element.
var contentSelectors = []string{
	".rfq-description",
	".solicitation-description",
	".opportunity-description",
	".tender-details",
	"[data-testid='opportunity-description']",
	"main",
	"article",
	".content",
	"#content",
}

// ExtractText parses HTML and returns the main body text with page chrome
// stripped and blank lines dropped.
func ExtractText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find(noiseSelector).Remove()

	var main *goquery.Selection
	for _, selector := range contentSelectors {
		if sel := doc.Find(selector); sel.Length() > 0 {
			main = sel.First()
			break
		}
	}
	if main == nil {
		main = doc.Find("body")
	}

	lines := strings.Split(main.Text(), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n"), nil
}
