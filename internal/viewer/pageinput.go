// internal/viewer/pageinput.go
package viewer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageInputCandidate is an <input> that looks like a viewer's page-number box.
// Index is its position among all inputs under the viewer root, in document
// order, which matches root.querySelectorAll('input') in the live page.
type PageInputCandidate struct {
	Index      int    `json:"index"`
	Score      int    `json:"score"`
	Descriptor string `json:"descriptor"`
}

var pageInputTypes = map[string]bool{
	"": true, "text": true, "number": true, "tel": true, "search": true,
}

// RankPageInputs scores the inputs in an HTML fragment by how likely each
// is to be the page-number control, best first. Inputs with no page hint
// are omitted.
func RankPageInputs(html string) ([]PageInputCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse viewer markup: %w", err)
	}

	var candidates []PageInputCandidate
	doc.Find("input").Each(func(i int, sel *goquery.Selection) {
		if !pageInputTypes[strings.ToLower(sel.AttrOr("type", ""))] {
			return
		}
		if _, disabled := sel.Attr("disabled"); disabled {
			return
		}
		if _, readonly := sel.Attr("readonly"); readonly {
			return
		}
		if score := scorePageInput(sel); score > 0 {
			candidates = append(candidates, PageInputCandidate{
				Index:      i,
				Score:      score,
				Descriptor: describe(sel),
			})
		}
	})

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Score > candidates[b].Score
	})
	return candidates, nil
}

func scorePageInput(sel *goquery.Selection) int {
	score := 0
	hint := func(attr string, weight int) {
		if strings.Contains(strings.ToLower(sel.AttrOr(attr, "")), "page") {
			score += weight
		}
	}
	hint("aria-label", 4)
	hint("name", 3)
	hint("id", 3)
	hint("placeholder", 3)
	hint("title", 2)
	hint("class", 2)
	hint("data-testid", 2)

	if score == 0 {
		// a label or wrapper mentioning the page still counts
		if label := sel.Closest("label"); label.Length() > 0 && strings.Contains(strings.ToLower(label.Text()), "page") {
			score += 2
		} else if strings.Contains(strings.ToLower(sel.Parent().Text()), "page") {
			score++
		}
		if score == 0 {
			return 0
		}
	}

	if strings.EqualFold(sel.AttrOr("type", ""), "number") {
		score += 2
	}
	if strings.EqualFold(sel.AttrOr("inputmode", ""), "numeric") {
		score++
	}
	if _, ok := sel.Attr("max"); ok {
		score++
	}
	return score
}

func describe(sel *goquery.Selection) string {
	var b strings.Builder
	b.WriteString("input")
	if id := sel.AttrOr("id", ""); id != "" {
		b.WriteString("#" + id)
	}
	if name := sel.AttrOr("name", ""); name != "" {
		fmt.Fprintf(&b, "[name=%q]", name)
	}
	if label := sel.AttrOr("aria-label", ""); label != "" {
		fmt.Fprintf(&b, "[aria-label=%q]", label)
	}
	return b.String()
}
