package datasource

import (
	"fmt"
	"strings"
	"unicode"
)

var (
	themes = []string{
		"AI-driven product roadmap", "cloud margin expansion", "services revenue growth",
		"regulatory scrutiny in the EU", "share buyback program", "supply chain realignment",
	}
	risks = []string{"semiconductor", "logistics", "currency", "energy", "labor"}

	ratings = []string{"Strong Buy", "Buy", "Hold", "Sell"}
)

// News returns three synthetic headlines for query.
func News(query string) Section {
	f := newFaker("news", query)

	body := fmt.Sprintf(
		"Search results for '%s':\n"+
			"- Article 1: %s Highlights %s - Coverage notes steady investor interest and %d%% higher trading volume this week.\n"+
			"- Article 2: Market sentiment leans positive as %s announces record profits.\n"+
			"- Article 3: Analysts express concern over %s-related supply chain disruptions.",
		query,
		f.Company(), f.RandomString(themes), f.IntRange(5, 44),
		f.Company(),
		f.RandomString(risks),
	)
	return Section{Label: "Latest News", Body: body}
}

// Financials returns a synthetic snapshot for ticker.
func Financials(ticker string) Section {
	f := newFaker("financials", ticker)

	low := f.Float64Range(20, 320)
	price := low + f.Float64Range(0, 120)
	high := price + f.Float64Range(10, 70)

	body := fmt.Sprintf(
		"Financial data for %s:\n"+
			"- Current Price: $%.2f\n"+
			"- 52-Week High: $%.2f\n"+
			"- 52-Week Low: $%.2f\n"+
			"- Analyst Rating: %s\n"+
			"- P/E Ratio: %.2f",
		ticker, price, high, low, f.RandomString(ratings), f.Float64Range(10, 40),
	)
	return Section{Label: "Financial Data", Body: body}
}

// Ticker picks the stock symbol a query refers to. An all-caps token of two to
// five letters wins; otherwise a symbol is derived from the first word.
func Ticker(query string) string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.'
	})

	for _, f := range fields {
		if isTickerLike(f) {
			return f
		}
	}

	for _, f := range fields {
		var b strings.Builder
		for _, r := range f {
			if unicode.IsLetter(r) && r < unicode.MaxASCII {
				b.WriteRune(unicode.ToUpper(r))
			}
			if b.Len() == 4 {
				break
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return "UNKN"
}

func isTickerLike(s string) bool {
	if len(s) < 2 || len(s) > 5 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
