package pipeline

import (
	"strings"

	"github.com/kiranshivaraju/researchmate/internal/datasource"
	"github.com/kiranshivaraju/researchmate/pkg/models"
)

const focusLine = `{{if .Focus}}
Research focus: {{.Focus}}
{{end}}`

// Market is the financial brief pipeline: analyst, writer, fact checker.
func Market() Pipeline {
	return Pipeline{
		Name: "market",
		Gather: func(req Request) Gathered {
			ticker := datasource.Ticker(req.Input)
			return Gathered{
				Subject: ticker,
				Sections: []datasource.Section{
					datasource.News("Latest news for " + ticker),
					datasource.Financials(ticker),
				},
			}
		},
		Steps: []Step{
			{
				Name: "analyze",
				Template: `You are a senior financial analyst.
Request: {{.Input}}
` + focusLine + `
Analyze the context below containing news and financial data for {{.Subject}}. Extract key findings, market sentiment, and potential risks.

{{.Context}}`,
			},
			{
				Name:      "write",
				UsesPrior: true,
				Template: `You are an expert financial report writer.
` + focusLine + `
Using the analyst notes below, write a structured financial brief for {{.Subject}} with the sections 'Recent News', 'Financial Snapshot', and 'Outlook & Risks'.

Analyst notes:
{{.Prior}}`,
			},
			{
				Name:      "fact_check",
				UsesPrior: true,
				Template: `You are a meticulous fact checker.
Review the financial brief for {{.Subject}} against the source data. Correct anything the data does not support and return the final, polished brief.

Brief:
{{.Prior}}

Source data:
{{.Context}}`,
			},
		},
	}
}

// Grants is the funding search pipeline: classify the request, then rank matching grants.
func Grants() Pipeline {
	params := models.GenerationParams{MaxTokens: 512, Temperature: models.Float(0.7)}

	return Pipeline{
		Name: "grants",
		Gather: func(req Request) Gathered {
			keywords := datasource.ExtractKeywords(req.Input + " " + req.Focus)
			return Gathered{
				Subject:  strings.Join(keywords, ", "),
				Sections: []datasource.Section{datasource.Grants(keywords)},
			}
		},
		Steps: []Step{
			{
				Name:     "classify",
				Template: `Classify this user query into domain + intent: {{.Input}}`,
				Params:   params,
			},
			{
				Name:      "rank",
				UsesPrior: true,
				Params:    params,
				Template: `User query: {{.Input}}
` + focusLine + `Classification: {{.Prior}}
Extracted Keywords: {{.Subject}}

{{.Context}}

Summarize and rank the grants by relevance to the user query, explaining why each is a good fit.`,
			},
		},
	}
}

// Builtin returns every pipeline shipped with the server.
func Builtin() []Pipeline {
	return []Pipeline{Market(), Grants()}
}
