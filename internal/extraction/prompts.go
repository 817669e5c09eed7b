package extraction

import (
	"fmt"
	"strings"

	"github.com/finsight-ai/finsight/internal/llm"
	"github.com/finsight-ai/finsight/internal/retriever"
)

// PromptVersion is stored on every insight so results from different prompt
// revisions can be told apart.
const PromptVersion = "v1"

const systemPrompt = `You are a financial analyst reviewing SEC filings and earnings call transcripts. Answer strictly from the provided excerpts and return a structured JSON response. Be precise and factual. Do not invent figures or claims that are not present in the excerpts.`

const metricPromptTemplate = `Given the following financial document excerpts:

%s

Based on the above, extract the following financial metric: %s

Return a JSON object with exactly these fields:

{
  "metric": "the metric name as given",
  "value": "the extracted value with units, e.g. $1.2 billion or 12.5%%",
  "found": true,
  "explanation": "One sentence citing where the value appears"
}

If the information is not present in the excerpts, set "found" to false and "value" to "Not found".`

const riskPromptTemplate = `Identify potential risks mentioned in the following financial document excerpts:

%s

Return a JSON object with exactly these fields:

{
  "risks": [
    {"risk": "Short name of the risk", "detail": "One sentence describing it as stated in the excerpts"}
  ]
}

If no risks are mentioned, return an empty "risks" array. List only risks the excerpts actually describe.`

const sentimentPromptTemplate = `Analyze the sentiment of the following financial document excerpts and categorize it as Positive, Negative, or Neutral:

%s

Return a JSON object with exactly these fields:

{
  "sentiment": "Positive|Negative|Neutral",
  "explanation": "Brief explanation grounded in the excerpts",
  "confidence": 0.0
}

Set "confidence" between 0 and 1.`

const summaryPromptTemplate = `Provide a concise summary of the key financial information from the following excerpts:

%s

Return a JSON object with exactly these fields:

{
  "summary": "3-5 sentence summary of the key financial information"
}`

const strictSuffix = `

Your previous response was not valid JSON matching the required schema. Respond with ONLY the JSON object described above. No prose, no markdown fences, no additional keys.`

func buildMessages(template string, excerpts string, args ...any) []llm.Message {
	promptArgs := append([]any{excerpts}, args...)
	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(template, promptArgs...)},
	}
}

// formatExcerpts renders retrieved segments as numbered excerpts so the
// model can refer to them and the reader can follow the citation back.
func formatExcerpts(hits []retriever.Hit) string {
	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Excerpt %d | %s]\n%s", i+1, h.Segment.Section, h.Segment.Text)
	}
	return b.String()
}
