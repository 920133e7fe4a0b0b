package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/reviewpipe/ai"
)

const sentimentResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "sentiment": {
      "type": "string",
      "enum": [%s]
    }
  },
  "required": ["sentiment"],
  "additionalProperties": false
}`

const sentimentPromptTemplate = `Classify the overall sentiment of a customer review and return it as JSON.

The review is written in the language with ISO 639-1 code "%s". Output ONLY valid JSON which complies with
the schema given below. Do not include any preamble, explanation, greeting, or acknowledgment. Start your
response directly with the opening brace { and end with the closing brace }. Your output must exactly follow
this schema:

%s

Rules:
- POSITIVE: the reviewer is satisfied overall.
- NEGATIVE: the reviewer is dissatisfied overall.
- NEUTRAL: the review states facts without a clear opinion.
- MIXED: the review contains both clearly positive and clearly negative opinions.
- Judge the review as a whole, not individual sentences.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input: "Llegó rápido y funciona perfecto"
Output:
{"sentiment":"POSITIVE"}

Example:
Input: "la calidad es buena pero el envío tardó un mes"
Output:
{"sentiment":"MIXED"}

Example:
Input: "No funciona, pedí el reembolso"
Output:
{"sentiment":"NEGATIVE"}`

// buildSystemPrompt creates the system prompt with the label set embedded.
func buildSystemPrompt(language string) string {
	quoted := make([]string, len(ai.Labels))
	for i, l := range ai.Labels {
		quoted[i] = fmt.Sprintf("%q", l.String())
	}
	schema := fmt.Sprintf(sentimentResponseSchema, strings.Join(quoted, ", "))
	return fmt.Sprintf(sentimentPromptTemplate, language, schema)
}
