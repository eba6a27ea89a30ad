package gemini

import (
	"encoding/json"
	"regexp"
	"strings"
)

// RawVulnerability is one finding as reported by the model, before the
// closed-enum validation performed by the analysis layer.
type RawVulnerability struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	LineNumber  *int   `json:"line_number"`
	Severity    string `json:"severity"`
}

var (
	jsonBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\[.*?\\])\\s*```")
	codeBlockPattern = regexp.MustCompile("(?s)```(?:python)?\\s*(.*?)\\s*```")
)

// ParseVulnerabilities extracts the JSON vulnerability array from a model
// response, tolerating markdown code fences around it.
func ParseVulnerabilities(responseText string) ([]*RawVulnerability, error) {
	cleaned := strings.TrimSpace(responseText)
	if cleaned == "" {
		return nil, nil
	}

	if m := jsonBlockPattern.FindStringSubmatch(cleaned); m != nil {
		cleaned = m[1]
	}
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var vulnerabilities []*RawVulnerability
	if err := json.Unmarshal([]byte(cleaned), &vulnerabilities); err != nil {
		return nil, &ParseError{Message: "response is not a JSON vulnerability list: " + err.Error()}
	}
	return vulnerabilities, nil
}

// ExtractCode pulls the source code out of a fenced model response. When no
// fence is present the whole trimmed response is treated as code.
func ExtractCode(responseText string) string {
	cleaned := strings.TrimSpace(responseText)
	if cleaned == "" {
		return ""
	}
	if m := codeBlockPattern.FindStringSubmatch(cleaned); m != nil {
		cleaned = m[1]
	}
	cleaned = strings.ReplaceAll(cleaned, "```python", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}
