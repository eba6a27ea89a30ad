package gemini

import (
	"fmt"
	"path"
	"strings"

	"github.com/fixit-ai/fixit/pkg/model"
)

// BuildSecurityAnalysisPrompt asks the model to report vulnerabilities in
// one file as a JSON array.
func BuildSecurityAnalysisPrompt(fileContent, filePath string) string {
	return fmt.Sprintf(`You are a security code reviewer. Analyze the following file for security vulnerabilities.

**File:** %s

**Code:**
`+"```"+`
%s
`+"```"+`

Report every vulnerability you find as a JSON array. Each element must have:
- "type": one of sql_injection, xss, csrf, hardcoded_secret, command_injection, path_traversal, authentication_bypass, insecure_deserialization
- "title": short summary
- "description": what is vulnerable and why
- "line_number": the line of the vulnerable code (integer)
- "severity": one of low, medium, high, critical

Return ONLY the JSON array. Return [] if the file has no vulnerabilities.`, filePath, fileContent)
}

// BuildTestPrompt asks for a pytest test that fails while the vulnerability
// is present. The target file is materialized next to the test at run time,
// so imports must use the bare module name.
func BuildTestPrompt(task *model.Task) string {
	moduleName := targetModuleName(task.FilePath)
	return fmt.Sprintf(`You are a security testing expert. Generate a pytest test that proves the following vulnerability exists.

**Vulnerability Details:**
- Type: %s
- File: %s
- Line: %s
- Description: %s

**ORIGINAL CODE TO TEST:**
`+"```python"+`
%s
`+"```"+`

**CRITICAL REQUIREMENTS:**
1. The vulnerable code will be in a file named '%s.py' in the SAME directory as your test
2. Import from it like: from %s import function_name
3. Write a pytest test function that will FAIL if the vulnerability exists
4. The test should demonstrate how to exploit the vulnerability
5. Include necessary imports
6. Use clear assertion messages that explain the vulnerability
7. Return ONLY executable Python code, no explanations or markdown

Generate the test now.`,
		task.VulnerabilityType, task.FilePath, lineNumberText(task.LineNumber),
		task.Description, task.OriginalCode, moduleName, moduleName)
}

// BuildFixPrompt asks for the complete fixed file. previousFailure carries
// the prior attempt's test output on retries so the model does not repeat
// the same mistake.
func BuildFixPrompt(task *model.Task, previousFailure string) string {
	prompt := fmt.Sprintf(`You are a security expert. Fix the following vulnerability in the code.

**CRITICAL REQUIREMENTS:**
1. Return the COMPLETE fixed file with ALL original code
2. Only modify the vulnerable lines - keep everything else unchanged
3. Maintain all imports, functions, and logic
4. Return ONLY executable Python code, no explanations or markdown
5. Do NOT return empty code or just comments

**Vulnerability Details:**
- Type: %s
- File: %s
- Line: %s
- Description: %s

**ORIGINAL FILE CONTENT:**
`+"```python"+`
%s
`+"```"+`

**Test That Must Pass:**
`+"```python"+`
%s
`+"```"+`
`, task.VulnerabilityType, task.FilePath, lineNumberText(task.LineNumber),
		task.Description, task.OriginalCode, task.TestCode)

	if previousFailure != "" {
		prompt += fmt.Sprintf(`
**PREVIOUS ATTEMPT FAILED:**
An earlier fix did not make the test pass. Its test output follows, do not repeat the same mistake.
%s
`, previousFailure)
	}

	prompt += `
Generate the COMPLETE fixed version of the file that fixes the vulnerability, makes the test pass and preserves all other code exactly as-is. Return the COMPLETE fixed file now:`
	return prompt
}

func targetModuleName(filePath string) string {
	base := path.Base(filePath)
	return strings.TrimSuffix(base, path.Ext(base))
}

func lineNumberText(line *int) string {
	if line == nil {
		return "unknown"
	}
	return fmt.Sprintf("%d", *line)
}
