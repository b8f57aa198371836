package analysis

import "fmt"

// buildPrompt assembles the single analysis prompt sent to the model. The
// model is instructed to answer with one JSON object matching the report
// shape; parse.go handles everything it does instead.
func buildPrompt(language, code string) string {
	return fmt.Sprintf(`Analyze the following %s code and provide a comprehensive analysis in JSON format.

Code to analyze:
`+"```%s\n%s\n```"+`

Please provide your response in this exact JSON structure:
{
  "errors": [
    {
      "line": number,
      "message": "description of the error",
      "severity": "error" | "warning" | "info"
    }
  ],
  "suggestions": [
    "suggestion 1",
    "suggestion 2"
  ],
  "optimizations": [
    "optimization 1",
    "optimization 2"
  ],
  "output": "expected output or 'No output detected'",
  "quality_metrics": {
    "summary": "one sentence quality summary",
    "security_issues": ["issue 1"],
    "recommendations": ["recommendation 1"],
    "security_analysis": "short security assessment"
  }
}

Focus on:
1. Syntax errors, logic errors, and potential runtime issues
2. Best practices and code quality improvements
3. Performance optimizations and cleaner code suggestions
4. What the code output would be (if any print/console statements exist)

Be thorough but concise. Only include actual issues, not hypothetical ones.`, language, language, code)
}
