package review

import "fmt"

// BuildPrompt constructs the fixed-shape review request. The provider is
// asked for a single JSON object matching the feedback schema; everything
// downstream assumes this shape and repairs deviations.
func BuildPrompt(language, code string) string {
	return fmt.Sprintf(`You are an experienced code reviewer.
Analyze the following %s code and respond with ONLY a valid JSON object, no prose, matching this structure:

{
  "score": <integer 1-10, overall code quality>,
  "issues": [
    {"severity": "<low|medium|high>", "description": "<what is wrong>", "suggestion": "<how to fix it>"}
  ],
  "suggestions": ["<general improvement suggestions>"],
  "security_concerns": ["<security problems, if any>"],
  "performance_recommendations": ["<performance improvements, if any>"],
  "overall_feedback": "<one-paragraph summary>"
}

Code:
%s`, language, code)
}
