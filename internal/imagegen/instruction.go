package imagegen

import (
	"strings"
)

// PromptFields are the semantic fragments a caller may send alongside the
// primary prompt.
type PromptFields struct {
	Prompt      string
	Negative    string
	Style       string
	Color       string
	Light       string
	Composition string
}

// ComposePrompt joins the primary prompt with every non-empty fragment, in a
// fixed order, each under its label.
func ComposePrompt(fields PromptFields) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(fields.Prompt))
	segments := []struct {
		label string
		value string
	}{
		{", 避免: ", fields.Negative},
		{", 风格: ", fields.Style},
		{", 色彩: ", fields.Color},
		{", 光照: ", fields.Light},
		{", 构图: ", fields.Composition},
	}
	for _, seg := range segments {
		if value := strings.TrimSpace(seg.value); value != "" {
			sb.WriteString(seg.label)
			sb.WriteString(value)
		}
	}
	return sb.String()
}

// ResolveSteps returns override when positive, otherwise the step count suited
// to model: 4 for FLUX.1-schnell variants and 12 for everything else.
func ResolveSteps(model string, override int) int {
	if override > 0 {
		return override
	}
	if strings.Contains(model, schnellMarker) {
		return schnellSteps
	}
	return defaultSteps
}

func wrapPrompt(prompt string) string {
	return "[" + prompt + "]"
}
