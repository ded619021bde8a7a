package prompt

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

const (
	azureProviderName  = "azure"
	openAIProviderName = "openai"
	geminiProviderName = "gemini"
)

const baseSystemInstruction = "你是一个专业的提示词优化助手，专门为FLUX图像生成模型优化提示词。" +
	"你的任务是将用户输入的任何语言的提示词转换为高质量、详细的英文提示词。" +
	"请添加丰富的视觉细节，包括光照效果、材质描述、视角、风格、色彩方案等。" +
	"使用FLUX模型喜欢的关键词，如'highly detailed'、'4k resolution'、'masterpiece'等增强词。" +
	"确保最终结果既保留原始意图，又能最大化FLUX模型的生成效果。" +
	"请直接返回纯文本，不要包含任何JSON结构、大括号{}、中括号[]、反引号`，也不要在回复中包含'prompt'这个词。"

const (
	structuralAdmonition = "重要提醒：不要在回复中包含任何大括号{}、中括号[]或反引号`。"
	keywordAdmonition    = "重要提醒：不要在回复中包含'prompt'这个词。"
)

// Sampling parameters shared by every completer.
const (
	completionTemperature = 0.8
	completionTopP        = 0.95
	completionMaxTokens   = 500
)

const forbiddenRunes = "{}[]`"

func buildUserMessage(prompt string) string {
	return fmt.Sprintf("请将以下提示词转换为高质量的英文提示词，用于FLUX AI图像生成模型。"+
		"添加必要的视觉细节、风格描述和技术参数，但保持原始概念不变。"+
		"直接返回纯文本，不要包含任何JSON结构或标记：\n\n%s", prompt)
}

// systemInstruction is the base instruction plus the admonitions collected
// from rejected completions, oldest first.
type systemInstruction struct {
	base        string
	admonitions []string
}

func newSystemInstruction() systemInstruction {
	return systemInstruction{base: baseSystemInstruction}
}

func (s *systemInstruction) admonish(text string) {
	s.admonitions = append(s.admonitions, text)
}

func (s systemInstruction) String() string {
	if len(s.admonitions) == 0 {
		return s.base
	}
	return s.base + " " + strings.Join(s.admonitions, " ")
}

// validateCompletion returns the admonition to append when text is unusable,
// or "" when text is clean.
func validateCompletion(text string) string {
	if strings.ContainsAny(text, forbiddenRunes) {
		return structuralAdmonition
	}
	if strings.Contains(cases.Fold().String(text), "prompt") {
		return keywordAdmonition
	}
	return ""
}

func isContentFilterMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "content_filter") ||
		strings.Contains(msg, "content_policy_violation") ||
		strings.Contains(msg, "responsibleaipolicyviolation")
}
