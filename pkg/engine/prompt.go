package engine

import (
	"fmt"
	"strings"
)

// DefaultSystemPrompt 大模型引擎的系统提示词模板，%s 为目标语言名称
const DefaultSystemPrompt = `You are a professional literary translator. Translate the user's text into %s.
Preserve the tone, style and paragraph structure of the original novel.
Text wrapped in <term></term> tags is an approved glossary term: keep it exactly as written, tags included.
Reply with the translation only.`

var languageNames = map[string]string{
	"zh": "Chinese",
	"en": "English",
	"ja": "Japanese",
	"ko": "Korean",
	"fr": "French",
	"de": "German",
	"es": "Spanish",
	"ru": "Russian",
	"pt": "Portuguese",
	"it": "Italian",
}

// LanguageName 返回语言代码对应的英文名称，未知代码原样返回
func LanguageName(code string) string {
	key := strings.ToLower(code)
	if i := strings.IndexAny(key, "-_"); i > 0 {
		key = key[:i]
	}
	if name, ok := languageNames[key]; ok {
		return name
	}
	return code
}

// SystemPrompt 用目标语言填充提示词模板，template 为空时使用默认模板
func SystemPrompt(template, targetLanguage string) string {
	if template == "" {
		template = DefaultSystemPrompt
	}
	if strings.Contains(template, "%s") {
		return fmt.Sprintf(template, LanguageName(targetLanguage))
	}
	return template
}
