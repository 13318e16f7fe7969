// Package router selects which backend model answers a given utterance. The
// classifier is pure and deterministic: case-insensitive substring matching
// in fixed precedence order, with an explicit user override that always wins.
package router

import "strings"

// Model IDs handed to the generation registry.
const (
	ModelReasoning = "gpt-4o"
	ModelCreative  = "gemini-2.0-flash"
	ModelDefault   = "gpt-4o-mini"
)

// AutoModel is the override value meaning "let the router decide".
const AutoModel = "auto"

// Keyword groups in precedence order: first match wins.
var (
	codeKeywords = []string{
		"code", "debug", "function", "program", "script",
		"compile", "error", "bug", "algorithm", "refactor",
	}
	creativeKeywords = []string{
		"write", "story", "poem", "creative", "imagine",
		"fiction", "song", "lyrics",
	}
	analysisKeywords = []string{
		"analyze", "analyse", "compare", "explain", "why",
		"how does", "difference between", "reason",
	}
)

// SelectModel classifies the utterance. An explicit override (anything other
// than empty or AutoModel) is returned unchanged.
func SelectModel(utterance string, override string) string {
	if override != "" && override != AutoModel {
		return override
	}

	text := strings.ToLower(utterance)
	if containsAny(text, codeKeywords) {
		return ModelReasoning
	}
	if containsAny(text, creativeKeywords) {
		return ModelCreative
	}
	if containsAny(text, analysisKeywords) {
		return ModelReasoning
	}
	return ModelDefault
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
