package ai

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

// Model output is untrusted input: JSON arrives wrapped in code fences,
// prefixed with prose, or with trailing commas. Compiling these once keeps
// repeated parses cheap.
var (
	fenceRegex         = regexp.MustCompile("(?s)`{3}(?:json)?\\s*\n?([\\s\\S]*?)\n?`{3}")
	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)
	lineCommentRegex   = regexp.MustCompile(`(?m)^\s*//.*$`)
	objectRegex        = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	arrayRegex         = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
)

// ParseResult is the total outcome of a parse attempt. Malformed input is a
// value, never a panic or a partial decode.
type ParseResult[T any] struct {
	OK   bool
	Data T
	Err  string
}

// Parse decodes JSON from model output with escalating fallback strategies:
//
//  1. direct decode
//  2. strip markdown code fences and retry
//  3. remove trailing commas and // comments and retry
//  4. extract the first JSON object or array from surrounding prose
func Parse[T any](text string) ParseResult[T] {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ParseResult[T]{Err: "empty input"}
	}

	if data, err := decode[T](trimmed); err == nil {
		return ParseResult[T]{OK: true, Data: data}
	}

	unfenced := stripFences(trimmed)
	if unfenced != trimmed {
		if data, err := decode[T](unfenced); err == nil {
			return ParseResult[T]{OK: true, Data: data}
		}
	}

	cleaned := cleanup(unfenced)
	if data, err := decode[T](cleaned); err == nil {
		return ParseResult[T]{OK: true, Data: data}
	}

	if extracted := extractJSON(cleaned); extracted != "" {
		if data, err := decode[T](extracted); err == nil {
			return ParseResult[T]{OK: true, Data: data}
		}
	}

	slog.Debug("all JSON parse strategies failed", "preview", preview(text, 120))
	return ParseResult[T]{Err: "all JSON parse strategies failed"}
}

// ParseOrDefault returns fallback when no strategy yields valid JSON.
func ParseOrDefault[T any](text string, fallback T) T {
	if res := Parse[T](text); res.OK {
		return res.Data
	}
	return fallback
}

func decode[T any](text string) (T, error) {
	var out T
	err := json.Unmarshal([]byte(text), &out)
	return out, err
}

func stripFences(text string) string {
	cleaned := fenceRegex.ReplaceAllString(text, "$1")
	cleaned = strings.TrimSpace(cleaned)
	if strings.HasPrefix(cleaned, "`") && strings.HasSuffix(cleaned, "`") {
		cleaned = strings.Trim(cleaned, "`")
	}
	return strings.TrimSpace(cleaned)
}

func cleanup(text string) string {
	cleaned := trailingCommaRegex.ReplaceAllString(text, "$1")
	cleaned = lineCommentRegex.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// extractJSON pulls the outermost JSON object or array out of mixed content.
// The first-character check keeps an array from being mined for its first
// element.
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "[") {
		return arrayRegex.FindString(trimmed)
	}
	if match := objectRegex.FindString(text); match != "" {
		return match
	}
	return arrayRegex.FindString(text)
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
