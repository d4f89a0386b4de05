package edit

import (
	"fmt"
	"strings"

	"github.com/slok/wrun/internal/model"
)

// StringReplace returns a transformation that replaces old with new. Unless
// replaceAll is set, old must match exactly once: zero matches or an
// ambiguous match are domain failures, not infrastructure errors.
func StringReplace(old, updated string, replaceAll bool) TransformFunc {
	return func(original string) (*TransformResult, error) {
		if old == "" {
			return nil, fmt.Errorf("search string cannot be empty: %w", model.ErrTransformationRejected)
		}

		count := strings.Count(original, old)
		switch {
		case count == 0:
			return nil, fmt.Errorf("search string not found: %w", model.ErrTransformationRejected)
		case count > 1 && !replaceAll:
			return nil, fmt.Errorf("search string appears %d times, provide more context or replace all: %w", count, model.ErrTransformationRejected)
		}

		replacements := 1
		if replaceAll {
			replacements = count
		}

		return &TransformResult{
			NewContent:   strings.Replace(original, old, updated, replacements),
			Replacements: replacements,
		}, nil
	}
}

// ReplaceLines returns a transformation that replaces the 1-based inclusive
// line range [start, end] with the given content.
func ReplaceLines(start, end int, content string) TransformFunc {
	return func(original string) (*TransformResult, error) {
		if start < 1 || end < start {
			return nil, fmt.Errorf("invalid line range %d-%d: %w", start, end, model.ErrTransformationRejected)
		}

		lines := strings.Split(original, "\n")
		if end > len(lines) {
			return nil, fmt.Errorf("line range %d-%d is out of bounds, file has %d lines: %w", start, end, len(lines), model.ErrTransformationRejected)
		}

		var sb strings.Builder
		for _, line := range lines[:start-1] {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		sb.WriteString(content)
		if content != "" && !strings.HasSuffix(content, "\n") {
			sb.WriteString("\n")
		}
		for i, line := range lines[end:] {
			sb.WriteString(line)
			if i < len(lines[end:])-1 {
				sb.WriteString("\n")
			}
		}

		return &TransformResult{
			NewContent:   sb.String(),
			Replacements: end - start + 1,
		}, nil
	}
}
