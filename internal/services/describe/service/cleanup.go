package service

import "strings"

// roleMarker is the chat-template role tag models echo back when special
// tokens are stripped but the template text is not. Package-level seam so
// tests can pin the split against other template dialects
var roleMarker = "assistant"

var imageSuffixes = []string{
	".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff", ".webp", ".heic",
}

// CleanResponse strips chat-template artifacts from raw model output.
// The rules are heuristic and intentionally conservative:
//
//  1. keep only the content after the LAST role marker occurrence
//  2. strip leading whitespace and angle-bracket markup tokens
//  3. drop lines that echo the prompt or look like file paths
//  4. if nothing survives, fall back to the trimmed raw text
func CleanResponse(raw, prompt string) string {
	text := raw
	if i := strings.LastIndex(text, roleMarker); i >= 0 {
		text = text[i+len(roleMarker):]
	}
	text = stripLeadingMarkup(text)

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if echoesPrompt(trimmed, prompt) || looksLikePath(trimmed) {
			continue
		}
		kept = append(kept, trimmed)
	}

	out := strings.TrimSpace(strings.Join(kept, "\n"))
	if out == "" {
		return strings.TrimSpace(raw)
	}
	return out
}

// stripLeadingMarkup removes leading whitespace and <...> tokens such as
// special-token remnants left at the head of the decoded text
func stripLeadingMarkup(s string) string {
	for {
		s = strings.TrimLeft(s, " \t\r\n:")
		if !strings.HasPrefix(s, "<") {
			return s
		}
		end := strings.Index(s, ">")
		if end < 0 {
			return s
		}
		s = s[end+1:]
	}
}

// echoesPrompt reports whether the line is the prompt bounced back
func echoesPrompt(line, prompt string) bool {
	if prompt == "" {
		return false
	}
	return strings.EqualFold(line, prompt) ||
		strings.Contains(strings.ToLower(line), strings.ToLower(prompt))
}

// looksLikePath flags bare filesystem paths the template sometimes leaks:
// a single token containing a separator, or anything ending in a known
// image extension
func looksLikePath(line string) bool {
	if strings.ContainsAny(line, " \t") {
		return false
	}
	if strings.ContainsAny(line, "/\\") {
		return true
	}
	lower := strings.ToLower(line)
	for _, suf := range imageSuffixes {
		if strings.HasSuffix(lower, suf) {
			return true
		}
	}
	return false
}
