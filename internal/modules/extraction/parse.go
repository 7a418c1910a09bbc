package extraction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// TopicDraft is the parsed-but-unfinalized shape coming out of the model.
type TopicDraft struct {
	Title     string
	Subpoints []string
}

// IndexedDraft pairs a draft with the slide position it claims to describe.
type IndexedDraft struct {
	SlideIndex int
	Draft      TopicDraft
}

const previewMaxLen = 200

// ParseTopicJSON recovers a single topic object from raw model text. Models
// frequently wrap JSON in markdown fences, prepend prose, or truncate output
// at the token budget, so direct unmarshaling is only the first attempt.
func ParseTopicJSON(text string) (TopicDraft, bool) {
	s := stripCodeFences(text)
	if s == "" {
		return TopicDraft{}, false
	}

	if d, ok := unmarshalDraft(s); ok {
		return d, true
	}
	if looksTruncated(s) {
		if d, ok := repairTruncated(s); ok {
			return d, true
		}
	}
	if span, ok := balancedSpan(s, '{', '}'); ok {
		if d, ok := unmarshalDraft(span); ok {
			return d, true
		}
	}
	if span, ok := balancedSpan(s, '[', ']'); ok {
		if obj, ok := balancedSpan(span, '{', '}'); ok {
			if d, ok := unmarshalDraft(obj); ok {
				return d, true
			}
		}
	}
	return TopicDraft{}, false
}

// ParseTopicArray recovers a batch answer: an array of objects each carrying
// a slideIndex. When the array itself is damaged, every complete object found
// in the text is salvaged individually; objects without a usable slideIndex
// keep their order of appearance.
func ParseTopicArray(text string) ([]IndexedDraft, bool) {
	s := stripCodeFences(text)
	if s == "" {
		return nil, false
	}

	if drafts, ok := unmarshalIndexed(s); ok {
		return drafts, true
	}
	if span, ok := balancedSpan(s, '[', ']'); ok {
		if drafts, ok := unmarshalIndexed(span); ok {
			return drafts, true
		}
	}

	var out []IndexedDraft
	for pos, obj := range extractObjects(s) {
		m := map[string]any{}
		if err := json.Unmarshal([]byte(obj), &m); err != nil {
			continue
		}
		d := draftFromMap(m)
		idx := pos
		if n, ok := numberField(m, "slideIndex"); ok {
			idx = n
		}
		out = append(out, IndexedDraft{SlideIndex: idx, Draft: d})
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// stripCodeFences removes a surrounding markdown code fence, with or without
// a language tag.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		first := strings.TrimSpace(s[:nl])
		if first == "" || isFenceTag(first) {
			s = s[nl+1:]
		}
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isFenceTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func unmarshalDraft(s string) (TopicDraft, bool) {
	m := map[string]any{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return TopicDraft{}, false
	}
	return draftFromMap(m), true
}

func unmarshalIndexed(s string) ([]IndexedDraft, bool) {
	var arr []map[string]any
	if err := json.Unmarshal([]byte(s), &arr); err != nil {
		return nil, false
	}
	out := make([]IndexedDraft, 0, len(arr))
	for pos, m := range arr {
		idx := pos
		if n, ok := numberField(m, "slideIndex"); ok {
			idx = n
		}
		out = append(out, IndexedDraft{SlideIndex: idx, Draft: draftFromMap(m)})
	}
	return out, true
}

// draftFromMap tolerates loosely typed output: non-string subpoint entries
// are stringified rather than dropped.
func draftFromMap(m map[string]any) TopicDraft {
	d := TopicDraft{}
	if t, ok := m["title"].(string); ok {
		d.Title = t
	}
	raw, ok := m["subpoints"].([]any)
	if !ok {
		return d
	}
	for _, v := range raw {
		switch sv := v.(type) {
		case string:
			d.Subpoints = append(d.Subpoints, sv)
		case nil:
			// skip
		default:
			d.Subpoints = append(d.Subpoints, fmt.Sprint(sv))
		}
	}
	return d
}

func numberField(m map[string]any, key string) (int, bool) {
	f, ok := m[key].(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// looksTruncated reports whether the text appears cut off by a token budget:
// an unterminated string literal, unbalanced braces or brackets, or a
// trailing comma.
func looksTruncated(s string) bool {
	if strings.HasSuffix(strings.TrimSpace(s), ",") {
		return true
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		}
	}
	return inString || depth > 0
}

var (
	titleFieldRe     = regexp.MustCompile(`"title"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	subpointsFieldRe = regexp.MustCompile(`"subpoints"\s*:\s*\[`)
	quotedStringRe   = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
)

// repairTruncated salvages what survived the cutoff: the title field when its
// closing quote made it through, plus every subpoint string that closed
// cleanly. A half-written final element is discarded, never guessed at.
func repairTruncated(s string) (TopicDraft, bool) {
	d := TopicDraft{}
	if m := titleFieldRe.FindStringSubmatch(s); m != nil {
		d.Title = unescapeJSONString(m[1])
	}
	if loc := subpointsFieldRe.FindStringIndex(s); loc != nil {
		rest := s[loc[1]:]
		if end := strings.IndexByte(rest, ']'); end >= 0 {
			rest = rest[:end]
		}
		for _, m := range quotedStringRe.FindAllStringSubmatch(rest, -1) {
			d.Subpoints = append(d.Subpoints, unescapeJSONString(m[1]))
		}
	}
	if d.Title == "" && len(d.Subpoints) == 0 {
		return TopicDraft{}, false
	}
	return d, true
}

func unescapeJSONString(s string) string {
	u, err := strconv.Unquote(`"` + s + `"`)
	if err != nil {
		return s
	}
	return u
}

// balancedSpan returns the first complete open..close region, tracking string
// literals and escapes so braces inside values do not confuse the depth count.
func balancedSpan(s string, open, close byte) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if start >= 0 {
				inString = true
			}
		case open:
			if start < 0 {
				start = i
			}
			depth++
		case close:
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// extractObjects returns every complete top-level {...} region in order.
func extractObjects(s string) []string {
	var out []string
	for len(s) > 0 {
		span, ok := balancedSpan(s, '{', '}')
		if !ok {
			break
		}
		out = append(out, span)
		idx := strings.Index(s, span)
		s = s[idx+len(span):]
	}
	return out
}

// previewOf bounds raw model output for diagnostics.
func previewOf(text string) string {
	text = strings.TrimSpace(text)
	r := []rune(text)
	if len(r) <= previewMaxLen {
		return text
	}
	return string(r[:previewMaxLen])
}

// parseRankedJSON reads a {"ranked": [...]} relevance answer, tolerating the
// same fencing and wrapping quirks as topic output.
func parseRankedJSON(text string) ([]int, bool) {
	s := stripCodeFences(text)
	if s == "" {
		return nil, false
	}
	var payload struct {
		Ranked []int `json:"ranked"`
	}
	if err := json.Unmarshal([]byte(s), &payload); err == nil && len(payload.Ranked) > 0 {
		return payload.Ranked, true
	}
	if span, ok := balancedSpan(s, '{', '}'); ok {
		if err := json.Unmarshal([]byte(span), &payload); err == nil && len(payload.Ranked) > 0 {
			return payload.Ranked, true
		}
	}
	return nil, false
}
