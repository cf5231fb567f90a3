package modelclient

import (
	"encoding/json"
	"regexp"
	"strings"
)

// fencedCodeSpan matches the innermost fenced code block whose language tag
// is "json" or empty, e.g. ```json\n{...}\n``` or ```\n{...}\n```.
var fencedCodeSpan = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n```")

// ExtractJSON implements the tolerant extraction algorithm required by
// SPEC_FULL.md §4.2: (1) parse directly, (2) fall back to the innermost
// fenced code span, (3) fall back to the substring from the first `{` to the
// last `}`, (4) give up with a ModelResponseError carrying a truncated
// prefix of the raw text.
//
// Invariant: ExtractJSON(Serialize(d)) == d for any JSON object d, and
// wrapping that serialization in a fenced code span preserves the result,
// because direct parsing is always tried first.
func ExtractJSON(component, text string) (map[string]interface{}, error) {
	if obj, ok := tryParse(text); ok {
		return obj, nil
	}

	if m := fencedCodeSpan.FindStringSubmatch(text); m != nil {
		if obj, ok := tryParse(m[1]); ok {
			return obj, nil
		}
	}

	if first := strings.IndexByte(text, '{'); first != -1 {
		if last := strings.LastIndexByte(text, '}'); last > first {
			if obj, ok := tryParse(text[first : last+1]); ok {
				return obj, nil
			}
		}
	}

	return nil, newResponseError(component, text)
}

func tryParse(s string) (map[string]interface{}, bool) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &obj); err != nil {
		return nil, false
	}
	return obj, true
}
