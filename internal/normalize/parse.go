package normalize

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// Kind classifies raw model output.
type Kind int

const (
	KindUnparsable Kind = iota
	KindSingleObject
	KindObjectArray
	KindEmbeddedJSON
)

func (k Kind) String() string {
	switch k {
	case KindSingleObject:
		return "single_object"
	case KindObjectArray:
		return "object_array"
	case KindEmbeddedJSON:
		return "embedded_json"
	default:
		return "unparsable"
	}
}

// Parsed is the classified model output. Objects is empty for KindUnparsable.
type Parsed struct {
	Kind    Kind
	Objects []map[string]any
	Raw     string
}

var (
	fencePattern  = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	objectPattern = regexp.MustCompile(`\{[\s\S]*\}`)
	arrayPattern  = regexp.MustCompile(`\[[\s\S]*\]`)
)

// Parse classifies raw text as a single object, an array of objects, JSON
// embedded in prose, or unparsable.
func Parse(raw string) Parsed {
	out := Parsed{Kind: KindUnparsable, Raw: raw}
	text := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	if text == "" {
		return out
	}

	if value, ok := decode(text); ok {
		switch v := value.(type) {
		case map[string]any:
			out.Kind = KindSingleObject
			out.Objects = []map[string]any{v}
			return out
		case []any:
			if objs := objectsOf(v); len(objs) > 0 {
				out.Kind = KindObjectArray
				out.Objects = objs
			}
			return out
		}
	}

	for _, pattern := range embeddedPatterns(text) {
		span := pattern.FindString(text)
		if span == "" {
			continue
		}
		value, ok := decode(span)
		if !ok {
			continue
		}
		switch v := value.(type) {
		case map[string]any:
			out.Kind = KindEmbeddedJSON
			out.Objects = []map[string]any{v}
			return out
		case []any:
			if objs := objectsOf(v); len(objs) > 0 {
				out.Kind = KindEmbeddedJSON
				out.Objects = objs
				return out
			}
		}
	}
	return out
}

// embeddedPatterns tries the span that opens first, so an object wrapping
// an array is kept whole.
func embeddedPatterns(text string) []*regexp.Regexp {
	obj := strings.IndexByte(text, '{')
	arr := strings.IndexByte(text, '[')
	if arr >= 0 && (obj < 0 || arr < obj) {
		return []*regexp.Regexp{arrayPattern, objectPattern}
	}
	return []*regexp.Regexp{objectPattern, arrayPattern}
}

func decode(text string) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return value, true
}

func objectsOf(items []any) []map[string]any {
	var objs []map[string]any
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			objs = append(objs, obj)
		}
	}
	return objs
}
