package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// The recommendation service emits model-generated JSON whose field types
// drift. These types decode what they can and turn anything else into the
// zero value instead of failing the whole response.

type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		v = ""
	}
	*s = looseString(v)
	return nil
}

type looseBool bool

func (b *looseBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		v = false
	}
	*b = looseBool(v)
	return nil
}

// looseStrings accepts an array (non-string elements dropped) or a single
// non-blank string.
type looseStrings []string

func (s *looseStrings) UnmarshalJSON(data []byte) error {
	*s = nil

	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if strings.TrimSpace(one) != "" {
			*s = looseStrings{one}
		}
		return nil
	}

	var many []json.RawMessage
	if err := json.Unmarshal(data, &many); err != nil {
		return nil
	}
	for _, raw := range many {
		var v string
		if err := json.Unmarshal(raw, &v); err == nil && v != "" {
			*s = append(*s, v)
		}
	}
	return nil
}

// decodeSchemes keeps every object element of a JSON array. Anything that is
// not an array yields nil.
func decodeSchemes(data json.RawMessage) []Scheme {
	if len(data) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}

	out := make([]Scheme, 0, len(items))
	for _, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			continue
		}
		var s Scheme
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
		}
	}
	return out
}
