package collector

import (
	"bytes"
	"encoding/json"
	"fmt"

	"HomeworkSentinel/internal/model"
)

const (
	keyHomeworks   = "homeworks"
	keyCurrentDate = "current_date"
)

// CheckResponse validates the shape of an API answer and returns its homework list.
// The list may be empty.
func CheckResponse(raw json.RawMessage) ([]model.Homework, error) {
	var top map[string]json.RawMessage
	if firstByte(raw) != '{' || json.Unmarshal(raw, &top) != nil {
		return nil, fmt.Errorf("%w: got %s", model.ErrTypeMismatch, kindOfJSON(raw))
	}

	homeworks, ok := top[keyHomeworks]
	if !ok || isNull(homeworks) {
		return nil, fmt.Errorf("%w: %q", model.ErrMissingKey, keyHomeworks)
	}
	if cursor, ok := top[keyCurrentDate]; !ok || isNull(cursor) {
		return nil, model.ErrMissingCursor
	}
	if firstByte(homeworks) != '[' {
		return nil, fmt.Errorf("%w: %q is %s, not a list", model.ErrShape, keyHomeworks, kindOfJSON(homeworks))
	}

	var items []json.RawMessage
	if err := json.Unmarshal(homeworks, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrShape, err)
	}
	list := make([]model.Homework, 0, len(items))
	for i, item := range items {
		if firstByte(item) != '{' {
			return nil, fmt.Errorf("%w: %s[%d] is %s, not an object", model.ErrShape, keyHomeworks, i, kindOfJSON(item))
		}
		var hw model.Homework
		if err := json.Unmarshal(item, &hw); err != nil {
			return nil, fmt.Errorf("%w: %s[%d]: %v", model.ErrShape, keyHomeworks, i, err)
		}
		list = append(list, hw)
	}
	return list, nil
}

// CurrentDate extracts the server cursor. It reports false when the answer is
// not an object or the key is absent or not a number.
func CurrentDate(raw json.RawMessage) (int64, bool) {
	var top map[string]json.RawMessage
	if firstByte(raw) != '{' || json.Unmarshal(raw, &top) != nil {
		return 0, false
	}
	v, ok := top[keyCurrentDate]
	if !ok {
		return 0, false
	}
	if b := firstByte(v); b != '-' && (b < '0' || b > '9') {
		return 0, false
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return 0, false
	}
	if ts, err := n.Int64(); err == nil {
		return ts, true
	}
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return int64(f), true
}

func firstByte(raw []byte) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func kindOfJSON(raw []byte) string {
	switch firstByte(raw) {
	case '{':
		return "an object"
	case '[':
		return "a list"
	case '"':
		return "a string"
	case 't', 'f':
		return "a boolean"
	case 'n':
		return "null"
	case 0:
		return "empty"
	default:
		return "a number"
	}
}
