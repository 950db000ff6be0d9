// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package envelope

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotObject is returned by Decode when the JSON value is not an object.
var ErrNotObject = errors.New("json value is not an object")

// Decode parses a JSON document into a generic object. Numbers are kept as
// json.Number so large generations survive without float rounding.
func Decode(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after json value")
	}
	out, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return out, nil
}

// objectField returns m[key] when it is a JSON object.
func objectField(m map[string]any, key string) (map[string]any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m[key].(map[string]any)
	return v, ok
}

// stringField returns m[key] when it is a non-empty string or a number.
// Empty strings count as missing.
func stringField(m map[string]any, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	switch v := m[key].(type) {
	case string:
		return v, v != ""
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}

// firstString returns the first key of keys that stringField finds.
func firstString(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := stringField(m, k); ok {
			return v, true
		}
	}
	return "", false
}

// stringMap keeps the string-valued entries of an attribute object.
func stringMap(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k := range m {
		if v, ok := stringField(m, k); ok {
			out[k] = v
		} else if s, isString := m[k].(string); isString {
			out[k] = s
		}
	}
	return out
}

// parseGeneration parses a generation number. Generations are positive.
func parseGeneration(raw string) (*int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return nil, err
	}
	if v <= 0 {
		return nil, fmt.Errorf("generation must be positive, got %d", v)
	}
	return &v, nil
}

// decodeData decodes the base64 message data into a JSON object. Empty data
// yields an empty object.
func decodeData(data string) (map[string]any, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		var rawErr error
		if raw, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "=")); rawErr != nil {
			return nil, fmt.Errorf("base64 decode: %w", err)
		}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}
	payload, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}
	return payload, nil
}
