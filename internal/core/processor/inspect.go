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

package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/h2non/filetype"
	"github.com/jaycherian/gcs-push-handler/internal/core/model"
)

// InspectName selects the Inspect processor.
const InspectName = "inspect"

// MaxInspectKeys is the number of top-level keys reported for JSON objects.
const MaxInspectKeys = 10

// Inspection is the result of the Inspect processor. Members are emitted in
// field order.
type Inspection struct {
	Kind  string
	Size  int
	Keys  []string
	Items *int
	MIME  string
}

// MarshalJSON always writes keys for a JSON object, as [] when it has none,
// and omits it for arrays and bytes.
func (i Inspection) MarshalJSON() ([]byte, error) {
	type wire struct {
		Kind  string    `json:"kind"`
		Size  int       `json:"size"`
		Keys  *[]string `json:"keys,omitempty"`
		Items *int      `json:"items,omitempty"`
		MIME  string    `json:"mime,omitempty"`
	}
	out := wire{Kind: i.Kind, Size: i.Size, Items: i.Items, MIME: i.MIME}
	if i.Kind == "json" && i.Items == nil {
		keys := i.Keys
		if keys == nil {
			keys = []string{}
		}
		out.Keys = &keys
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Inspect reports basic facts about the content. A JSON object yields its
// first MaxInspectKeys top-level keys in document order and a JSON array its
// length as items. JSON strings and other scalars are not containers and are
// reported as bytes, size and sniffed MIME type only, like non-JSON content.
func Inspect(_ context.Context, content []byte, _ model.ProcessingContext) (any, error) {
	if out, ok := inspectJSON(content); ok {
		return out, nil
	}
	out := Inspection{Kind: "bytes", Size: len(content)}
	if kind, err := filetype.Match(content); err == nil && kind != filetype.Unknown {
		out.MIME = kind.MIME.Value
	}
	return out, nil
}

// inspectJSON walks the top level of content with a token decoder so object
// keys keep their document order.
func inspectJSON(content []byte) (Inspection, bool) {
	if !json.Valid(content) {
		return Inspection{}, false
	}
	dec := json.NewDecoder(bytes.NewReader(content))
	tok, err := dec.Token()
	if err != nil {
		return Inspection{}, false
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return Inspection{}, false
	}

	out := Inspection{Kind: "json", Size: len(content)}
	switch delim {
	case '{':
		out.Keys = []string{}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return Inspection{}, false
			}
			if len(out.Keys) < MaxInspectKeys {
				out.Keys = append(out.Keys, keyTok.(string))
			}
			if err := skipValue(dec); err != nil {
				return Inspection{}, false
			}
		}
	case '[':
		items := 0
		for dec.More() {
			if err := skipValue(dec); err != nil {
				return Inspection{}, false
			}
			items++
		}
		out.Items = &items
	default:
		return Inspection{}, false
	}
	return out, true
}

func skipValue(dec *json.Decoder) error {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}
