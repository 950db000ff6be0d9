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

package workflow

import (
	"encoding/base64"
	"encoding/json"
)

type pushMessage struct {
	Data       string            `json:"data,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	MessageID  string            `json:"messageId,omitempty"`
}

type pushBody struct {
	Message pushMessage `json:"message"`
}

// WrapPulledMessage renders a pulled message in the wrapped push body shape:
// {"message":{"data":base64,"attributes":{...},"messageId":id}}.
func WrapPulledMessage(data []byte, attributes map[string]string, messageID string) ([]byte, error) {
	return json.Marshal(pushBody{Message: pushMessage{
		Data:       base64.StdEncoding.EncodeToString(data),
		Attributes: attributes,
		MessageID:  messageID,
	}})
}
