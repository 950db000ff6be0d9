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

// Package test provides fixtures and fakes for the test suite: push bodies in
// both delivery shapes, storage notification payloads and an in-memory object
// store that tracks generations.
package test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcs-push-handler/internal/cloud"
)

// Notification returns a JSON_API_V1 storage notification for bucket/name at
// generation.
func Notification(bucket string, name string, generation int64) cloud.GCSPubSubNotification {
	gen := strconv.FormatInt(generation, 10)
	return cloud.GCSPubSubNotification{
		Kind:           "storage#object",
		ID:             fmt.Sprintf("%s/%s/%s", bucket, name, gen),
		Name:           name,
		Bucket:         bucket,
		Generation:     gen,
		MetaGeneration: "1",
		ContentType:    "application/json",
		TimeCreated:    "2024-10-11T03:04:08.672Z",
		Updated:        "2024-10-11T03:04:08.672Z",
		Size:           "10",
		MD5Hash:        "67c1rAU+1RYZzK5zp8iBkA==",
		Crc32c:         "IYeSTw==",
	}
}

// NotificationAttributes returns the attributes Cloud Storage sets on a
// notification message.
func NotificationAttributes(bucket string, name string, generation int64, eventType string) map[string]string {
	return map[string]string{
		"bucketId":         bucket,
		"objectId":         name,
		"objectGeneration": strconv.FormatInt(generation, 10),
		"eventType":        eventType,
		"payloadFormat":    "JSON_API_V1",
	}
}

// WrappedBody builds a wrapped push body. A nil payload leaves out
// message.data; a []byte payload is encoded as is, anything else is
// marshalled to JSON first.
func WrappedBody(attributes map[string]string, payload any) []byte {
	message := map[string]any{
		"messageId":   "2070443601311540",
		"publishTime": "2024-10-11T03:04:09.105Z",
	}
	if attributes != nil {
		message["attributes"] = attributes
	}
	if payload != nil {
		raw, ok := payload.([]byte)
		if !ok {
			raw = MustJSON(payload)
		}
		message["data"] = base64.StdEncoding.EncodeToString(raw)
	}
	return MustJSON(map[string]any{
		"message":      message,
		"subscription": "projects/test-project/subscriptions/object-events",
	})
}

// MustJSON marshals v and panics on failure.
func MustJSON(v any) []byte {
	out, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return out
}

// Write records one WriteObject call.
type Write struct {
	Bucket      string
	Name        string
	Data        []byte
	ContentType string
}

// ObjectStore is an in-memory cloud.ObjectStore. Each object has a current
// generation; pinned reads of any other generation fail with
// cloud.ClassifyReadError's generation mismatch, like a Cloud Storage read with an
// ifGenerationMatch precondition.
type ObjectStore struct {
	mu          sync.Mutex
	objects     map[string]storedObject
	Reads       []Read
	Writes      []Write
	ReadErr     error
	WriteErr    error
	nextVersion int64
}

// Read records one ReadObject call.
type Read struct {
	Bucket     string
	Name       string
	Generation *int64
}

type storedObject struct {
	generation int64
	data       []byte
}

// NewObjectStore creates an empty store.
func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string]storedObject), nextVersion: 1}
}

// Put stores data as bucket/name at generation.
func (s *ObjectStore) Put(bucket string, name string, generation int64, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+name] = storedObject{generation: generation, data: data}
}

// Get returns the current content of bucket/name.
func (s *ObjectStore) Get(bucket string, name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[bucket+"/"+name]
	return obj.data, ok
}

func (s *ObjectStore) ReadObject(_ context.Context, bucket string, name string, generation *int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reads = append(s.Reads, Read{Bucket: bucket, Name: name, Generation: generation})
	if s.ReadErr != nil {
		return nil, s.ReadErr
	}
	obj, ok := s.objects[bucket+"/"+name]
	if generation != nil {
		if !ok || obj.generation != *generation {
			return nil, cloud.ClassifyReadError(storage.ErrObjectNotExist, generation)
		}
		return obj.data, nil
	}
	if !ok {
		return nil, storage.ErrObjectNotExist
	}
	return obj.data, nil
}

func (s *ObjectStore) WriteObject(_ context.Context, bucket string, name string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.Writes = append(s.Writes, Write{Bucket: bucket, Name: name, Data: data, ContentType: contentType})
	s.objects[bucket+"/"+name] = storedObject{generation: s.nextVersion, data: data}
	s.nextVersion++
	return nil
}

// ReadCount returns the number of ReadObject calls.
func (s *ObjectStore) ReadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Reads)
}

var _ cloud.ObjectStore = (*ObjectStore)(nil)
