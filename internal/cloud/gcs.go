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

// Package cloud contains data structures and utilities for interacting with Google Cloud services.
// This file defines the Google Cloud Storage (GCS) side of the handler: the
// JSON_API_V1 notification payload, the ObjectStore abstraction the commands
// depend on, and its GCS implementation.
//
// Generation pinning: when a generation is known the read is issued against
// that exact generation with an ifGenerationMatch precondition, so an object
// that has since been overwritten or deleted fails the read instead of
// silently returning other content. When no generation is known the live
// object is read; a write that lands between the notification and the read
// is then visible. That weaker read is accepted because some event sources
// never carry a generation.
//
// Structs:
//   - GCSPubSubNotification: Maps to the JSON payload from GCS event notifications.
//   - GCSObjectStore: ObjectStore backed by a *storage.Client.
//
// Functions:
//   - ClassifyReadError: Maps storage errors on pinned reads to model.ErrGenerationMismatch.
package cloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcs-push-handler/internal/core/model"
	"google.golang.org/api/googleapi"
)

// GCSPubSubNotification is the structure that maps to the JSON message payload
// received from a Google Cloud Storage (GCS) Pub/Sub notification with the
// JSON_API_V1 payload format.
type GCSPubSubNotification struct {
	Kind           string         `json:"kind"`           // The kind of the object, typically "storage#object".
	ID             string         `json:"id"`             // The full ID of the object, including bucket and generation.
	Name           string         `json:"name"`           // The name of the object within the bucket.
	Bucket         string         `json:"bucket"`         // The name of the bucket containing the object.
	Generation     string         `json:"generation"`     // The generation number of the object's content.
	MetaGeneration string         `json:"metageneration"` // The generation number of the object's metadata.
	ContentType    string         `json:"contentType"`    // The MIME type of the object's content.
	TimeCreated    string         `json:"timeCreated"`    // The creation time of the object.
	Updated        string         `json:"updated"`        // The last modification time of the object.
	Size           string         `json:"size"`           // The size of the object in bytes.
	MD5Hash        string         `json:"md5Hash"`        // The MD5 hash of the object's content.
	MetaData       map[string]any `json:"metadata"`       // User-provided metadata, if any.
	Crc32c         string         `json:"crc32c"`         // The CRC32C checksum of the object's content.
}

// ObjectStore is the subset of object storage the handler needs.
type ObjectStore interface {
	// ReadObject returns the content of bucket/name. A non-nil generation pins
	// the read to that generation and fails with model.ErrGenerationMismatch
	// when the object is no longer at it.
	ReadObject(ctx context.Context, bucket string, name string, generation *int64) ([]byte, error)
	// WriteObject creates or replaces bucket/name with data.
	WriteObject(ctx context.Context, bucket string, name string, data []byte, contentType string) error
}

// GCSObjectStore implements ObjectStore on Cloud Storage. It is safe for
// concurrent use; the underlying client is shared read-only.
type GCSObjectStore struct {
	client    *storage.Client
	chunkSize int
}

// NewGCSObjectStore wraps a storage client. A positive chunkSize makes reads
// copy through a buffer of that size.
func NewGCSObjectStore(client *storage.Client, chunkSize int) *GCSObjectStore {
	return &GCSObjectStore{client: client, chunkSize: chunkSize}
}

// ReadObject reads the object, pinned to generation when one is given.
func (s *GCSObjectStore) ReadObject(ctx context.Context, bucket string, name string, generation *int64) ([]byte, error) {
	obj := s.client.Bucket(bucket).Object(name)
	if generation != nil {
		obj = obj.Generation(*generation).If(storage.Conditions{GenerationMatch: *generation})
	}
	reader, err := obj.NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS reader for gs://%s/%s#%s: %w", bucket, name, model.GenerationLabel(generation), ClassifyReadError(err, generation))
	}
	defer func(reader *storage.Reader) {
		_ = reader.Close()
	}(reader)

	content, err := ReadChunked(reader, reader.Attrs.Size, s.chunkSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s#%s: %w", bucket, name, model.GenerationLabel(generation), err)
	}
	return content, nil
}

// WriteObject writes data with the given content type. The object is only
// created once the writer closes without error.
func (s *GCSObjectStore) WriteObject(ctx context.Context, bucket string, name string, data []byte, contentType string) error {
	writer := s.client.Bucket(bucket).Object(name).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write gs://%s/%s: %w", bucket, name, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize gs://%s/%s: %w", bucket, name, err)
	}
	return nil
}

// ClassifyReadError maps the errors a pinned read returns when the object is
// no longer at the requested generation (not found, or HTTP 412) to
// model.ErrGenerationMismatch. Other errors, and all errors of live reads,
// are returned unchanged.
func ClassifyReadError(err error, generation *int64) error {
	if err == nil || generation == nil {
		return err
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: generation %d: %w", model.ErrGenerationMismatch, *generation, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
		return fmt.Errorf("%w: generation %d: %w", model.ErrGenerationMismatch, *generation, err)
	}
	return err
}

// ReadChunked reads r to the end. sizeHint preallocates; a positive chunkSize
// bounds each read.
func ReadChunked(r io.Reader, sizeHint int64, chunkSize int) ([]byte, error) {
	if chunkSize <= 0 {
		return io.ReadAll(r)
	}
	var out bytes.Buffer
	if sizeHint > 0 {
		out.Grow(int(sizeHint))
	}
	chunk := make([]byte, chunkSize)
	for {
		n, err := r.Read(chunk)
		out.Write(chunk[:n])
		if errors.Is(err, io.EOF) {
			return out.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}
