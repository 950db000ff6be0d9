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

package model

import (
	"fmt"
	"strconv"
)

// LiveGeneration is the marker used in keys and output paths when no
// generation is known.
const LiveGeneration = "live"

// GenerationLabel renders a generation for keys and paths, or "live" when nil.
func GenerationLabel(generation *int64) string {
	if generation == nil {
		return LiveGeneration
	}
	return strconv.FormatInt(*generation, 10)
}

// IdempotencyKey derives the key "{bucket}/{object}#{generation|live}".
// It is a pure function of its inputs; deduplication stores may rely on it
// being stable across processes and releases.
func IdempotencyKey(bucket string, objectID string, generation *int64) string {
	return fmt.Sprintf("%s/%s#%s", bucket, objectID, GenerationLabel(generation))
}

// OutputObjectName derives the name of the result artifact for an object:
// "{prefix}{object}.gen{generation|live}.json".
func OutputObjectName(prefix string, objectID string, generation *int64) string {
	return fmt.Sprintf("%s%s.gen%s.json", prefix, objectID, GenerationLabel(generation))
}
