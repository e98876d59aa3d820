// Copyright 2025
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/rs/zerolog/log"
)

// Compress lz4-frames data; used for cache values and persisted trace blobs.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		log.Error().Stack().Err(err).Msg("could not write data to lz4 writer")
		return nil, err
	}
	if err := w.Close(); err != nil {
		log.Error().Stack().Err(err).Msg("could not close lz4 writer")
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not read lz4 frame")
		return nil, err
	}
	return out, nil
}
