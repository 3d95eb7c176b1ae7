// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ir

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
)

// ReadJSONIr reads a JSON IR file.
func ReadJSONIr(filename string) (Library, error) {
	f, err := os.Open(filename)
	if err != nil {
		return Library{}, fmt.Errorf("error reading from %s: %w", filename, err)
	}
	defer f.Close()
	return DecodeJSONIr(f)
}

// DecodeJSONIr reads the JSON content from a reader. Unknown fields are
// rejected so that misspelled attributes do not silently change a layout.
func DecodeJSONIr(r io.Reader) (Library, error) {
	d := json.NewDecoder(r)
	d.DisallowUnknownFields()
	var lib Library
	if err := d.Decode(&lib); err != nil {
		return Library{}, fmt.Errorf("error parsing JSON IR: %w", err)
	}
	return lib, nil
}

// ReadJSONIrContent reads JSON IR content.
func ReadJSONIrContent(b []byte) (Library, error) {
	return DecodeJSONIr(bytes.NewReader(b))
}
