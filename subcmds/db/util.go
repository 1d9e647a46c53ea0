// Copyright (c) 2023 BVK Chaitanya

package db

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"

	"github.com/bvk/candlebot/gobs"
)

// decodeValue gob-decodes the value into the named type and returns its
// json form. Value is printed in hex when type name is empty.
func decodeValue(typename string, r io.Reader) (string, error) {
	if len(typename) == 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%x", data), nil
	}
	value, err := gobs.NewByTypename(typename)
	if err != nil {
		return "", err
	}
	if err := gob.NewDecoder(r).Decode(value); err != nil {
		return "", fmt.Errorf("could not gob-decode value as %s: %w", typename, err)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("could not json-marshal value: %w", err)
	}
	return string(data), nil
}

// encodeValue json-decodes the input into the named type and returns its
// gob encoding.
func encodeValue(typename string, js string) (*bytes.Buffer, error) {
	value, err := gobs.NewByTypename(typename)
	if err != nil {
		return nil, err
	}
	decoder := json.NewDecoder(bytes.NewReader([]byte(js)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(value); err != nil {
		return nil, fmt.Errorf("could not json-decode value as %s: %w", typename, err)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return nil, fmt.Errorf("could not gob-encode value: %w", err)
	}
	return &buf, nil
}
