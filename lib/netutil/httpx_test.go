// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"io"
	"strings"
	"testing"
)

func TestReadResponse(t *testing.T) {
	data, err := ReadResponse(strings.NewReader(`{"joined":{}}`))
	if err != nil {
		t.Fatalf("ReadResponse error: %v", err)
	}
	if string(data) != `{"joined":{}}` {
		t.Errorf("ReadResponse = %q", data)
	}
}

func TestReadResponseIsBounded(t *testing.T) {
	oversized := io.LimitReader(zeroReader{}, MaxResponseSize+1024)
	data, err := ReadResponse(oversized)
	if err != nil {
		t.Fatalf("ReadResponse error: %v", err)
	}
	if int64(len(data)) != MaxResponseSize {
		t.Errorf("read %d bytes, want cap %d", len(data), MaxResponseSize)
	}
}

type zeroReader struct{}

func (zeroReader) Read(buffer []byte) (int, error) {
	for index := range buffer {
		buffer[index] = 0
	}
	return len(buffer), nil
}
