//go:build unit
// +build unit

package io_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	internal_io "github.com/labsandbox/go-sdk/internal/io"
)

func TestReadAll(t *testing.T) {
	runTestCase := func(t *testing.T, r io.Reader, expected []byte) {
		if b, err := internal_io.ReadAll(r); err != nil {
			t.Fatal(err)
		} else if !bytes.Equal(expected, b) {
			t.Fatalf("unexpected read content: b=%#v, expected=%#v", b, expected)
		} else if n, err := r.Read(make([]byte, 1)); err != nil && err != io.EOF {
			t.Fatal(err)
		} else if n != 0 {
			t.Fatal("unexpected read size")
		}
	}
	expected := []byte(`{"id":"sb-1","state":"Ready"}`)
	runTestCase(t, bytes.NewBuffer(expected), expected)
	runTestCase(t, internal_io.NewBytesNopCloser(expected), expected)
}

func TestSinkAll(t *testing.T) {
	for _, r := range []io.Reader{
		bytes.NewBufferString("abc"),
		internal_io.NewBytesNopCloser([]byte("abc")),
		strings.NewReader("abc"),
	} {
		if err := internal_io.SinkAll(r); err != nil {
			t.Fatal(err)
		}
		if n, _ := r.Read(make([]byte, 1)); n != 0 {
			t.Fatal("reader should be drained")
		}
	}
}

func TestReadSeekableNopCloser(t *testing.T) {
	rc := internal_io.NewReadSeekableNopCloser(strings.NewReader("payload"))
	first, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = rc.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	second, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != "payload" || string(second) != "payload" {
		t.Fatal("body should be re-readable after seek")
	}
	if err = rc.Close(); err != nil {
		t.Fatal(err)
	}
}
