package io

import (
	"bytes"
	"io"
)

// ReadSeekableNopCloser 为可 Seek 的 Reader 提供空的 Close，重试前可回到起点重新发送
type ReadSeekableNopCloser struct {
	r io.ReadSeeker
}

func NewReadSeekableNopCloser(r io.ReadSeeker) ReadSeekableNopCloser {
	return ReadSeekableNopCloser{r: r}
}

func (nc ReadSeekableNopCloser) Read(p []byte) (int, error) {
	return nc.r.Read(p)
}

func (nc ReadSeekableNopCloser) Seek(offset int64, whence int) (int64, error) {
	return nc.r.Seek(offset, whence)
}

func (nc ReadSeekableNopCloser) Close() error {
	return nil
}

// BytesNopCloser 持有完整的响应内容，可多次读取
type BytesNopCloser struct {
	r *bytes.Reader
	b []byte
}

func NewBytesNopCloser(b []byte) *BytesNopCloser {
	return &BytesNopCloser{r: bytes.NewReader(b), b: b}
}

func (nc *BytesNopCloser) Read(p []byte) (int, error) {
	return nc.r.Read(p)
}

func (nc *BytesNopCloser) Seek(offset int64, whence int) (int64, error) {
	return nc.r.Seek(offset, whence)
}

func (nc *BytesNopCloser) Close() error {
	return nil
}

func (nc *BytesNopCloser) Bytes() []byte {
	return nc.b
}

func ReadAll(r io.Reader) ([]byte, error) {
	switch b := r.(type) {
	case *BytesNopCloser:
		_, err := b.Seek(0, io.SeekEnd)
		return b.Bytes(), err
	default:
		return io.ReadAll(r)
	}
}

func SinkAll(r io.Reader) (err error) {
	switch b := r.(type) {
	case *BytesNopCloser:
		_, err = b.Seek(0, io.SeekEnd)
	case *bytes.Buffer:
		b.Truncate(0)
	default:
		_, err = io.Copy(io.Discard, r)
	}
	return
}
