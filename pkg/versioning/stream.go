// Copyright 2025 S3Plus Authors
// SPDX-License-Identifier: Apache-2.0

package versioning

import (
	"io"
	"sync"
)

// releasingBody closes the underlying stream as soon as it is exhausted or
// fails, and again (idempotently) on Close.
type releasingBody struct {
	rc   io.ReadCloser
	once sync.Once
	err  error
}

func newReleasingBody(rc io.ReadCloser) *releasingBody {
	return &releasingBody{rc: rc}
}

func (b *releasingBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if err != nil {
		b.release()
	}
	return n, err
}

func (b *releasingBody) Close() error {
	b.release()
	return b.err
}

func (b *releasingBody) release() {
	b.once.Do(func() {
		b.err = b.rc.Close()
	})
}
