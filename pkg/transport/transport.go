// Copyright ©️ The Cinnabar Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"io"
	"net/url"

	"github.com/cinnabar-scm/cinnabar/modules/hg"
)

// Arg is a single Mercurial command argument. Order matters on the wire,
// so arguments travel as a slice, never a map.
type Arg struct {
	Name  string
	Value string
}

// HeaderField is an ordered HTTP header pair.
type HeaderField struct {
	Name  string
	Value string
}

// Request describes one HTTP exchange. A non-nil Body turns the request
// into a POST with an exact Content-Length; the body must be rewindable so
// an authentication retry can replay it from the start.
type Request struct {
	URL             *url.URL
	Header          []HeaderField
	Body            io.ReadSeeker
	FollowRedirects bool
}

// ResponseInfo is delivered before any body byte.
type ResponseInfo struct {
	StatusCode   int
	RedirectedTo *url.URL
	ContentType  string
}

// SessionReader is a streaming response body. LastError reports a deferred
// transport failure observed while streaming.
type SessionReader interface {
	io.Reader
	io.Closer
	LastError() error
}

// CredentialFill asks the credential helper to (re)fill credentials for
// the given URL before an authentication retry.
type CredentialFill func(u *url.URL) error

// Connection is an established link to a remote Mercurial repository, or
// to a bundle served at a repository-less URL.
type Connection interface {
	// GetCapability returns the raw value of an advertised capability.
	GetCapability(name string) (string, bool)
	// GetBundle streams a changegroup bundle for the requested heads to w.
	GetBundle(ctx context.Context, w io.Writer, heads, common []hg.ChangesetId, bundle2caps string) error
	Close() error
}
