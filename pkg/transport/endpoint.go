// Copyright ©️ The Cinnabar Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// Endpoint represents a remote Mercurial repository URL. Only http and
// https are carried by this bridge.
type Endpoint struct {
	// Base URL of the repository
	Base *url.URL
	// InsecureSkipTLS skips ssl verify if protocol is https
	InsecureSkipTLS bool
	// ExtraHeader extra header
	ExtraHeader map[string]string
}

type Options struct {
	InsecureSkipTLS bool
	ExtraHeader     []string
}

func (opts *Options) parseExtraHeader() map[string]string {
	m := make(map[string]string)
	for _, h := range opts.ExtraHeader {
		k, v, ok := strings.Cut(h, ":")
		if !ok {
			continue
		}
		m[strings.ToLower(k)] = strings.TrimLeftFunc(v, unicode.IsSpace)
	}
	return m
}

func NewEndpoint(endpoint string, opts *Options) (*Endpoint, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("invalid endpoint: %s", endpoint)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported protocol '%s'", u.Scheme)
	}
	e := &Endpoint{Base: u}
	if opts != nil {
		e.InsecureSkipTLS = opts.InsecureSkipTLS
		e.ExtraHeader = opts.parseExtraHeader()
	}
	return e, nil
}

func (u *Endpoint) String() string {
	return u.Base.String()
}
