// Copyright ©️ The Cinnabar Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/cinnabar-scm/cinnabar/pkg/config"
	"github.com/cinnabar-scm/cinnabar/pkg/transport"
)

/* The Mercurial HTTP protocol uses one HTTP request per command. The
 * command name travels as the "cmd" query parameter; command arguments
 * travel either as further query parameters or, when the server advertises
 * a positive httpheader byte budget, split across X-HgArg-N headers. The
 * command result is simply the HTTP response. */

// client is a wire connection to one remote repository over HTTP. The base
// URL is mutable: a server redirect re-homes every subsequent command.
type client struct {
	exec           *Executor
	baseURL        *url.URL
	caps           Capabilities
	initialRequest bool
	follow         config.FollowRedirects
	extraHeader    map[string]string
	diag           io.Writer
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	u2 := new(url.URL)
	*u2 = *u
	if u.User != nil {
		u2.User = new(url.Userinfo)
		*u2.User = *u.User
	}
	return u2
}

func (c *client) shouldFollowRedirects() bool {
	follow := (c.follow == config.FollowInitial && c.initialRequest) ||
		c.follow == config.FollowAlways
	if c.initialRequest {
		c.initialRequest = false
	}
	return follow
}

// encodeArgs form-urlencodes args into a single string, preserving pair
// order. url.Values would sort keys, which the chunked header form must
// not do.
func encodeArgs(args []transport.Arg) string {
	var b strings.Builder
	for i, a := range args {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(a.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(a.Value))
	}
	return b.String()
}

func (c *client) startCommandRequest(command string, args []transport.Arg) *transport.Request {
	budget := 0
	if v, ok := c.caps.Get("httpheader"); ok {
		budget, _ = strconv.Atoi(v)
	}

	commandURL := cloneURL(c.baseURL)
	query := "cmd=" + url.QueryEscape(command)
	var header []transport.HeaderField
	if budget > 0 && len(args) > 0 {
		// The encoded string is percent-escaped ASCII, so the split is
		// byte-exact without codepoint concerns.
		encoded := encodeArgs(args)
		num := 1
		for len(encoded) > 0 {
			name := fmt.Sprintf("X-HgArg-%d", num)
			num++
			n := budget - len(name) - len(": ")
			if n < 1 {
				n = 1
			}
			if n > len(encoded) {
				n = len(encoded)
			}
			header = append(header, transport.HeaderField{Name: name, Value: encoded[:n]})
			encoded = encoded[n:]
		}
	} else if len(args) > 0 {
		query += "&" + encodeArgs(args)
	}
	commandURL.RawQuery = query

	req := &transport.Request{
		URL:             commandURL,
		FollowRedirects: c.shouldFollowRedirects(),
	}
	req.Header = append(req.Header, transport.HeaderField{Name: "Accept", Value: "application/mercurial-0.1"})
	for k, v := range c.extraHeader {
		req.Header = append(req.Header, transport.HeaderField{Name: k, Value: v})
	}
	req.Header = append(req.Header, header...)
	return req
}

// handleRedirect re-homes the connection when the response was served from
// somewhere else, so later commands go there directly.
func (c *client) handleRedirect(resp *Response) {
	if u := resp.Info.RedirectedTo; u != nil {
		newURL := cloneURL(u)
		newURL.RawQuery = ""
		fmt.Fprintf(c.diag, "warning: redirecting to %s\n", newURL.String())
		c.baseURL = newURL
	}
}

// GetCapability returns the raw value of an advertised capability.
func (c *client) GetCapability(name string) (string, bool) {
	return c.caps.Get(name)
}

func (c *client) Close() error {
	c.exec.client.CloseIdleConnections()
	return nil
}
