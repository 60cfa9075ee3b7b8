// Copyright ©️ The Cinnabar Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cinnabar-scm/cinnabar/modules/streamio"
	"github.com/cinnabar-scm/cinnabar/modules/trace"
	"github.com/cinnabar-scm/cinnabar/pkg/transport"
	"github.com/cinnabar-scm/cinnabar/pkg/transport/proxy"
)

// Some servers do user-agent sniffing, and git-flavored agents get 404 on
// mercurial urls, so every request identifies as mercurial.
const userAgent = "mercurial/proto-1.0"

var dialer = net.Dialer{
	Timeout:   30 * time.Second,
	KeepAlive: 30 * time.Second,
}

// Executor runs single HTTP exchanges. The response body is pumped by a
// dedicated worker goroutine and consumed by the caller as a lazy stream;
// ResponseInfo is always available before the first body byte. A 401
// answer triggers at most one retry after the credential filler ran.
type Executor struct {
	client *http.Client
	fill   transport.CredentialFill
	dbg    trace.Debuger
}

func NewExecutor(insecureSkipTLS bool, fill transport.CredentialFill, verbose bool) *Executor {
	return &Executor{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 proxy.ProxyFromEnvironment,
				DialContext:           dialer.DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: insecureSkipTLS,
				},
			},
		},
		fill: fill,
		dbg:  trace.NewDebuger(verbose),
	}
}

// Response is a streaming HTTP response. Info is populated before any body
// byte is delivered. Read pulls chunks from the pump worker; Close drains
// the channel and joins the worker.
type Response struct {
	Info transport.ResponseInfo

	recv   chan []byte
	quit   chan struct{}
	done   chan struct{}
	cur    []byte
	err    error
	closed bool
}

func (r *Response) pump(body io.ReadCloser) {
	defer close(r.done)
	defer body.Close()
	buf := streamio.GetByteSlice()
	defer streamio.PutByteSlice(buf)
	for {
		n, err := body.Read(*buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, (*buf)[:n])
			select {
			case r.recv <- chunk:
			case <-r.quit:
				close(r.recv)
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				r.err = err
			}
			close(r.recv)
			return
		}
	}
}

func (r *Response) Read(p []byte) (int, error) {
	for {
		if len(r.cur) > 0 {
			n := copy(p, r.cur)
			r.cur = r.cur[n:]
			return n, nil
		}
		chunk, ok := <-r.recv
		if !ok {
			if r.err != nil {
				return 0, r.err
			}
			return 0, io.EOF
		}
		r.cur = chunk
	}
}

// Close cancels the stream: the worker observes the cancellation on its
// next send, closes the underlying body and exits. Close never returns
// before the worker joined.
func (r *Response) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	close(r.quit)
	for range r.recv {
	}
	<-r.done
	return nil
}

// LastError reports a transport failure observed while streaming the body.
func (r *Response) LastError() error {
	return r.err
}

// Execute runs req, retrying exactly once after filling credentials when
// the server demands authentication. Any other failure is fatal and is
// reported with the query-stripped URL.
func (e *Executor) Execute(ctx context.Context, req *transport.Request) (*Response, error) {
	resp, err := e.executeOnce(ctx, req)
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, transport.ErrReauthRequired) {
		if e.fill != nil {
			if ferr := e.fill(req.URL); ferr != nil {
				return nil, e.fatal(req, ferr)
			}
		}
		if resp, err = e.executeOnce(ctx, req); err == nil {
			return resp, nil
		}
	}
	return nil, e.fatal(req, err)
}

func (e *Executor) fatal(req *transport.Request, err error) error {
	stripped := *req.URL
	stripped.RawQuery = ""
	return &transport.TransportError{URL: stripped.String(), Message: err.Error()}
}

func (e *Executor) executeOnce(ctx context.Context, req *transport.Request) (*Response, error) {
	method := http.MethodGet
	var body io.Reader
	var length int64
	if req.Body != nil {
		method = http.MethodPost
		n, err := req.Body.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, err
		}
		// Ensure we have no state from a previous attempt that failed
		// because of authentication (401).
		if _, err := req.Body.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		length = n
		body = req.Body
	}
	hreq, err := http.NewRequestWithContext(ctx, method, req.URL.String(), body)
	if err != nil {
		return nil, err
	}
	if req.Body != nil {
		hreq.ContentLength = length
		// net/http only sends Expect: 100-continue when asked; leaving the
		// header unset keeps it off the wire.
	}
	for _, h := range req.Header {
		hreq.Header.Add(h.Name, h.Value)
	}
	hreq.Header.Set("User-Agent", userAgent)

	// POST bodies are not safely replayable across redirects, so a request
	// with a body never follows them.
	client := *e.client
	follow := req.FollowRedirects && req.Body == nil
	if follow {
		client.CheckRedirect = func(r *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			return nil
		}
	} else {
		client.CheckRedirect = func(r *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	e.dbg.DbgPrint("%s %s", method, req.URL)
	resp, err := client.Do(hreq)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		_ = resp.Body.Close()
		return nil, transport.ErrReauthRequired
	}
	if resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("the requested URL returned error: %d", resp.StatusCode)
	}
	var redirectedTo *url.URL
	if follow && resp.Request != nil && resp.Request.URL.String() != req.URL.String() {
		redirectedTo = resp.Request.URL
	}
	r := &Response{
		Info: transport.ResponseInfo{
			StatusCode:   resp.StatusCode,
			RedirectedTo: redirectedTo,
			ContentType:  resp.Header.Get("Content-Type"),
		},
		recv: make(chan []byte),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go r.pump(resp.Body)
	return r, nil
}
