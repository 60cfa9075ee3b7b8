// Copyright ©️ The Cinnabar Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"bytes"
	"compress/bzip2"
	"context"
	"io"
	"strings"

	"github.com/cinnabar-scm/cinnabar/modules/streamio"
	"github.com/cinnabar-scm/cinnabar/pkg/transport"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

type sessionReader struct {
	io.Reader
	closers []io.Closer
	resp    *Response
}

func (r *sessionReader) Close() error {
	for _, c := range r.closers {
		_ = c.Close()
	}
	return nil
}

func (r *sessionReader) LastError() error {
	if r.resp != nil {
		return r.resp.LastError()
	}
	return nil
}

// readAtMost reads up to n bytes, stopping early at EOF.
func readAtMost(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	got, err := io.ReadFull(r, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		err = nil
	}
	return buf[:got], err
}

// SimpleCommand issues command and returns the whole response body.
// pushkey requires POST semantics even without data, so it ships an empty
// body with the mercurial content type.
func (c *client) SimpleCommand(ctx context.Context, command string, args ...transport.Arg) ([]byte, error) {
	req := c.startCommandRequest(command, args)
	if command == "pushkey" {
		req.Header = append(req.Header, transport.HeaderField{Name: "Content-Type", Value: "application/mercurial-0.1"})
		req.Body = bytes.NewReader(nil)
	}
	resp, err := c.exec.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Close()
	c.handleRedirect(resp)
	var buf bytes.Buffer
	if _, err := streamio.Copy(&buf, resp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

/* The changegroup, changegroupsubset and getbundle commands return a raw
 * zlib stream when called over HTTP, unless the server talks the 0.2 media
 * type, whose body declares its own codec. */
func (c *client) ChangegroupCommand(ctx context.Context, command string, args ...transport.Arg) (transport.SessionReader, error) {
	req := c.startCommandRequest(command, args)
	if mediaType, ok := c.caps.Get("httpmediatype"); ok {
		// Exact token equality, no media-type grammar.
		for _, t := range strings.Split(mediaType, ",") {
			if t == "0.2tx" {
				req.Header = append(req.Header, transport.HeaderField{Name: "X-HgProto-1", Value: "0.1 0.2 comp=zstd,zlib,none,bzip2"})
				break
			}
		}
	}
	resp, err := c.exec.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	c.handleRedirect(resp)

	switch resp.Info.ContentType {
	case "application/mercurial-0.1":
		zr, err := streamio.NewZlibReader(resp)
		if err != nil {
			_ = resp.Close()
			return nil, err
		}
		return &sessionReader{Reader: zr, closers: []io.Closer{zr, resp}, resp: resp}, nil
	case "application/mercurial-0.2":
		return c.newFrameReader(resp)
	case "application/hg-error":
		// The caller sees the literal protocol error marker; the server's
		// explanation goes to the diagnostic stream.
		w := streamio.NewPrefixWriter([]byte("remote: "), c.diag)
		_, cerr := streamio.Copy(w, resp)
		_ = resp.Close()
		if cerr != nil {
			return nil, cerr
		}
		return &sessionReader{Reader: strings.NewReader("err\n")}, nil
	default:
		_ = resp.Close()
		return nil, transport.NewProtocolError("unimplemented content-type '%s'", resp.Info.ContentType)
	}
}

// newFrameReader decodes the application/mercurial-0.2 framing: one length
// byte, the ASCII codec name, then the codec-framed payload.
func (c *client) newFrameReader(resp *Response) (transport.SessionReader, error) {
	var lenBuf [1]byte
	if _, err := io.ReadFull(resp, lenBuf[:]); err != nil {
		_ = resp.Close()
		return nil, transport.NewProtocolError("short read in compression header")
	}
	name := make([]byte, int(lenBuf[0]))
	if _, err := io.ReadFull(resp, name); err != nil {
		_ = resp.Close()
		return nil, transport.NewProtocolError("short read in compression header")
	}
	switch string(name) {
	case "zstd":
		zr, err := streamio.GetZstdReader(resp)
		if err != nil {
			_ = resp.Close()
			return nil, err
		}
		put := closerFunc(func() error {
			streamio.PutZstdReader(zr)
			return nil
		})
		return &sessionReader{Reader: zr, closers: []io.Closer{put, resp}, resp: resp}, nil
	case "zlib":
		zr, err := streamio.NewZlibReader(resp)
		if err != nil {
			_ = resp.Close()
			return nil, err
		}
		return &sessionReader{Reader: zr, closers: []io.Closer{zr, resp}, resp: resp}, nil
	case "none":
		return &sessionReader{Reader: resp, closers: []io.Closer{resp}, resp: resp}, nil
	case "bzip2":
		return &sessionReader{Reader: bzip2.NewReader(resp), closers: []io.Closer{resp}, resp: resp}, nil
	default:
		_ = resp.Close()
		return nil, transport.NewProtocolError("Server responded with unknown compression %s", name)
	}
}

// PushCommand POSTs body. A bundle2 response (HG20) is returned verbatim;
// anything else has the shape `stdout LF stderr`, with stderr relayed to
// the diagnostic stream.
func (c *client) PushCommand(ctx context.Context, body io.ReadSeeker, command string, args ...transport.Arg) ([]byte, error) {
	req := c.startCommandRequest(command, args)
	req.Body = body
	req.Header = append(req.Header, transport.HeaderField{Name: "Content-Type", Value: "application/mercurial-0.1"})
	resp, err := c.exec.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Close()
	c.handleRedirect(resp)
	header, err := readAtMost(resp, 4)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(header, []byte("HG20")) {
		var buf bytes.Buffer
		buf.Write(header)
		if _, err := streamio.Copy(&buf, resp); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	rest, err := io.ReadAll(resp)
	if err != nil {
		return nil, err
	}
	all := append(header, rest...)
	stdout, stderrOut, ok := bytes.Cut(all, []byte{'\n'})
	if !ok {
		return nil, transport.NewProtocolError("Bad output from server")
	}
	w := streamio.NewPrefixWriter([]byte("remote: "), c.diag)
	if _, err := w.Write(stderrOut); err != nil {
		return nil, err
	}
	return stdout, nil
}
