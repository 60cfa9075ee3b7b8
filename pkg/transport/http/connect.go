// Copyright ©️ The Cinnabar Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"

	"github.com/cinnabar-scm/cinnabar/modules/hg"
	"github.com/cinnabar-scm/cinnabar/modules/streamio"
	"github.com/cinnabar-scm/cinnabar/pkg/config"
	"github.com/cinnabar-scm/cinnabar/pkg/transport"
)

type Options struct {
	// Follow governs redirect handling: the initial capabilities request
	// follows on initial-only or always, later requests only on always.
	Follow config.FollowRedirects
	// CredentialFill refills credentials before the single reauth retry.
	CredentialFill transport.CredentialFill
	// Diagnostic receives remote:-prefixed server output and warnings.
	// Defaults to stderr.
	Diagnostic io.Writer
	Verbose    bool
}

// Open probes endpoint with a capabilities request. If the URL serves a
// repository, the parsed capability list seeds a wire connection. If the
// first four bytes are a bundle magic, the URL is a naked bundle and the
// returned connection only answers GetBundle with that stream.
func Open(ctx context.Context, endpoint *transport.Endpoint, opts *Options) (transport.Connection, error) {
	if opts == nil {
		opts = &Options{}
	}
	diag := opts.Diagnostic
	if diag == nil {
		diag = os.Stderr
	}
	c := &client{
		exec:           NewExecutor(endpoint.InsecureSkipTLS, opts.CredentialFill, opts.Verbose),
		baseURL:        cloneURL(endpoint.Base),
		initialRequest: true,
		follow:         opts.Follow,
		extraHeader:    endpoint.ExtraHeader,
		diag:           diag,
	}

	/* The first request is a "capabilities" request. If the remote url is
	 * not actually a repo, but a bundle, the content will start with 'HG10'
	 * or 'HG20', which is not something that would appear as the first four
	 * characters of a capabilities answer. (This assumes HTTP servers
	 * serving bundles don't care about query strings.) */
	req := c.startCommandRequest("capabilities", nil)
	resp, err := c.exec.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	c.handleRedirect(resp)
	header, err := readAtMost(resp, 4)
	if err != nil {
		_ = resp.Close()
		return nil, err
	}
	if hg.IsBundleMagic(header) {
		return &Bundle{conn: c, header: header, resp: resp}, nil
	}
	var caps bytes.Buffer
	caps.Write(header)
	if _, err := streamio.Copy(&caps, resp); err != nil {
		_ = resp.Close()
		return nil, err
	}
	if err := resp.Close(); err != nil {
		return nil, err
	}
	c.caps = ParseCapabilities(caps.Bytes())
	return c, nil
}

// Bundle is the connection returned when the URL serves a bundle instead
// of a repository. The only supported operation is fetching that bundle.
type Bundle struct {
	conn   *client
	header []byte
	resp   *Response
}

func (b *Bundle) GetCapability(name string) (string, bool) {
	return "", false
}

func (b *Bundle) GetBundle(ctx context.Context, w io.Writer, heads, common []hg.ChangesetId, bundle2caps string) error {
	if len(heads) != 0 || len(common) != 0 || len(bundle2caps) != 0 {
		return errors.New("bundle at url does not take getbundle arguments")
	}
	r := hg.NewDecompressBundleReader(io.MultiReader(bytes.NewReader(b.header), b.resp))
	if _, err := streamio.Copy(w, r); err != nil {
		return err
	}
	return b.resp.LastError()
}

func (b *Bundle) Close() error {
	_ = b.resp.Close()
	return b.conn.Close()
}

func joinNodes[T interface{ String() string }](nodes []T) string {
	var s bytes.Buffer
	for i, n := range nodes {
		if i > 0 {
			s.WriteByte(' ')
		}
		s.WriteString(n.String())
	}
	return s.String()
}

// GetBundle streams the requested changegroup bundle to w.
func (c *client) GetBundle(ctx context.Context, w io.Writer, heads, common []hg.ChangesetId, bundle2caps string) error {
	if _, ok := c.caps.Get("getbundle"); !ok {
		return &transport.UnknownCapabilityError{Capability: "getbundle"}
	}
	var args []transport.Arg
	if len(heads) != 0 {
		args = append(args, transport.Arg{Name: "heads", Value: joinNodes(heads)})
	}
	if len(common) != 0 {
		args = append(args, transport.Arg{Name: "common", Value: joinNodes(common)})
	}
	if len(bundle2caps) != 0 {
		args = append(args, transport.Arg{Name: "bundlecaps", Value: bundle2caps})
	}
	r, err := c.ChangegroupCommand(ctx, "getbundle", args...)
	if err != nil {
		return err
	}
	defer r.Close()
	if _, err := streamio.Copy(w, r); err != nil {
		return err
	}
	return r.LastError()
}

// ListKeys fetches a pushkey namespace, e.g. bookmarks or phases.
func (c *client) ListKeys(ctx context.Context, namespace string) ([]byte, error) {
	return c.SimpleCommand(ctx, "listkeys", transport.Arg{Name: "namespace", Value: namespace})
}

// PushKey sets key in namespace from old to new; returns the server verdict.
func (c *client) PushKey(ctx context.Context, namespace, key, old, new string) ([]byte, error) {
	if _, ok := c.caps.Get("pushkey"); !ok {
		return nil, &transport.UnknownCapabilityError{Capability: "pushkey"}
	}
	return c.SimpleCommand(ctx, "pushkey",
		transport.Arg{Name: "namespace", Value: namespace},
		transport.Arg{Name: "key", Value: key},
		transport.Arg{Name: "old", Value: old},
		transport.Arg{Name: "new", Value: new},
	)
}

// Lookup resolves a revision symbol to a node id.
func (c *client) Lookup(ctx context.Context, key string) ([]byte, error) {
	return c.SimpleCommand(ctx, "lookup", transport.Arg{Name: "key", Value: key})
}

// Branchmap fetches the branch → heads map.
func (c *client) Branchmap(ctx context.Context) ([]byte, error) {
	return c.SimpleCommand(ctx, "branchmap")
}

// Heads fetches the repository head list.
func (c *client) Heads(ctx context.Context) ([]byte, error) {
	return c.SimpleCommand(ctx, "heads")
}

// Known asks which of nodes the server knows.
func (c *client) Known(ctx context.Context, nodes []hg.ChangesetId) ([]byte, error) {
	return c.SimpleCommand(ctx, "known", transport.Arg{Name: "nodes", Value: joinNodes(nodes)})
}

// Unbundle pushes a bundle. heads is the client's view of the remote
// heads, or the literal "force".
func (c *client) Unbundle(ctx context.Context, heads []string, body io.ReadSeeker) ([]byte, error) {
	if _, ok := c.caps.Get("unbundle"); !ok {
		return nil, &transport.UnknownCapabilityError{Capability: "unbundle"}
	}
	value := "force"
	if len(heads) != 0 {
		var b bytes.Buffer
		for i, h := range heads {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(h)
		}
		value = b.String()
	}
	return c.PushCommand(ctx, body, "unbundle", transport.Arg{Name: "heads", Value: value})
}
