// Copyright ©️ The Cinnabar Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"strings"
)

type capability struct {
	name  string
	value string
}

// Capabilities is the parsed capabilities advertisement: space-separated
// tokens, each either a bare name or name=value. Order is preserved but
// lookups are by name.
type Capabilities struct {
	entries []capability
}

func ParseCapabilities(b []byte) Capabilities {
	var caps Capabilities
	for _, tok := range strings.Fields(string(b)) {
		name, value, _ := strings.Cut(tok, "=")
		caps.entries = append(caps.entries, capability{name: name, value: value})
	}
	return caps
}

func (c *Capabilities) Get(name string) (string, bool) {
	for _, e := range c.entries {
		if e.name == name {
			return e.value, true
		}
	}
	return "", false
}
