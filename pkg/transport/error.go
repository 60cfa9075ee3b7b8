// Copyright ©️ The Cinnabar Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
)

// ErrReauthRequired signals that the server answered 401 and the exchange
// may be retried once after refilling credentials. It never escapes the
// executor.
var ErrReauthRequired = errors.New("authentication required")

// TransportError is an HTTP failure that survived the single reauth retry.
// URL is query-stripped.
type TransportError struct {
	URL     string
	Message string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("unable to access '%s': %s", e.URL, e.Message)
}

func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ProtocolError is an unexpected content type, codec or response shape.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return e.Message
}

func NewProtocolError(format string, a ...any) error {
	return &ProtocolError{Message: fmt.Sprintf(format, a...)}
}

func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// UnknownCapabilityError reports a command issued against a server that
// does not advertise the capability it requires.
type UnknownCapabilityError struct {
	Capability string
}

func (e *UnknownCapabilityError) Error() string {
	return fmt.Sprintf("remote does not advertise required capability '%s'", e.Capability)
}

func IsUnknownCapability(err error) bool {
	var ue *UnknownCapabilityError
	return errors.As(err, &ue)
}
