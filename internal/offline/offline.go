// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"errors"
	"net"
	"net/url"
	"strings"

	"github.com/jeranaias/nbassist/internal/gateway"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrCloudBlocked is returned for a cloud backend in local-only mode.
	ErrCloudBlocked = errors.New("cloud backends are disabled in local-only mode")

	// ErrNonLocalhost is returned for a non-loopback host in local-only mode.
	ErrNonLocalhost = errors.New("only localhost connections are allowed in local-only mode")

	// ErrInvalidURLScheme is returned when a URL scheme is not http or https.
	ErrInvalidURLScheme = errors.New("only http and https URLs are allowed")

	// ErrInvalidURL is returned when a URL cannot be parsed.
	ErrInvalidURL = errors.New("invalid URL")
)

// =============================================================================
// POLICY
// =============================================================================

// Policy decides which backends and endpoints the service may use. The zero
// value allows everything.
type Policy struct {
	LocalOnly bool
}

// AllowBackend returns ErrCloudBlocked for a non-local backend in local-only
// mode.
func (p Policy) AllowBackend(b gateway.BackendDescriptor) error {
	if p.LocalOnly && !b.Local {
		return ErrCloudBlocked
	}
	return nil
}

// Filter returns the backends the policy allows, in order.
func (p Policy) Filter(backends []gateway.BackendDescriptor) []gateway.BackendDescriptor {
	if !p.LocalOnly {
		return backends
	}
	out := make([]gateway.BackendDescriptor, 0, len(backends))
	for _, b := range backends {
		if b.Local {
			out = append(out, b)
		}
	}
	return out
}

// ValidateURL checks that rawURL uses http or https and, in local-only mode,
// points at a loopback host. The scheme is checked in every mode.
func (p Policy) ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ErrInvalidURL
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrInvalidURLScheme
	}
	if p.LocalOnly && !IsLocalhost(parsed.Hostname()) {
		return ErrNonLocalhost
	}
	return nil
}

// IsLocalhost reports whether host (optionally with a port) is "localhost"
// or a loopback IP.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
