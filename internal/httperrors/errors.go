// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package httperrors classifies network failures of the remote identity providers
// and renders them as user-friendly troubleshooting hints.
package httperrors

import (
	"errors"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
)

// Category is the coarse class of a network failure.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryTimeout
	CategoryDNS
	CategoryConnectionRefused
	CategoryTLS
	CategoryServer
)

// Classify returns the category of err.
func Classify(err error) Category {
	switch {
	case err == nil:
		return CategoryUnknown
	case IsTimeout(err):
		return CategoryTimeout
	case isDNSError(err):
		return CategoryDNS
	case IsConnectionRefused(err):
		return CategoryConnectionRefused
	case isTLSError(err):
		return CategoryTLS
	case isServerError(err.Error()):
		return CategoryServer
	}
	return CategoryUnknown
}

// IsTimeout checks if the error is a timeout error.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}

	// Check for net.Error with Timeout()
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Check for timeout in error message
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// isDNSError checks if the error is a DNS resolution error.
func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// IsConnectionRefused checks if the error is a connection refused error.
func IsConnectionRefused(err error) bool {
	if err == nil {
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

// isTLSError checks if the error is an SSL/TLS error.
func isTLSError(err error) bool {
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "tls") ||
		strings.Contains(errStr, "x509") ||
		strings.Contains(errStr, "certificate")
}

// isServerError checks if the error indicates a server-side problem (5xx errors).
func isServerError(errStr string) bool {
	lower := strings.ToLower(errStr)
	return strings.Contains(lower, "status 5") ||
		strings.Contains(lower, "internal server error") ||
		strings.Contains(lower, "bad gateway") ||
		strings.Contains(lower, "service unavailable")
}

// Hints returns troubleshooting lines for a category, naming host where useful.
func Hints(c Category, host string) []string {
	switch c {
	case CategoryTimeout:
		return []string{
			"The identity provider took too long to respond.",
			"Check your connection, or raise verify_timeout in the config.",
		}
	case CategoryDNS:
		return []string{"Unable to look up " + host + ". Check DNS settings and the configured address."}
	case CategoryConnectionRefused:
		return []string{host + " is not accepting connections. Is the identity service running on that port?"}
	case CategoryTLS:
		return []string{"Cannot establish a secure connection to " + host + ". Check certificates and the system clock."}
	case CategoryServer:
		return []string{"The identity provider at " + host + " reported an internal error. Try again later."}
	default:
		return []string{"Cannot reach the identity provider at " + host + "."}
	}
}

// PresentNetworkError prints the troubleshooting hints for err.
func PresentNetworkError(err error, address string) {
	if err == nil {
		return
	}
	for _, line := range Hints(Classify(err), ExtractHost(address)) {
		pterm.Info.Println(line)
	}
}

// ExtractHost extracts the hostname from a URL or host:port for error messages.
func ExtractHost(address string) string {
	if u, err := url.Parse(address); err == nil && u.Host != "" {
		return u.Host
	}
	if host, _, err := net.SplitHostPort(address); err == nil && host != "" {
		return host
	}
	if address == "" {
		return "server"
	}
	return address
}
