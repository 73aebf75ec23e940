package browser

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// ErrInvalidTarget is returned for URLs the backends refuse to open.
var ErrInvalidTarget = errors.New("invalid target URL")

// blockedPorts are service ports a page load must never be pointed at.
var blockedPorts = map[int]bool{
	22:    true, // SSH
	25:    true, // SMTP
	587:   true, // SMTP submission
	5432:  true, // PostgreSQL
	3306:  true, // MySQL
	6379:  true, // Redis
	27017: true, // MongoDB
}

var defaultPorts = map[string]int{
	"http":  80,
	"https": 443,
}

// ValidateTarget checks that rawURL is an http(s) URL with a host and a
// permitted port. Errors wrap ErrInvalidTarget.
func ValidateTarget(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTarget)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if _, ok := defaultPorts[scheme]; !ok {
		return fmt.Errorf("%w: scheme %q not allowed, only http and https", ErrInvalidTarget, parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return fmt.Errorf("%w: no host in %q", ErrInvalidTarget, rawURL)
	}

	port, err := targetPort(parsed.Host, scheme)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	if blockedPorts[port] {
		return fmt.Errorf("%w: port %d is blocked", ErrInvalidTarget, port)
	}
	return nil
}

// targetPort returns the explicit port in host, or the scheme default.
func targetPort(host, scheme string) (int, error) {
	_, portStr, err := net.SplitHostPort(host)
	if err != nil {
		return defaultPorts[scheme], nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", portStr)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return port, nil
}
