package probe

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Target is a parsed "user@host[:port]" identifier.
type Target struct {
	User string
	Host string
	Port int
}

// ParseTarget splits a target string. The user and port parts are optional;
// IPv6 hosts with a port must be bracketed ("pi@[fe80::1]:2222").
func ParseTarget(raw string) (Target, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Target{}, fmt.Errorf("empty target")
	}
	if strings.ContainsAny(value, " \t\r\n") {
		return Target{}, fmt.Errorf("target %q contains whitespace", raw)
	}
	if strings.HasPrefix(value, "-") {
		return Target{}, fmt.Errorf("target %q must not start with '-'", raw)
	}

	var t Target
	if at := strings.LastIndex(value, "@"); at >= 0 {
		t.User = value[:at]
		value = value[at+1:]
		if t.User == "" {
			return Target{}, fmt.Errorf("target %q has an empty user", raw)
		}
	}

	host := value
	if strings.HasPrefix(value, "[") || strings.Count(value, ":") == 1 {
		h, p, err := net.SplitHostPort(value)
		if err != nil {
			return Target{}, fmt.Errorf("target %q: %w", raw, err)
		}
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return Target{}, fmt.Errorf("target %q: invalid port %q", raw, p)
		}
		host = h
		t.Port = port
	}
	if host == "" {
		return Target{}, fmt.Errorf("target %q has an empty host", raw)
	}
	if strings.HasPrefix(host, "-") {
		return Target{}, fmt.Errorf("target %q: host must not start with '-'", raw)
	}
	t.Host = host
	return t, nil
}

// Destination returns the ssh destination ("user@host") without the port.
func (t Target) Destination() string {
	if t.User == "" {
		return t.Host
	}
	return t.User + "@" + t.Host
}

// String reassembles the target in its canonical form.
func (t Target) String() string {
	dest := t.Destination()
	if t.Port == 0 {
		return dest
	}
	host := t.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if t.User != "" {
		host = t.User + "@" + host
	}
	return host + ":" + strconv.Itoa(t.Port)
}
