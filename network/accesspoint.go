/*
Package network defines the immutable endpoint descriptors route construction
resolves server entries into, the protocol and security mechanism enums, and
the compression codec manager.

No network I/O happens here; an AccessPoint only describes where a transport
would connect.
*/
package network

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kvrouter/kvrouter/config"
)

// Protocol selects the wire protocol spoken to a backend server.
type Protocol int

const (
	ProtocolASCII Protocol = iota
	ProtocolCaret
	ProtocolThrift
)

// ParseProtocol parses a protocol name, case-insensitively.
func ParseProtocol(s string) (Protocol, error) {
	switch {
	case strings.EqualFold(s, "ascii"):
		return ProtocolASCII, nil
	case strings.EqualFold(s, "caret"):
		return ProtocolCaret, nil
	case strings.EqualFold(s, "thrift"):
		return ProtocolThrift, nil
	}

	return ProtocolASCII, config.Errorf("unknown protocol '%s'", s)
}

func (p Protocol) String() string {
	switch p {
	case ProtocolCaret:
		return "caret"
	case ProtocolThrift:
		return "thrift"
	default:
		return "ascii"
	}
}

// SecurityMech selects how the connection to a backend is secured.
type SecurityMech int

const (
	SecurityNone SecurityMech = iota
	SecurityTLS
	SecurityTLS13Fizz
	SecurityTLSToPlaintext
)

// ParseSecurityMech parses a security mechanism name.
func ParseSecurityMech(s string) (SecurityMech, error) {
	switch s {
	case "plain":
		return SecurityNone, nil
	case "ssl":
		return SecurityTLS, nil
	case "tls13_fizz":
		return SecurityTLS13Fizz, nil
	case "tls_to_plain":
		return SecurityTLSToPlaintext, nil
	}

	return SecurityNone, config.Errorf("unknown security mechanism '%s'", s)
}

func (m SecurityMech) String() string {
	switch m {
	case SecurityTLS:
		return "ssl"
	case SecurityTLS13Fizz:
		return "tls13_fizz"
	case SecurityTLSToPlaintext:
		return "tls_to_plain"
	default:
		return "plain"
	}
}

// ThriftCompatible reports whether the thrift transport supports m.
func ThriftCompatible(m SecurityMech) bool {
	switch m {
	case SecurityNone, SecurityTLS, SecurityTLSToPlaintext:
		return true
	}

	return false
}

// AccessPoint describes one backend endpoint. It is mutable only between
// parsing and the datacenter-locality overrides applied during pool
// construction; afterwards it is shared read-only by every destination built
// from it.
type AccessPoint struct {
	host       string
	port       uint16
	protocol   Protocol
	mech       SecurityMech
	compressed bool
}

// NewAccessPoint parses a server descriptor of the form
// "host:port[:protocol][:ssl|plain][:compressed]", with bracketed IPv6 hosts
// supported. A non-zero portOverride replaces the parsed port.
func NewAccessPoint(desc string, defaultProtocol Protocol, defaultMech SecurityMech, portOverride uint16, compressed bool) (*AccessPoint, error) {
	host, rest, err := splitHost(desc)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(rest, ":")
	if len(parts) == 0 || parts[0] == "" {
		return nil, config.Errorf("invalid server '%s': missing port", desc)
	}

	port, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil || port == 0 {
		return nil, config.Errorf("invalid server '%s': bad port '%s'", desc, parts[0])
	}

	ap := &AccessPoint{
		host:       host,
		port:       uint16(port),
		protocol:   defaultProtocol,
		mech:       defaultMech,
		compressed: compressed,
	}

	for _, tok := range parts[1:] {
		switch {
		case tok == "":
			continue
		case tok == "compressed":
			ap.compressed = true
		case tok == "ssl":
			ap.mech = SecurityTLS
		case tok == "plain":
			ap.mech = SecurityNone
		default:
			p, perr := ParseProtocol(tok)
			if perr != nil {
				return nil, config.Errorf("invalid server '%s': unknown qualifier '%s'", desc, tok)
			}
			ap.protocol = p
		}
	}

	if portOverride != 0 {
		ap.port = portOverride
	}

	return ap, nil
}

func splitHost(desc string) (host, rest string, err error) {
	if strings.HasPrefix(desc, "[") {
		end := strings.Index(desc, "]")
		if end < 0 || end+1 >= len(desc) || desc[end+1] != ':' {
			return "", "", config.Errorf("invalid server '%s': malformed IPv6 address", desc)
		}

		return desc[1:end], desc[end+2:], nil
	}

	i := strings.Index(desc, ":")
	if i <= 0 || i+1 >= len(desc) {
		return "", "", config.Errorf("invalid server '%s': expected host:port", desc)
	}

	return desc[:i], desc[i+1:], nil
}

func (ap *AccessPoint) Host() string               { return ap.host }
func (ap *AccessPoint) Port() uint16               { return ap.port }
func (ap *AccessPoint) Protocol() Protocol         { return ap.protocol }
func (ap *AccessPoint) SecurityMech() SecurityMech { return ap.mech }
func (ap *AccessPoint) Compressed() bool           { return ap.compressed }

func (ap *AccessPoint) SetPort(port uint16)            { ap.port = port }
func (ap *AccessPoint) SetSecurityMech(m SecurityMech) { ap.mech = m }
func (ap *AccessPoint) DisableCompression()            { ap.compressed = false }

// String renders the canonical endpoint identity used as the destination
// dedup key.
func (ap *AccessPoint) String() string {
	host := ap.host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	s := fmt.Sprintf("%s:%d:%s:%s", host, ap.port, ap.protocol, ap.mech)
	if ap.compressed {
		s += ":compressed"
	}

	return s
}

// IsInLocalDatacenter reports whether host carries dc as one of its dot
// separated labels, the convention fleet hostnames follow.
func IsInLocalDatacenter(host, dc string) bool {
	if dc == "" {
		return false
	}

	for _, label := range strings.Split(host, ".") {
		if label == dc {
			return true
		}
	}

	return false
}
