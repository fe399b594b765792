// Package privacy reduces client identifiers to forms safe to log and audit.
package privacy

import "net/netip"

const (
	// IPv4Bits keeps the /24 network of an IPv4 address.
	IPv4Bits = 24
	// IPv6Bits keeps the /48 site prefix of an IPv6 address.
	IPv6Bits = 48
)

// AnonymizeIP masks the host part of ip and returns the network address in
// canonical form, e.g. "192.168.1.47" -> "192.168.1.0" and
// "2001:db8:85a3::8a2e:370:7334" -> "2001:db8:85a3::". IPv4-mapped IPv6
// addresses are treated as IPv4 and zones are dropped.
//
// Empty input and "unknown" give "unknown"; anything unparseable gives "invalid".
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap().WithZone("")

	bits := IPv6Bits
	if addr.Is4() {
		bits = IPv4Bits
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.Addr().String()
}
