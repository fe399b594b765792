package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"ipv4 host", "192.168.1.47", "192.168.1.0"},
		{"ipv4 network address unchanged", "10.0.0.0", "10.0.0.0"},
		{"ipv4 broadcast octet", "172.16.50.255", "172.16.50.0"},
		{"ipv4 mapped ipv6", "::ffff:203.0.113.9", "203.0.113.0"},
		{"ipv6 expanded", "2001:db8:85a3:0000:0000:8a2e:0370:7334", "2001:db8:85a3::"},
		{"ipv6 compressed", "2001:db8:85a3::8a2e:370:7334", "2001:db8:85a3::"},
		{"ipv6 loopback", "::1", "::"},
		{"ipv6 link-local with zone", "fe80::1%eth0", "fe80::"},
		{"empty", "", "unknown"},
		{"unknown marker", "unknown", "unknown"},
		{"garbage", "not-an-ip", "invalid"},
		{"host and port", "192.168.1.47:8080", "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AnonymizeIP(tt.input))
		})
	}
}

func TestAnonymizeIP_SameNetworkCollapses(t *testing.T) {
	assert.Equal(t, AnonymizeIP("198.51.100.1"), AnonymizeIP("198.51.100.254"))
	assert.NotEqual(t, AnonymizeIP("198.51.100.1"), AnonymizeIP("198.51.101.1"))
}
