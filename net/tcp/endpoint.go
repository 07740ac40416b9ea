package tcp

import (
	"math"
	"net/netip"
	"strings"

	tcplibnet "github.com/hsgames/tcplib/net"
	"github.com/pkg/errors"
)

var (
	_ tcplibnet.EndPoint = (*Server)(nil)
	_ tcplibnet.EndPoint = (*Conn)(nil)
)

const (
	MinPort = 0
	MaxPort = math.MaxUint16
)

// ParseEndpoint validates addr and port independently. addr must be a
// literal IPv4 or IPv6 address; host names are not resolved.
func ParseEndpoint(addr string, port int) (netip.AddrPort, error) {
	ip, err := parseAddr(addr)
	if err != nil {
		return netip.AddrPort{}, err
	}

	if port < MinPort || port > MaxPort {
		return netip.AddrPort{}, errors.Wrapf(ErrInvalidPort, "port [%d]", port)
	}

	return netip.AddrPortFrom(ip, uint16(port)), nil
}

func parseAddr(addr string) (netip.Addr, error) {
	s := strings.TrimSpace(addr)
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		s = s[1 : len(s)-1]
	}

	ip, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, errors.Wrapf(ErrInvalidAddress, "address [%s]: %v", addr, err)
	}

	return ip.Unmap(), nil
}

// AddrFromInt converts the integer form of an IPv4 address, least
// significant byte first (0x0100007f is 127.0.0.1).
func AddrFromInt(v int64) (netip.Addr, error) {
	if v < 0 || v > math.MaxUint32 {
		return netip.Addr{}, errors.Wrapf(ErrInvalidAddress, "address [%d] out of range", v)
	}

	return netip.AddrFrom4([4]byte{
		byte(v),
		byte(v >> 8),
		byte(v >> 16),
		byte(v >> 24),
	}), nil
}
