// Copyright (c) 2026 Meshrail, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package dst identifies the logical target of a request and binds it to
// per-route policy: the destination address plus traffic direction is the
// key by which metrics are partitioned and routing policy is looked up.
package dst

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/net/http/httpguts"
)

// Direction is the traffic direction of a destination, fixed at
// construction.
type Direction int

const (
	// In marks traffic entering the local service.
	In Direction = iota
	// Out marks traffic leaving the local service.
	Out
)

// String returns "in" or "out".
func (d Direction) String() string {
	if d == Out {
		return "out"
	}
	return "in"
}

// Addr is a resolved destination address. The zero value is not a valid
// address.
type Addr struct {
	host string
	port int
}

// NewAddr builds an Addr from a host name or IP and a port.
func NewAddr(host string, port int) Addr {
	return Addr{host: host, port: port}
}

// ParseAddr parses a "host:port" string.
func ParseAddr(s string) (Addr, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Addr{}, fmt.Errorf("dst: invalid address %q: %v", s, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Addr{}, fmt.Errorf("dst: invalid port in address %q", s)
	}
	return Addr{host: host, port: port}, nil
}

// Host returns the host name or IP.
func (a Addr) Host() string { return a.host }

// Port returns the port.
func (a Addr) Port() int { return a.port }

// String renders the address as "host:port".
func (a Addr) String() string {
	return net.JoinHostPort(a.host, strconv.Itoa(a.port))
}

// DstAddr is the destination key: a resolved address plus the traffic
// direction. It is a value type, comparable, and never mutated after
// construction; it partitions metrics and routing lookups.
type DstAddr struct {
	addr      Addr
	direction Direction
}

// Inbound keys an address for traffic entering the local service.
func Inbound(a Addr) DstAddr {
	return DstAddr{addr: a, direction: In}
}

// Outbound keys an address for traffic leaving the local service.
func Outbound(a Addr) DstAddr {
	return DstAddr{addr: a, direction: Out}
}

// Addr returns the destination address.
func (d DstAddr) Addr() Addr { return d.addr }

// Direction returns the traffic direction.
func (d DstAddr) Direction() Direction { return d.direction }

// String renders the destination address.
func (d DstAddr) String() string { return d.addr.String() }

// CanonicalDstHeader is the header by which the destination key is
// propagated to the next hop.
const CanonicalDstHeader = "X-Meshrail-Dst"

// HeaderValue renders the destination as a header value for propagation to
// the next hop. Addresses are constructed from resolved hosts and ports, so
// an unrenderable address is a programming error and panics.
func (d DstAddr) HeaderValue() string {
	v := d.String()
	if !httpguts.ValidHeaderFieldValue(v) {
		panic(fmt.Sprintf("dst: address %q is not a valid header value", v))
	}
	return v
}
