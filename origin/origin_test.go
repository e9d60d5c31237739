/* Copyright (c) 2025 Gregor Riepl
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package origin

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

type mockNetwork struct {
	ip   net.IP
	mask net.IPMask
	err  error
}

func (network *mockNetwork) Address() (net.IP, net.IPMask, error) {
	return network.ip, network.mask, network.err
}

func TestIsLocal(t *testing.T) {
	device := net.ParseIP("192.168.1.10")
	mask24 := net.CIDRMask(24, 32)
	cases := []struct {
		peer   string
		mask   net.IPMask
		device net.IP
		local  bool
	}{
		{"192.168.1.55", mask24, device, true},
		{"192.168.2.55", mask24, device, false},
		{"::ffff:192.168.1.55", mask24, device, true},
		{"::ffff:10.0.0.1", mask24, device, false},
		{"fe80::1", mask24, device, false},
		{"2001:db8::1", mask24, device, false},
		{"192.168.1.55", nil, device, false},
		{"192.168.1.55", mask24, nil, false},
		// the actual mask is honoured
		{"192.168.2.55", net.CIDRMask(16, 32), device, true},
		{"192.168.1.200", net.CIDRMask(25, 32), device, false},
		// non-contiguous masks are applied bit by bit
		{"192.168.1.55", net.IPMask{255, 0, 255, 0}, device, true},
		{"192.168.2.55", net.IPMask{255, 0, 255, 0}, device, false},
		{"10.1.9.7", net.IPv4Mask(255, 255, 0, 255), net.ParseIP("10.1.200.7"), true},
		{"192.168.1.55", net.IPv4Mask(255, 255, 255, 0), device, true},
		// IPv4 mask in 16 byte form
		{"192.168.1.55", append(net.CIDRMask(96, 128)[:12:12], 255, 255, 255, 0), device, true},
		{"192.168.1.55", net.CIDRMask(64, 128), device, false},
	}
	for i, c := range cases {
		if got := IsLocal(net.ParseIP(c.peer), c.device, c.mask); got != c.local {
			t.Errorf("t%02d: IsLocal(%s, %v, %v) = %v, expected %v", i, c.peer, c.device, c.mask, got, c.local)
		}
	}
	if IsLocal(nil, device, mask24) {
		t.Errorf("Nil peer was accepted")
	}
}

func TestIsLocalAddr(t *testing.T) {
	n00 := &mockNetwork{ip: net.ParseIP("10.1.2.3"), mask: net.CIDRMask(24, 32)}
	cases := []struct {
		addr  string
		local bool
	}{
		{"10.1.2.4:5555", true},
		{"10.1.3.4:5555", false},
		{"[::ffff:10.1.2.4]:5555", true},
		{"[2001:db8::1]:5555", false},
		{"10.1.2.4", false},
		{"garbage", false},
		{"", false},
		{"host.example:80", false},
	}
	for i, c := range cases {
		if got := IsLocalAddr(c.addr, n00); got != c.local {
			t.Errorf("t%02d: IsLocalAddr(%q) = %v, expected %v", i, c.addr, got, c.local)
		}
	}

	n01 := &mockNetwork{err: errors.New("no address")}
	if IsLocalAddr("10.1.2.4:5555", n01) {
		t.Errorf("Accepted a client without a device address")
	}
}

func TestStaticNetwork(t *testing.T) {
	n00, err := ParseStaticNetwork("192.168.4.1/24")
	if err != nil {
		t.Fatalf("t00: %v", err)
	}
	ip, mask, err := n00.Address()
	if err != nil || !ip.Equal(net.ParseIP("192.168.4.1")) {
		t.Errorf("t00: Wrong address %v, %v", ip, err)
	}
	if ones, _ := mask.Size(); ones != 24 {
		t.Errorf("t00: Wrong mask %v", mask)
	}
	if _, err := ParseStaticNetwork("2001:db8::1/64"); !errors.Is(err, ErrNoAddress) {
		t.Errorf("t01: Expected ErrNoAddress for IPv6, got %v", err)
	}
	if _, err := ParseStaticNetwork("192.168.4.1"); err == nil {
		t.Errorf("t02: Accepted an address without mask")
	}
	n03 := &StaticNetwork{}
	if _, _, err := n03.Address(); !errors.Is(err, ErrNoAddress) {
		t.Errorf("t03: Expected ErrNoAddress, got %v", err)
	}
}

func TestInterfaceNetwork(t *testing.T) {
	n00 := &InterfaceNetwork{Name: "does-not-exist0"}
	if _, _, err := n00.Address(); err == nil {
		t.Errorf("Found an address on a missing interface")
	}
}

func TestHandleOrigin(t *testing.T) {
	f00 := NewFilter(&mockNetwork{ip: net.ParseIP("10.0.0.1"), mask: net.CIDRMask(8, 32)}, true)

	r00 := httptest.NewRequest(http.MethodGet, "/stream", nil)
	r00.RemoteAddr = "10.20.30.40:1234"
	w00 := httptest.NewRecorder()
	if !HandleOrigin(f00, r00, w00) {
		t.Errorf("t00: Local client rejected")
	}
	if w00.Body.Len() != 0 {
		t.Errorf("t00: Accepted request got a response body")
	}

	r01 := httptest.NewRequest(http.MethodGet, "/stream", nil)
	r01.RemoteAddr = "192.168.1.1:1234"
	w01 := httptest.NewRecorder()
	if HandleOrigin(f00, r01, w01) {
		t.Errorf("t01: Remote client accepted")
	}
	if w01.Code != http.StatusForbidden {
		t.Errorf("t01: Expected 403, got %d", w01.Code)
	}
	if w01.Body.String() != DeniedMessage {
		t.Errorf("t01: Wrong body %q", w01.Body.String())
	}

	f02 := NewFilter(&mockNetwork{err: errors.New("down")}, false)
	if !HandleOrigin(f02, r01, httptest.NewRecorder()) {
		t.Errorf("t02: Disabled filter rejected a client")
	}
}
