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

// Package origin restricts access to clients on the same IPv4 subnet as the device.
package origin

import (
	"errors"
	"net"

	pkgerrors "github.com/pkg/errors"
)

var (
	// ErrNoAddress is returned when a network interface has no IPv4 address.
	ErrNoAddress = errors.New("camstream: no IPv4 address on interface")
)

// Network provides the address and netmask of the device.
type Network interface {
	Address() (net.IP, net.IPMask, error)
}

// StaticNetwork is a fixed address, normally taken from the configuration.
type StaticNetwork struct {
	IP   net.IP
	Mask net.IPMask
}

func (network *StaticNetwork) Address() (net.IP, net.IPMask, error) {
	if network.IP.To4() == nil || network.Mask == nil {
		return nil, nil, ErrNoAddress
	}
	return network.IP, network.Mask, nil
}

// ParseStaticNetwork parses an address in CIDR notation, like 192.168.4.1/24.
func ParseStaticNetwork(cidr string) (*StaticNetwork, error) {
	ip, subnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "parsing network %s", cidr)
	}
	if ip.To4() == nil {
		return nil, pkgerrors.Wrapf(ErrNoAddress, "network %s", cidr)
	}
	return &StaticNetwork{
		IP:   ip.To4(),
		Mask: subnet.Mask,
	}, nil
}

// InterfaceNetwork looks up the first IPv4 address of a network interface
// every time it is queried, so address changes are picked up.
type InterfaceNetwork struct {
	Name string
}

func (network *InterfaceNetwork) Address() (net.IP, net.IPMask, error) {
	iface, err := net.InterfaceByName(network.Name)
	if err != nil {
		return nil, nil, pkgerrors.Wrapf(err, "looking up interface %s", network.Name)
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, nil, pkgerrors.Wrapf(err, "listing addresses of %s", network.Name)
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok {
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return ip4, ipnet.Mask, nil
			}
		}
	}
	return nil, nil, pkgerrors.Wrapf(ErrNoAddress, "interface %s", network.Name)
}

// IsLocal checks if peer is on the same IPv4 subnet as device.
//
// The comparison is a plain (peer & mask) == (device & mask), so
// non-contiguous masks are applied bit by bit.
// IPv4-mapped IPv6 peers are treated as IPv4. Native IPv6 peers, invalid
// addresses and masks are rejected.
func IsLocal(peer, device net.IP, mask net.IPMask) bool {
	peer4 := peer.To4()
	device4 := device.To4()
	if peer4 == nil || device4 == nil {
		return false
	}
	if len(mask) == net.IPv6len {
		// only IPv4 masks in 16 byte form are accepted
		for _, b := range mask[:12] {
			if b != 0xff {
				return false
			}
		}
		mask = mask[12:]
	}
	if len(mask) != net.IPv4len {
		return false
	}
	return peer4.Mask(mask).Equal(device4.Mask(mask))
}

// IsLocalAddr checks if a remote address in host:port form is local to network.
// Any error makes the check fail.
func IsLocalAddr(remoteaddr string, network Network) bool {
	host, _, err := net.SplitHostPort(remoteaddr)
	if err != nil {
		return false
	}
	peer := net.ParseIP(host)
	if peer == nil {
		return false
	}
	device, mask, err := network.Address()
	if err != nil {
		logger.Logkv(
			"event", eventOriginError,
			"error", errorOriginNetwork,
			"message", err.Error(),
		)
		return false
	}
	return IsLocal(peer, device, mask)
}
