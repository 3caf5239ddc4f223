// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package udpserver

import (
	"fmt"
	"net"
	"strings"
)

// interfaceClass ranks a network interface for the best-interface
// heuristic: ethernet outranks wifi outranks loopback.
type interfaceClass int

const (
	classUnknown interfaceClass = iota
	classLoopback
	classWifi
	classEthernet
)

func classify(iface net.Interface) interfaceClass {
	name := strings.ToLower(iface.Name)
	if iface.Flags&net.FlagLoopback != 0 {
		return classLoopback
	}
	switch {
	case strings.Contains(name, "wl") || strings.Contains(name, "wifi") || strings.Contains(name, "wlan"):
		return classWifi
	case strings.Contains(name, "eth") || strings.Contains(name, "en") || strings.Contains(name, "eno") || strings.Contains(name, "enp"):
		return classEthernet
	default:
		return classUnknown
	}
}

// firstIPv4 returns the first IPv4 address assigned to iface, if any.
func firstIPv4(iface net.Interface) (net.IP, bool) {
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, false
	}
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil {
			continue
		}
		if v4 := ip.To4(); v4 != nil {
			return v4, true
		}
	}
	return nil, false
}

// BestInterfaceAddress enumerates system interfaces and returns the IPv4
// address of the best match for preferredType ("ethernet" or "wifi"):
// prefer the preferred class, then the other named class, then loopback
// when fallbackToLocalhost is set. Returns an error if nothing qualifies.
func BestInterfaceAddress(preferredType string, fallbackToLocalhost bool) (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("enumerate network interfaces: %w", err)
	}

	primary, secondary := classEthernet, classWifi
	if preferredType == "wifi" {
		primary, secondary = classWifi, classEthernet
	}

	byClass := map[interfaceClass]net.IP{}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		class := classify(iface)
		if _, ok := byClass[class]; ok {
			continue
		}
		if ip, ok := firstIPv4(iface); ok {
			byClass[class] = ip
		}
	}

	if ip, ok := byClass[primary]; ok {
		return ip.String(), nil
	}
	if ip, ok := byClass[secondary]; ok {
		return ip.String(), nil
	}
	if fallbackToLocalhost {
		if ip, ok := byClass[classLoopback]; ok {
			return ip.String(), nil
		}
		return "127.0.0.1", nil
	}
	return "", fmt.Errorf("no suitable network interface found for preferred type %q", preferredType)
}
