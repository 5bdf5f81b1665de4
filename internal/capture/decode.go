package capture

import (
	"net"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/P8labs/foxd/internal/netevent"
)

// DefaultFilter limits capture to ARP and DHCP traffic.
const DefaultFilter = "arp or (udp port 67 or udp port 68)"

// Decode turns a captured frame into a network event. ARP requests and
// replies, DHCPv4 discovers and requests are recognised; everything else
// reports false.
func Decode(packet gopacket.Packet) (netevent.Event, bool) {
	if l := packet.Layer(layers.LayerTypeARP); l != nil {
		return decodeARP(l.(*layers.ARP))
	}
	if l := packet.Layer(layers.LayerTypeDHCPv4); l != nil {
		return decodeDHCP(l.(*layers.DHCPv4))
	}
	return nil, false
}

func decodeARP(arp *layers.ARP) (netevent.Event, bool) {
	if len(arp.SourceHwAddress) != 6 {
		return nil, false
	}
	mac := net.HardwareAddr(arp.SourceHwAddress).String()
	ip, ok := netip.AddrFromSlice(arp.SourceProtAddress)
	if !ok {
		return nil, false
	}
	ip = ip.Unmap()

	switch arp.Operation {
	case layers.ARPRequest:
		return netevent.ARPRequest{SourceMAC: mac, SourceIP: ip}, true
	case layers.ARPReply:
		return netevent.ARPReply{SourceMAC: mac, SourceIP: ip}, true
	default:
		return nil, false
	}
}

func decodeDHCP(d *layers.DHCPv4) (netevent.Event, bool) {
	if d.Operation != layers.DHCPOpRequest || len(d.ClientHWAddr) != 6 {
		return nil, false
	}

	var (
		msgType   layers.DHCPMsgType
		requested netip.Addr
	)
	for _, opt := range d.Options {
		switch opt.Type {
		case layers.DHCPOptMessageType:
			if len(opt.Data) == 1 {
				msgType = layers.DHCPMsgType(opt.Data[0])
			}
		case layers.DHCPOptRequestIP:
			if ip, ok := netip.AddrFromSlice(opt.Data); ok {
				requested = ip.Unmap()
			}
		}
	}
	if msgType != layers.DHCPMsgTypeDiscover && msgType != layers.DHCPMsgTypeRequest {
		return nil, false
	}

	if !requested.IsValid() {
		if ip, ok := netip.AddrFromSlice(d.ClientIP.To4()); ok && !ip.IsUnspecified() {
			requested = ip
		}
	}

	return netevent.DHCPRequest{
		ClientMAC:   net.HardwareAddr(d.ClientHWAddr).String(),
		RequestedIP: requested,
	}, true
}
