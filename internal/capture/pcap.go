//go:build pcap

package capture

import (
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

const (
	// Available reports whether this binary can open a live capture.
	Available = true
	snapLen   = 1600
)

type pcapHandle struct {
	handle *pcap.Handle
	source *gopacket.PacketSource
}

func (h *pcapHandle) Packets() <-chan gopacket.Packet { return h.source.Packets() }

func (h *pcapHandle) Close() { h.handle.Close() }

func openLive(iface, filter string) (Handle, error) {
	if _, err := net.InterfaceByName(iface); err != nil {
		return nil, fmt.Errorf("interface %s: %w", iface, err)
	}

	h, err := pcap.OpenLive(iface, snapLen, true, 500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	if filter != "" {
		if err := h.SetBPFFilter(filter); err != nil {
			h.Close()
			return nil, fmt.Errorf("set bpf filter %q: %w", filter, err)
		}
	}

	return &pcapHandle{
		handle: h,
		source: gopacket.NewPacketSource(h, h.LinkType()),
	}, nil
}
