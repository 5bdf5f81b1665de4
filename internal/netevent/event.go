// Package netevent defines the typed network signals produced by the capture
// and neighbor-table producers, and the bounded queue that carries them to the
// presence tracker.
package netevent

import "net/netip"

// Event is a closed set of network signals. Only the types in this package
// implement it; consumers switch over them exhaustively.
type Event interface {
	// MAC returns the hardware address the event is about.
	MAC() string
	isEvent()
}

type ARPRequest struct {
	SourceMAC string
	SourceIP  netip.Addr
}

type ARPReply struct {
	SourceMAC string
	SourceIP  netip.Addr
}

// DHCPRequest carries the requested address when the client supplied one.
type DHCPRequest struct {
	ClientMAC   string
	RequestedIP netip.Addr // zero value when absent
}

type NeighborAdded struct {
	HWAddr         string
	IP             netip.Addr
	InterfaceIndex uint32
}

type NeighborUpdated struct {
	HWAddr         string
	IP             netip.Addr
	InterfaceIndex uint32
}

type NeighborRemoved struct {
	HWAddr         string
	IP             netip.Addr
	InterfaceIndex uint32
}

func (e ARPRequest) MAC() string      { return e.SourceMAC }
func (e ARPReply) MAC() string        { return e.SourceMAC }
func (e DHCPRequest) MAC() string     { return e.ClientMAC }
func (e NeighborAdded) MAC() string   { return e.HWAddr }
func (e NeighborUpdated) MAC() string { return e.HWAddr }
func (e NeighborRemoved) MAC() string { return e.HWAddr }

func (ARPRequest) isEvent()      {}
func (ARPReply) isEvent()        {}
func (DHCPRequest) isEvent()     {}
func (NeighborAdded) isEvent()   {}
func (NeighborUpdated) isEvent() {}
func (NeighborRemoved) isEvent() {}
