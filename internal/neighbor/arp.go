package neighbor

import (
	"bufio"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// Entry is one complete row of the kernel neighbor table.
type Entry struct {
	IP     netip.Addr
	MAC    string
	Device string
}

// ParseProcNetARP reads the /proc/net/arp format and keeps complete entries.
func ParseProcNetARP(content string) ([]Entry, error) {
	s := bufio.NewScanner(strings.NewReader(content))

	// Header line: "IP address       HW type     Flags       HW address            Mask     Device"
	if !s.Scan() {
		return nil, nil
	}

	var out []Entry
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}

		// ATF_COM marks a resolved entry.
		flags, err := strconv.ParseInt(fields[2], 0, 64)
		if err != nil || flags&0x2 == 0 {
			continue
		}

		hw, err := net.ParseMAC(fields[3])
		if err != nil {
			continue
		}
		mac := hw.String()
		if mac == "00:00:00:00:00:00" {
			continue
		}

		ip, err := netip.ParseAddr(fields[0])
		if err != nil {
			continue
		}
		out = append(out, Entry{IP: ip, MAC: mac, Device: fields[5]})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
