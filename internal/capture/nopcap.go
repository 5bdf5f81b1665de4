//go:build !pcap

package capture

// Available reports whether this binary can open a live capture.
const Available = false

func openLive(string, string) (Handle, error) {
	return nil, ErrCaptureUnavailable
}
