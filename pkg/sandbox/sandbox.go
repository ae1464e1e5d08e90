// Package sandbox installs the network-block shim the tool-worker child
// process applies before running a handler.
//
// Go has no single monkey-patchable entry point for every HTTP/TCP/TLS
// connection the way a JS runtime can replace a global fetch; the shim
// here only covers the two points a well-behaved handler is expected to
// use: http.DefaultTransport and http.DefaultClient. A handler that
// constructs its own *http.Transport or dials net.Conn directly bypasses
// it — a known boundary, not a full kernel-level egress block.
package sandbox

import (
	"errors"
	"net/http"
	"os"
)

// ErrNetworkBlocked is returned by every RoundTrip call once the shim is
// installed.
var ErrNetworkBlocked = errors.New("Network access is blocked")

// blockingTransport rejects every request.
type blockingTransport struct{}

func (blockingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, ErrNetworkBlocked
}

// InstallNetworkBlock replaces http.DefaultTransport (and rebuilds
// http.DefaultClient around it) unless PROMPTMGR_BLOCK_NETWORK is set to
// any value other than "true" — the environment escape hatch spec.md
// §4.3/§6 documents.
func InstallNetworkBlock() {
	if v, ok := os.LookupEnv("PROMPTMGR_BLOCK_NETWORK"); ok && v != "true" {
		return
	}
	http.DefaultTransport = blockingTransport{}
	http.DefaultClient = &http.Client{Transport: blockingTransport{}}
}
