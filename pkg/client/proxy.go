package client

import (
	"net"
	"time"

	"golang.org/x/net/proxy"

	"github.com/lowmem/uhttp/pkg/errors"
)

// dialViaProxy dials addr through an upstream SOCKS5 proxy at proxyAddr.
func dialViaProxy(proxyAddr, addr string, timeout time.Duration) (net.Conn, error) {
	dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, errors.NewProxyError("socks5-dial", proxyAddr, err)
	}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, errors.NewProxyError("socks5-connect", addr, err)
	}
	return conn, nil
}
