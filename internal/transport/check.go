package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"time"
)

// checkProxyTimeout bounds the whole proxy check. It is a connectivity probe,
// not a request, so it is short.
const checkProxyTimeout = 3 * time.Second

// SOCKS5 protocol constants.
const (
	socks5Version         = 0x05
	socks5AuthNone        = 0x00
	socks5CmdConnect      = 0x01
	socks5AddrTypeDomName = 0x03
)

// CheckProxy verifies that address is a SOCKS5 proxy accepting unauthenticated
// clients and that it answers a CONNECT request for target (host:port).
// The CONNECT itself may fail upstream; any well-formed reply counts as OK.
//
// Security note: a real SOCKS5 exchange is harder to fake than probing for a
// banner, so a wrong service on the port is reported as ProxyStatusWrongType.
func CheckProxy(ctx context.Context, address, target string) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return ProxyStatusCannotConnect
		}
	}

	// Greeting: version, one method, no authentication.
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	authResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, authResp); err != nil {
		return readFailure(err)
	}
	if authResp[0] != socks5Version || authResp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}

	req, ok := connectRequest(target)
	if !ok {
		// Nothing to connect to: the handshake alone has to do.
		return ProxyStatusOK
	}
	if _, err := conn.Write(req); err != nil {
		return ProxyStatusCannotConnect
	}

	// Reply header: version, reply code, reserved, address type.
	connectResp := make([]byte, 4)
	if _, err := io.ReadFull(conn, connectResp); err != nil {
		return readFailure(err)
	}
	if connectResp[0] != socks5Version {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

// connectRequest builds a SOCKS5 CONNECT request for target using the
// domain-name address type.
func connectRequest(target string) ([]byte, bool) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil || host == "" || len(host) > 255 {
		return nil, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return nil, false
	}

	req := []byte{socks5Version, socks5CmdConnect, 0x00, socks5AddrTypeDomName, byte(len(host))}
	req = append(req, host...)
	req = append(req, byte(port>>8), byte(port&0xFF))
	return req, true
}

func readFailure(err error) ProxyStatus {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return ProxyStatusTimeout
	}
	return ProxyStatusWrongType
}
