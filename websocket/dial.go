package websocket

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/lithammer/shortuuid/v4"
)

// DialOptions configures Dial's client-side handshake.
//
// All fields are optional. Zero values use sensible defaults.
type DialOptions struct {
	// Header carries additional HTTP headers to send with the handshake
	// request (e.g. Authorization, Cookie).
	Header http.Header

	// Subprotocols is the list of subprotocols the client is willing to
	// speak, sent via Sec-WebSocket-Protocol. The server's selection (if
	// any) is available on the returned *http.Response's
	// Sec-WebSocket-Protocol header.
	Subprotocols []string

	// EnableCompression offers permessage-deflate (RFC 7692) to the server.
	EnableCompression bool
}

// Dial opens a WebSocket connection to urlStr, performing the RFC 6455
// Section 4 client-side opening handshake.
//
// urlStr must use the "ws" scheme; "wss" is not supported since Dial works
// over a plain net.Dialer connection. To dial over TLS, establish the
// tls.Conn yourself and adapt it, or wait for a future DialTLS.
//
// On success, returns the established *Conn and the raw HTTP response from
// the server (its Body is already drained and may be ignored). On failure,
// the *http.Response is returned when the server replied but the handshake
// was rejected, so callers can inspect the status code and headers.
func Dial(ctx context.Context, urlStr string, opts *DialOptions) (*Conn, *http.Response, error) {
	if opts == nil {
		opts = &DialOptions{}
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, nil, fmt.Errorf("websocket: parse url: %w", err)
	}

	switch u.Scheme {
	case "ws":
		if u.Port() == "" {
			u.Host = net.JoinHostPort(u.Hostname(), "80")
		}
	case "wss":
		return nil, nil, fmt.Errorf("websocket: wss:// not supported by Dial, use a tls.Conn")
	default:
		return nil, nil, fmt.Errorf("websocket: invalid url scheme %q", u.Scheme)
	}

	var d net.Dialer
	netConn, err := d.DialContext(ctx, "tcp", u.Host)
	if err != nil {
		return nil, nil, fmt.Errorf("websocket: dial: %w", err)
	}

	conn, resp, err := handshakeClient(netConn, u, opts)
	if err != nil {
		_ = netConn.Close()
		return nil, resp, err
	}

	return conn, resp, nil
}

// handshakeClient sends the handshake request over netConn and validates
// the server's response. netConn is left open on success; the caller closes
// it on error.
func handshakeClient(netConn net.Conn, u *url.URL, opts *DialOptions) (*Conn, *http.Response, error) {
	// Sec-WebSocket-Key only needs to be a nonce the server echoes back
	// through SHA-1; shortuuid gives a short, loggable value instead of
	// raw crypto/rand bytes.
	key := base64.StdEncoding.EncodeToString([]byte(shortuuid.New()))

	requestPath := u.RequestURI()
	if requestPath == "" {
		requestPath = "/"
	}

	var req strings.Builder
	fmt.Fprintf(&req, "GET %s HTTP/1.1\r\n", requestPath)
	fmt.Fprintf(&req, "Host: %s\r\n", u.Host)
	req.WriteString("Upgrade: websocket\r\n")
	req.WriteString("Connection: Upgrade\r\n")
	fmt.Fprintf(&req, "Sec-WebSocket-Key: %s\r\n", key)
	req.WriteString("Sec-WebSocket-Version: 13\r\n")
	if len(opts.Subprotocols) > 0 {
		fmt.Fprintf(&req, "Sec-WebSocket-Protocol: %s\r\n", strings.Join(opts.Subprotocols, ", "))
	}
	if opts.EnableCompression {
		req.WriteString("Sec-WebSocket-Extensions: permessage-deflate\r\n")
	}
	for name, values := range opts.Header {
		for _, v := range values {
			fmt.Fprintf(&req, "%s: %s\r\n", name, v)
		}
	}
	req.WriteString("\r\n")

	if _, err := netConn.Write([]byte(req.String())); err != nil {
		return nil, nil, fmt.Errorf("websocket: write handshake request: %w", err)
	}

	reader := bufio.NewReaderSize(netConn, defaultReadBufferSize)
	httpReq, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("websocket: build response reader request: %w", err)
	}

	resp, err := http.ReadResponse(reader, httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("websocket: read handshake response: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusSwitchingProtocols {
		return nil, resp, fmt.Errorf("websocket: handshake failed, status %s", resp.Status)
	}
	if !headerContainsToken(resp.Header.Get("Upgrade"), "websocket") {
		return nil, resp, ErrMissingUpgrade
	}
	if !headerContainsToken(resp.Header.Get("Connection"), "upgrade") {
		return nil, resp, ErrMissingConnection
	}
	if accept := resp.Header.Get("Sec-WebSocket-Accept"); accept != computeAcceptKey(key) {
		return nil, resp, fmt.Errorf("websocket: invalid Sec-WebSocket-Accept %q", accept)
	}

	var pmd *permessageDeflate
	if opts.EnableCompression {
		if params, ok := parsePermessageDeflateOffer(resp.Header.Get("Sec-WebSocket-Extensions")); ok {
			// The client compresses outbound frames and decompresses
			// inbound frames, the mirror image of the server's roles.
			pmd = newPermessageDeflate(params.clientNoContextTakeover, params.serverNoContextTakeover)
		}
	}

	writer := bufio.NewWriterSize(netConn, defaultWriteBufferSize)
	conn := newConn(netConn, reader, writer, false)
	conn.pmd = pmd

	return conn, resp, nil
}
