package websocket

import "strings"

// permessageDeflateParams holds the subset of RFC 7692 negotiation
// parameters this implementation understands. The max_window_bits
// parameters are parsed but otherwise ignored: the flate codec always
// operates with the full 32 KiB window, which is a valid choice for any
// max_window_bits value a peer may request.
type permessageDeflateParams struct {
	serverNoContextTakeover bool
	clientNoContextTakeover bool
}

// parsePermessageDeflateOffer scans a Sec-WebSocket-Extensions header value
// for a permessage-deflate offer and reports its parameters.
//
// Returns ok=false if the header does not contain a permessage-deflate
// offer; only the first such offer is used, per RFC 7692 Section 5.
func parsePermessageDeflateOffer(header string) (params permessageDeflateParams, ok bool) {
	if header == "" {
		return params, false
	}

	for _, offer := range strings.Split(header, ",") {
		parts := strings.Split(offer, ";")
		name := strings.TrimSpace(parts[0])
		if !strings.EqualFold(name, "permessage-deflate") {
			continue
		}

		for _, p := range parts[1:] {
			p = strings.TrimSpace(p)
			key := p
			if i := strings.IndexByte(p, '='); i >= 0 {
				key = strings.TrimSpace(p[:i])
			}
			switch strings.ToLower(key) {
			case "server_no_context_takeover":
				params.serverNoContextTakeover = true
			case "client_no_context_takeover":
				params.clientNoContextTakeover = true
			}
		}

		return params, true
	}

	return params, false
}

// acceptHeader renders the Sec-WebSocket-Extensions response value for an
// accepted permessage-deflate negotiation (RFC 7692 Section 7.1).
func (p permessageDeflateParams) acceptHeader() string {
	h := "permessage-deflate"
	if p.serverNoContextTakeover {
		h += "; server_no_context_takeover"
	}
	if p.clientNoContextTakeover {
		h += "; client_no_context_takeover"
	}
	return h
}
