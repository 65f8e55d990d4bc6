// Package header provides header handling for the chat proxy.
//
// The proxy sits between a browser or CLI client and the upstream chat
// service like so:
//
//	Client <--> Proxy <--> Upstream chat service
//
// and each leg negotiates its own hops, encoding and credentials.
package header

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler manages headers between proxy connections.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// skipRequest is the set of request headers (client --> proxy --> upstream)
// that are not forwarded to the upstream chat service.
var skipRequest = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},

	// Rewritten by Go's http.Transport to match the upstream URL.
	"Host": {},

	// Stripped so that Go's http.Transport adds its own "Accept-Encoding: gzip"
	// and transparently decompresses the upstream stream.
	"Accept-Encoding": {},

	// The proxy re-encodes the body for the upstream, so these describe a
	// payload that is never sent.
	"Content-Length": {},
	"Content-Type":   {},
	"Accept":         {},

	// The upstream is authenticated with the proxy's own key. Client
	// credentials and browser state stay on the client leg.
	"Authorization": {},
	"Cookie":        {},
	"Origin":        {},
	"Referer":       {},
}

// streamHeaders are set on every SSE response written to the client.
var streamHeaders = [][2]string{
	{fiber.HeaderContentType, "text/event-stream; charset=utf-8"},
	{fiber.HeaderCacheControl, "no-cache"},
	{fiber.HeaderConnection, "keep-alive"},
	{"X-Accel-Buffering", "no"},
}

// UpstreamHeaders returns the client request headers that should be forwarded
// to the upstream chat service.
func (h *Handler) UpstreamHeaders(c *fiber.Ctx) http.Header {
	out := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := http.CanonicalHeaderKey(string(key))
		if _, skip := skipRequest[k]; !skip {
			out.Set(k, string(value))
		}
	})
	return out
}

// SetStreamHeaders marks the client response as an unbuffered event stream.
func (h *Handler) SetStreamHeaders(c *fiber.Ctx) {
	for _, kv := range streamHeaders {
		c.Set(kv[0], kv[1])
	}
}
