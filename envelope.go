package woopsa

import "github.com/woopsa-protocol/woopsa/wbuf"

const (
	httpVersion = "HTTP/1.1 "

	contentTypeHeader = "Content-Type: "
	contentTypeJSON   = "application/json"
	contentTypeHTML   = "text/html"

	extraHeaders = "Access-Control-Allow-Origin: *\r\nConnection: close\r\n"

	contentLengthHeader = "Content-Length: "
	contentLengthWidth  = 8

	crlf = "\r\n"
)

type status struct {
	code int
	text string
}

var (
	statusOK          = status{200, "OK"}
	statusBadRequest  = status{400, "Bad request"}
	statusNotFound    = status{404, "Not found"}
	statusInternalErr = status{500, "Internal server error"}
)

// writeEnvelope writes a full response preamble from byte 0 of out,
// discarding anything previously written there: status line,
// Content-Type, the fixed CORS/Connection headers, a Content-Length
// header with an 8-wide spacer whose offset is returned, and the
// blank line terminating the headers.
func writeEnvelope(out []byte, st status, contentType string) (n int, contentLengthOffset int) {
	limit := len(out)
	n, _ = wbuf.AppendString(out, n, limit, httpVersion)
	n, _ = wbuf.AppendString(out, n, limit, itoaStatus(st.code))
	n, _ = wbuf.AppendString(out, n, limit, " ")
	n, _ = wbuf.AppendString(out, n, limit, st.text)
	n, _ = wbuf.AppendString(out, n, limit, crlf)
	n, _ = wbuf.AppendString(out, n, limit, contentTypeHeader)
	n, _ = wbuf.AppendString(out, n, limit, contentType)
	n, _ = wbuf.AppendString(out, n, limit, crlf)
	n, _ = wbuf.AppendString(out, n, limit, extraHeaders)
	n, _ = wbuf.AppendString(out, n, limit, contentLengthHeader)
	contentLengthOffset = n
	n, _ = wbuf.AppendString(out, n, limit, "        ")
	n, _ = wbuf.AppendString(out, n, limit, crlf)
	n, _ = wbuf.AppendString(out, n, limit, crlf)
	return n, contentLengthOffset
}

// finalize back-patches the Content-Length spacer reserved at
// clOffset with bodyLen, the exact number of body bytes appended
// after the envelope.
func finalize(out []byte, clOffset int, bodyLen int) {
	wbuf.EmitPaddedInteger(out, clOffset, bodyLen, contentLengthWidth)
}

// writeSimpleResponse assembles a complete response whose entire body
// is known upfront (used for every error path, including the 404 sent
// when the fallback handler returns nothing).
func writeSimpleResponse(out []byte, st status, contentType string, body string) (n int) {
	n, clOffset := writeEnvelope(out, st, contentType)
	limit := len(out)
	bodyStart := n
	n, _ = wbuf.AppendString(out, n, limit, body)
	finalize(out, clOffset, n-bodyStart)
	return n
}

func itoaStatus(code int) string {
	// Status codes in this protocol are always exactly one of a
	// handful of 3-digit constants; a tiny fixed table avoids pulling
	// in strconv for a three-digit value known at each call site.
	switch code {
	case 200:
		return "200"
	case 400:
		return "400"
	case 404:
		return "404"
	case 500:
		return "500"
	default:
		return "500"
	}
}
