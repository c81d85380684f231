package wframe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextHeaderSingleLine(t *testing.T) {
	region := []byte("Host: example.com\r\nrest")
	length, next := NextHeader(region)
	assert.Equal(t, len("Host: example.com"), length)
	assert.Equal(t, string(region[:length]), "Host: example.com")
	assert.Equal(t, "rest", string(region[next:]))
}

func TestNextHeaderBlankLineSignalsEndOfHeaders(t *testing.T) {
	region := []byte("\r\nbody")
	length, next := NextHeader(region)
	assert.Equal(t, -1, length)
	assert.Equal(t, "body", string(region[next:]))
}

func TestNextHeaderIncompleteReturnsNeedMoreMarker(t *testing.T) {
	region := []byte("Host: example.com")
	length, _ := NextHeader(region)
	assert.Equal(t, -2, length)
}

func TestNextHeaderToleratesStrayCR(t *testing.T) {
	region := []byte("X: a\rb\r\nrest")
	length, next := NextHeader(region)
	assert.Equal(t, len("X: a\rb"), length)
	assert.Equal(t, "rest", string(region[next:]))
}

func TestCheckRequestCompleteNoBodyNoContentLength(t *testing.T) {
	req := []byte("GET /woopsa/meta HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.Equal(t, Complete, CheckRequestComplete(req))
}

func TestCheckRequestCompleteHeadersNotYetTerminated(t *testing.T) {
	req := []byte("GET /woopsa/meta HTTP/1.1\r\nHost: x\r\n")
	assert.Equal(t, NeedMore, CheckRequestComplete(req))
}

func TestCheckRequestCompleteWaitsForBody(t *testing.T) {
	headers := "POST /woopsa/write/Altitude HTTP/1.1\r\nContent-Length: 9\r\n\r\n"
	assert.Equal(t, NeedMore, CheckRequestComplete([]byte(headers+"value=5")))
	assert.Equal(t, Complete, CheckRequestComplete([]byte(headers+"value=512")))
}

func TestCheckRequestCompleteContentLengthCaseInsensitive(t *testing.T) {
	req := []byte("POST /x HTTP/1.1\r\ncontent-LENGTH: 4\r\n\r\nabcd")
	assert.Equal(t, Complete, CheckRequestComplete(req))
}

func TestCheckRequestCompleteContentLengthOrderIndependent(t *testing.T) {
	req := []byte("POST /x HTTP/1.1\r\nHost: h\r\nContent-Length: 2\r\nX-Other: y\r\n\r\nok")
	assert.Equal(t, Complete, CheckRequestComplete(req))
}

func TestCheckRequestCompleteIsIdempotent(t *testing.T) {
	req := []byte("GET /woopsa/meta HTTP/1.1\r\nHost: x\r\n\r\n")
	original := append([]byte(nil), req...)
	first := CheckRequestComplete(req)
	second := CheckRequestComplete(req)
	assert.Equal(t, first, second)
	assert.Equal(t, original, req, "CheckRequestComplete must not mutate its input")
}

func TestCheckRequestCompleteExtraBytesStillComplete(t *testing.T) {
	// Pipelined bytes of a second request following a complete first one
	// still mark the buffer Complete; trimming to one request is the
	// caller's job, not the framer's.
	req := []byte("GET /a HTTP/1.1\r\n\r\nGET /b HTTP/1.1\r\n\r\n")
	assert.Equal(t, Complete, CheckRequestComplete(req))
}
