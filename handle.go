package woopsa

import (
	"strconv"
	"strings"

	"github.com/woopsa-protocol/woopsa/wbuf"
	"github.com/woopsa-protocol/woopsa/wcatalog"
	"github.com/woopsa-protocol/woopsa/wform"
)

// Handle dispatches one complete HTTP request read from in, writing
// the full response (status line through body) into out starting at
// index 0. It returns the number of bytes written, the outcome
// category, and — for ClientRequestError and OtherError — an *Error or
// *InternalError describing why. Success and OtherResponse return a
// nil error.
//
// Handle is self-contained: the only state that survives across calls
// is whatever the caller's own buffer and catalog storage hold.
func (s *Server) Handle(in []byte, out []byte) (n int, outcome Outcome, err error) {
	method, target, ok := parseRequestLine(in)
	if !ok {
		n = writeSimpleResponse(out, statusBadRequest, contentTypeJSON, statusBadRequest.text)
		return n, ClientRequestError, &Error{Code: statusBadRequest.code, Reason: statusBadRequest.text}
	}
	isPost := method == "POST"

	if !strings.HasPrefix(target, s.prefix) {
		return s.handleFallback(target, isPost, out)
	}

	tail := target[len(s.prefix):]
	verb, name, _ := splitVerb(tail)

	switch {
	case verb == "meta" && !isPost:
		n, clOffset := writeEnvelope(out, statusOK, contentTypeJSON)
		bodyStart := n
		n = renderMeta(out, n, len(out), s.catalog)
		if overflowed(n, len(out)) {
			n = writeSimpleResponse(out, statusInternalErr, contentTypeJSON, statusInternalErr.text)
			s.log.Error().Msg("meta manifest exceeded output buffer capacity")
			return n, OtherError, &InternalError{Reason: "meta manifest exceeded output buffer capacity"}
		}
		finalize(out, clOffset, n-bodyStart)
		return n, Success, nil

	case verb == "read" && !isPost:
		return s.handleRead(out, name)

	case verb == "write" && isPost:
		return s.handleWrite(out, name, bodyOf(in))

	case verb == "invoke" && isPost:
		return s.handleInvoke(out, name)

	default:
		n = writeSimpleResponse(out, statusNotFound, contentTypeJSON, statusNotFound.text)
		return n, ClientRequestError, &Error{Code: statusNotFound.code, Reason: statusNotFound.text}
	}
}

func (s *Server) handleFallback(target string, isPost bool, out []byte) (int, Outcome, error) {
	if s.fallback == nil {
		n := writeSimpleResponse(out, statusNotFound, contentTypeJSON, statusNotFound.text)
		return n, ClientRequestError, &Error{Code: statusNotFound.code, Reason: statusNotFound.text}
	}
	n, clOffset := writeEnvelope(out, statusOK, contentTypeHTML)
	bodyStart := n
	limit := len(out)
	written := s.fallback(target, isPost, out[n:limit])
	if written == 0 {
		n = writeSimpleResponse(out, statusNotFound, contentTypeJSON, statusNotFound.text)
		return n, ClientRequestError, &Error{Code: statusNotFound.code, Reason: statusNotFound.text}
	}
	n = bodyStart + written
	finalize(out, clOffset, written)
	return n, OtherResponse, nil
}

func (s *Server) handleRead(out []byte, name string) (int, Outcome, error) {
	entry, found := s.catalog.Find(name, wcatalog.KindProperty)
	if !found {
		n := writeSimpleResponse(out, statusNotFound, contentTypeJSON, statusNotFound.text)
		return n, ClientRequestError, &Error{Code: statusNotFound.code, Reason: statusNotFound.text}
	}
	s.catalog.Lock()
	value := entry.Property.Get()
	s.catalog.Unlock()

	n, clOffset := writeEnvelope(out, statusOK, contentTypeJSON)
	bodyStart := n
	n, err := renderValue(out, n, len(out), entry.Type, value)
	if err != nil {
		n = writeSimpleResponse(out, statusInternalErr, contentTypeJSON, statusInternalErr.text)
		s.log.Error().Err(err).Msgf("read %q: value rendering failed", name)
		return n, OtherError, err
	}
	if overflowed(n, len(out)) {
		n = writeSimpleResponse(out, statusInternalErr, contentTypeJSON, statusInternalErr.text)
		s.log.Error().Msgf("read %q: value response exceeded output buffer capacity", name)
		return n, OtherError, &InternalError{Reason: "value response exceeded output buffer capacity"}
	}
	finalize(out, clOffset, n-bodyStart)
	return n, Success, nil
}

func (s *Server) handleWrite(out []byte, name string, body []byte) (int, Outcome, error) {
	entry, found := s.catalog.Find(name, wcatalog.KindProperty)
	if !found {
		n := writeSimpleResponse(out, statusNotFound, contentTypeJSON, statusNotFound.text)
		return n, ClientRequestError, &Error{Code: statusNotFound.code, Reason: statusNotFound.text}
	}
	if entry.ReadOnly {
		n := writeSimpleResponse(out, statusBadRequest, contentTypeJSON, statusBadRequest.text)
		return n, ClientRequestError, &Error{Code: statusBadRequest.code, Reason: statusBadRequest.text}
	}

	rawValue, found := findFormValue(body)
	if !found {
		n := writeSimpleResponse(out, statusBadRequest, contentTypeJSON, statusBadRequest.text)
		return n, ClientRequestError, &Error{Code: statusBadRequest.code, Reason: statusBadRequest.text}
	}

	coerced, ok := coerceWrite(entry, rawValue)
	if !ok {
		n := writeSimpleResponse(out, statusBadRequest, contentTypeJSON, statusBadRequest.text)
		return n, ClientRequestError, &Error{Code: statusBadRequest.code, Reason: statusBadRequest.text}
	}

	s.catalog.Lock()
	setErr := entry.Property.Set(coerced)
	s.catalog.Unlock()
	if setErr != nil {
		n := writeSimpleResponse(out, statusInternalErr, contentTypeJSON, statusInternalErr.text)
		s.log.Error().Err(setErr).Msgf("write %q: property Set failed", name)
		return n, OtherError, &InternalError{Reason: "property Set failed", Err: setErr}
	}

	n, clOffset := writeEnvelope(out, statusOK, contentTypeJSON)
	bodyStart := n
	n, err := renderValue(out, n, len(out), entry.Type, coerced)
	if err != nil {
		n = writeSimpleResponse(out, statusInternalErr, contentTypeJSON, statusInternalErr.text)
		s.log.Error().Err(err).Msgf("write %q: value rendering failed", name)
		return n, OtherError, err
	}
	if overflowed(n, len(out)) {
		n = writeSimpleResponse(out, statusInternalErr, contentTypeJSON, statusInternalErr.text)
		s.log.Error().Msgf("write %q: value response exceeded output buffer capacity", name)
		return n, OtherError, &InternalError{Reason: "value response exceeded output buffer capacity"}
	}
	finalize(out, clOffset, n-bodyStart)
	return n, Success, nil
}

func (s *Server) handleInvoke(out []byte, name string) (int, Outcome, error) {
	entry, found := s.catalog.Find(name, wcatalog.KindMethod)
	if !found {
		n := writeSimpleResponse(out, statusNotFound, contentTypeJSON, statusNotFound.text)
		return n, ClientRequestError, &Error{Code: statusNotFound.code, Reason: statusNotFound.text}
	}

	s.catalog.Lock()
	value, callErr := entry.Method()
	s.catalog.Unlock()
	if callErr != nil {
		n := writeSimpleResponse(out, statusInternalErr, contentTypeJSON, statusInternalErr.text)
		s.log.Error().Err(callErr).Msgf("invoke %q: method invocation failed", name)
		return n, OtherError, &InternalError{Reason: "method invocation failed", Err: callErr}
	}

	n, clOffset := writeEnvelope(out, statusOK, contentTypeJSON)
	bodyStart := n
	n, err := renderValue(out, n, len(out), entry.Type, value)
	if err != nil {
		n = writeSimpleResponse(out, statusInternalErr, contentTypeJSON, statusInternalErr.text)
		s.log.Error().Err(err).Msgf("invoke %q: value rendering failed", name)
		return n, OtherError, err
	}
	if overflowed(n, len(out)) {
		n = writeSimpleResponse(out, statusInternalErr, contentTypeJSON, statusInternalErr.text)
		s.log.Error().Msgf("invoke %q: value response exceeded output buffer capacity", name)
		return n, OtherError, &InternalError{Reason: "value response exceeded output buffer capacity"}
	}
	finalize(out, clOffset, n-bodyStart)
	return n, Success, nil
}

// overflowed reports whether a render call ran the buffer all the way
// to its capacity, the only symptom a bounded Append leaves behind
// when it silently truncated. Per §7, implementations SHOULD promote
// this to OtherError rather than ship a truncated Success body.
func overflowed(n, limit int) bool {
	return n >= limit
}

// parseRequestLine extracts the leading method word and the next
// space-delimited target word from the request line; anything after
// (protocol version, further headers) is ignored.
func parseRequestLine(in []byte) (method string, target string, ok bool) {
	line := in
	if idx := indexCRLF(in); idx >= 0 {
		line = in[:idx]
	}
	fields := strings.Fields(string(line))
	if len(fields) < 2 {
		return "", "", false
	}
	return fields[0], fields[1], true
}

func indexCRLF(b []byte) int {
	for i := 0; i+1 < len(b); i++ {
		if b[i] == '\r' && b[i+1] == '\n' {
			return i
		}
	}
	return -1
}

// splitVerb splits "<verb>" or "<verb>/<name>" into its two parts.
func splitVerb(tail string) (verb string, name string, ok bool) {
	if i := strings.IndexByte(tail, '/'); i >= 0 {
		return tail[:i], tail[i+1:], true
	}
	return tail, "", true
}

// bodyOf returns the bytes following the first CRLFCRLF in a complete
// request buffer, or nil if there is no body.
func bodyOf(in []byte) []byte {
	sep := "\r\n\r\n"
	idx := strings.Index(string(in), sep)
	if idx < 0 {
		return nil
	}
	start := idx + len(sep)
	if start >= len(in) {
		return nil
	}
	return in[start:]
}

// findFormValue scans a URL-form-encoded body for the "value" key,
// ignoring every other key, per §6's "only the value key is honored".
func findFormValue(body []byte) (string, bool) {
	region := body
	for len(region) > 0 {
		key, value, consumed := wform.NextPair(region)
		if consumed == -1 {
			break
		}
		if key == "value" {
			return value, true
		}
		if consumed == 0 {
			break
		}
		region = region[consumed:]
	}
	return "", false
}

// coerceWrite converts a raw decoded form value into the Go value
// appropriate for entry's type, per the per-tag coercion table. A
// false return means the write is rejected with 400.
func coerceWrite(entry *wcatalog.Entry, raw string) (any, bool) {
	switch entry.Type {
	case wcatalog.TypeInteger:
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, false
		}
		return int32(v), true
	case wcatalog.TypeReal, wcatalog.TypeTimeSpan:
		v, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return nil, false
		}
		return float32(v), true
	case wcatalog.TypeLogical:
		lowered := make([]byte, len(raw))
		copy(lowered, raw)
		wbuf.ToLower(lowered)
		return string(lowered) == "true", true
	case wcatalog.TypeText, wcatalog.TypeLink, wcatalog.TypeResourceURL, wcatalog.TypeDateTime:
		if entry.Size > 0 && len(raw) >= entry.Size {
			return nil, false
		}
		return raw, true
	default:
		return nil, false
	}
}
