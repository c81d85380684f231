package wopsnet

import "github.com/evanphx/wildcat"

// fastPathParser runs wildcat's HTTP parser purely as a cheap
// well-formedness probe, grounded on the same library and call
// pattern an HTTP-framework host in this codebase's lineage uses for
// its own real parsing. Here it never produces the parsed request;
// it only answers "would a conforming HTTP parser accept this buffer
// at all", letting the host close an already-garbage connection
// before spending a core Handle call on it.
type fastPathParser struct {
	parser *wildcat.HTTPParser
}

func newFastPathParser() *fastPathParser {
	return &fastPathParser{parser: wildcat.NewHTTPParser()}
}

// looksMalformed reports whether wildcat rejects a buffer the host
// already believes is a complete request (per wframe). It never
// overrides wframe's own verdict — only adds an extra "reject before
// dispatch" signal on buffers wframe already accepted.
func (p *fastPathParser) looksMalformed(buf []byte) bool {
	_, err := p.parser.Parse(buf)
	return err != nil
}
