package streaming

import "github.com/kailas-cloud/agentdex/internal/domain/search/params"

// paramDetector remembers the canonical form of the bound parameters.
type paramDetector struct {
	canonical string
}

func newParamDetector(p params.Params) paramDetector {
	return paramDetector{canonical: p.Canonical()}
}

// observe records p and reports whether it differs semantically from the
// previously remembered parameters.
func (d *paramDetector) observe(p params.Params) bool {
	next := p.Canonical()
	if next == d.canonical {
		return false
	}
	d.canonical = next
	return true
}

func (d *paramDetector) key() string { return d.canonical }
