// Package consentgate tracks whether a participant has actually read the
// terms document before being allowed to accept it. The gate watches scroll
// progress through the document and only unlocks acceptance once the reader
// has reached the end.
package consentgate

import (
	"sync"

	dErrors "fieldgate/pkg/domain-errors"
)

// EndThreshold is how close to the bottom of the document, in layout units,
// the viewport must get before the document counts as fully read.
const EndThreshold = 48

// ReachedEnd reports whether a scroll offset counts as having read a document
// of the given content height, in the given viewport, to the end. Documents
// that fit the viewport count as read at any offset.
func ReachedEnd(contentHeight, viewportHeight, scrollTop float64) bool {
	return scrollTop+viewportHeight >= contentHeight-EndThreshold
}

// Gate guards acceptance of a terms document behind a read-to-end check.
// Reaching the end is sticky: once the reader has scrolled to the bottom,
// scrolling back up does not re-lock acceptance.
type Gate struct {
	mu sync.Mutex

	contentHeight  float64
	viewportHeight float64
	scrollTop      float64

	reachedEnd bool
	accepted   bool
}

// New creates a gate for a document of the given content height rendered in
// the given viewport. A document that fits entirely in the viewport counts as
// read immediately.
func New(contentHeight, viewportHeight float64) *Gate {
	g := &Gate{
		contentHeight:  contentHeight,
		viewportHeight: viewportHeight,
	}
	if contentHeight <= viewportHeight+EndThreshold {
		g.reachedEnd = true
	}
	return g
}

// Observe records a new scroll offset from the top of the document. Offsets
// are clamped to the document bounds, so an overscrolled report cannot push
// the gate into an invalid state.
func (g *Gate) Observe(scrollTop float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if scrollTop < 0 {
		scrollTop = 0
	}
	if max := g.contentHeight - g.viewportHeight; scrollTop > max && max > 0 {
		scrollTop = max
	}
	g.scrollTop = scrollTop

	if ReachedEnd(g.contentHeight, g.viewportHeight, g.scrollTop) {
		g.reachedEnd = true
	}
}

// ReachedEnd reports whether the reader has ever scrolled to the end of the
// document.
func (g *Gate) ReachedEnd() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reachedEnd
}

// Accept marks the terms as accepted. It refuses with CodeInvalidState while
// the document has not been read to the end. Accepting twice is a no-op.
func (g *Gate) Accept() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.reachedEnd {
		return dErrors.New(dErrors.CodeInvalidState, "terms must be read to the end before accepting")
	}
	g.accepted = true
	return nil
}

// Accepted reports whether the terms have been accepted.
func (g *Gate) Accepted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.accepted
}
