package geomhelp

import (
	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/wkt"
	"github.com/muesli/reflow/truncate"
)

const snippetTail = "..."

// WktEncode renders the geometry as WKT, truncated to maxLen when maxLen > 0.
func WktEncode(g geom.Geometry, maxLen uint) (string, error) {
	s, err := wkt.EncodeString(g)
	if err != nil {
		return "", err
	}
	return Snippet(s, maxLen), nil
}

// Snippet shortens long values (hex WKB can be megabytes) for log lines.
func Snippet(s string, width uint) string {
	if width == 0 {
		return s
	}
	return truncate.StringWithTail(s, width, snippetTail)
}
