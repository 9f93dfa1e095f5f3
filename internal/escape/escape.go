// Package escape encodes untrusted plan and query text for embedding in a
// generated document.
package escape

import (
	"bytes"
	"encoding/json"
	"html"
	"strings"
)

// Script encodes s for use inside a single- or double-quoted JavaScript
// string literal inside an inline script element. Quotes, backslashes and
// control characters are escaped, and <, > and & become \u003c, \u003e and
// \u0026 so the text can never close the element.
func Script(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(s); err != nil {
		// Encoding a string cannot fail.
		return ""
	}

	out := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	out = out[1 : len(out)-1]
	return strings.ReplaceAll(string(out), "'", `\'`)
}

// HTML encodes s for use as element content or a quoted attribute value.
func HTML(s string) string {
	return html.EscapeString(s)
}
