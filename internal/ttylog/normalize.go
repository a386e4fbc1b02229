package ttylog

import "bytes"

var (
	lf   = []byte("\n")
	crlf = []byte("\r\n")
)

// NormalizeNewlines rewrites every LF to CRLF so players that do not imply a
// carriage return keep the cursor column. Existing CRLF pairs become CR CR LF;
// consumers of previously converted transcripts depend on that output.
// The result never aliases p.
func NormalizeNewlines(p []byte) []byte {
	return bytes.ReplaceAll(p, lf, crlf)
}
