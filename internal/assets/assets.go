// Package assets bundles static files shipped with the binary.
package assets

import _ "embed"

// Letterhead is the company banner printed at the top of every report (PNG, 600x120).
//
//go:embed letterhead.png
var Letterhead []byte

const (
	LetterheadWidth  = 600
	LetterheadHeight = 120
)
