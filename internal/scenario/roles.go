package scenario

import (
	"regexp"
	"strings"
)

// CanonicalRoles is the bundled registry of known machine-role slugs.
// CanonicalRole does not reject slugs outside it: an unknown role
// reaches downstream code as its normalised slug.
var CanonicalRoles = map[string]bool{
	"feller_buncher":  true,
	"grapple_skidder": true,
	"cable_skidder":   true,
	"processor":       true,
	"loader":          true,
	"skyline_yarder":  true,
	"delimber":        true,
	"forwarder":       true,
}

// roleAliases maps common free-text spellings to their canonical slug.
// Checked against the lowercased input and again after the generic
// normalisation pass below.
var roleAliases = map[string]string{
	"feller-buncher":    "feller_buncher",
	"fellerbuncher":     "feller_buncher",
	"feller buncher":    "feller_buncher",
	"grapple-skidder":   "grapple_skidder",
	"grapple skidder":   "grapple_skidder",
	"skidder":           "grapple_skidder",
	"cable-skidder":     "cable_skidder",
	"cable skidder":     "cable_skidder",
	"roadside processor": "processor",
	"roadside-processor": "processor",
	"log processor":      "processor",
	"skyline-yarder":      "skyline_yarder",
	"skyline yarder":      "skyline_yarder",
	"yarder":              "skyline_yarder",
	"de-limber":           "delimber",
	"de limber":           "delimber",
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// CanonicalRole normalises a free-form role string to its canonical
// snake_case slug: lowercased, non-alphanumerics collapsed to `_`, then
// known aliases applied. Blank input returns "" ("unset", not a
// fabricated default).
func CanonicalRole(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	lower := strings.ToLower(trimmed)
	if alias, ok := roleAliases[lower]; ok {
		return alias
	}
	slug := strings.Trim(nonAlnum.ReplaceAllString(lower, "_"), "_")
	if alias, ok := roleAliases[slug]; ok {
		return alias
	}
	return slug
}
