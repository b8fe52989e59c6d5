package sanitize

import (
	"path"
	"regexp"
	"strings"
)

// Anything outside this set is replaced in object-key file names.
var reUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName reduces a client-supplied file name to a safe object-key segment.
// Directory parts are dropped; an empty or dot-only result becomes "file".
func FileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = reUnsafe.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")
	if strings.Trim(name, ".") == "" {
		return "file"
	}
	return name
}

// Text trims and collapses runs of whitespace.
func Text(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
