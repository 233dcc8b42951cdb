package wiki

import (
	"net/url"
	"strings"
)

// categoryPrefix is accepted (and stripped) on user input so category files
// may list either "Category:Cats" or "Cats". Link-target rows in namespace 14
// store the bare title, so the bare form is canonical internally.
const categoryPrefix = "Category:"

// NormalizeTitle converts a raw title into the dump's canonical form:
// surrounding whitespace trimmed and spaces replaced with underscores.
func NormalizeTitle(raw string) string {
	return strings.ReplaceAll(strings.TrimSpace(raw), " ", "_")
}

// NormalizeCategory normalizes a user-supplied category name, stripping an
// optional "Category:" prefix. Returns the bare canonical title.
func NormalizeCategory(raw string) string {
	t := strings.TrimSpace(raw)
	if strings.HasPrefix(t, categoryPrefix) {
		t = t[len(categoryPrefix):]
	}
	return NormalizeTitle(t)
}

// FilePathURL builds the canonical Special:FilePath download URL for a file
// title on the given wiki base URL (e.g. "https://commons.wikimedia.org").
func FilePathURL(baseURL, title string) string {
	return strings.TrimRight(baseURL, "/") + "/wiki/Special:FilePath/" + url.PathEscape(NormalizeTitle(title))
}

// SafeFilename derives a filesystem-safe name from a wiki title. Wiki titles
// may legally contain path separators ("A/B.jpg"); those are flattened so a
// title always maps to exactly one file in the output directory.
func SafeFilename(title string) string {
	name := NormalizeTitle(title)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	return name
}

// HasAllowedExtension reports whether the title ends in one of the allowed
// extensions (case-insensitive, with leading dot, e.g. ".jpg"). An empty
// allow-list accepts everything.
func HasAllowedExtension(title string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	lower := strings.ToLower(title)
	for _, ext := range allowed {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
