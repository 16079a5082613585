package slugify

import (
	"strings"
)

const maxSlugLen = 160

// Make turns an arbitrary display name into a URL-safe slug: lowercased,
// runs of non-alphanumeric characters collapsed to single hyphens, leading
// and trailing hyphens trimmed. "Acme Inc." becomes "acme-inc".
func Make(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.Trim(slug[:maxSlugLen], "-")
	}

	return slug
}
