package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/okian/scout/internal/domain/model"
)

// DefaultPrefixRunes is how much of the description takes part in the digest.
const DefaultPrefixRunes = 200

// Normalize lower-cases s and collapses every run of whitespace into a single
// space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Fingerprint computes the dedup digest for p. Title, company and a prefix of
// the description are normalized before hashing so that postings differing
// only in case or spacing collide. The second return value reports whether
// the normalized identity was empty; in that case the digest is derived from
// the source identifiers instead and never matches a content digest.
func Fingerprint(p model.Posting, prefixRunes int) (model.Fingerprint, bool) {
	title := Normalize(p.Title)
	company := Normalize(p.Company)
	if title == "" && company == "" {
		return fallback(p), true
	}
	desc := truncate(Normalize(p.Description), prefixRunes)
	return digest(title, company, desc), false
}

func fallback(p model.Posting) model.Fingerprint {
	source := strings.TrimSpace(p.Source)
	id := strings.TrimSpace(p.ExternalID)
	if source == "" && id == "" {
		// nothing to key on; every such posting gets its own entry
		return digest("unkeyed", uuid.NewString())
	}
	return digest("unkeyed", source, id)
}

// digest hashes parts with a length prefix on each, so no choice of field
// contents can shift bytes from one field into the next.
func digest(parts ...string) model.Fingerprint {
	h := sha256.New()
	for _, part := range parts {
		_, _ = fmt.Fprintf(h, "%d:%s", len(part), part)
	}
	return model.Fingerprint(hex.EncodeToString(h.Sum(nil)))
}
