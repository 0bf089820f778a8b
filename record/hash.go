package record

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Hasher computes record fingerprints over the identity-bearing fields
// declared in configuration. The fingerprint is stable across processes for
// the same field values.
type Hasher struct {
	fields []string
}

// NewHasher creates a hasher over the given identity-bearing field names.
// Recognized names: subject, object, predicate, api, source, publications.
// Unrecognized names address entries in the record's attribute map.
func NewHasher(fields []string) *Hasher {
	return &Hasher{fields: fields}
}

// Fingerprint returns the hex fingerprint of the record's identity fields
func (h *Hasher) Fingerprint(r *Record) string {
	parts := make([]string, 0, len(h.fields))
	for _, f := range h.fields {
		parts = append(parts, h.fieldValue(r, f))
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(strings.Join(parts, "\x1f")))
}

// Apply sets the fingerprint on each record that does not carry one yet
func (h *Hasher) Apply(records []*Record) {
	for _, r := range records {
		if r.Hash == "" {
			r.Hash = h.Fingerprint(r)
		}
	}
}

func (h *Hasher) fieldValue(r *Record, field string) string {
	switch field {
	case "subject":
		return r.Subject.Curie()
	case "object":
		return r.Object.Curie()
	case "predicate":
		return r.Predicate
	case "api":
		return r.API.Name
	case "source":
		return r.Source
	case "publications":
		return strings.Join(r.SortedPublications(), "|")
	default:
		if v, ok := r.Attributes[field]; ok {
			return fmt.Sprintf("%v", v)
		}
		return ""
	}
}
