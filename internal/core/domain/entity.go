package domain

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// EntityType classifies the kind of real-world entity.
type EntityType string

// Supported entity types.
const (
	EntityTypePerson       EntityType = "person"
	EntityTypeOrganization EntityType = "organization"
	EntityTypeDate         EntityType = "date"
	EntityTypeAmount       EntityType = "amount"
	EntityTypeLocation     EntityType = "location"
	EntityTypeProduct      EntityType = "product"
	EntityTypeConcept      EntityType = "concept"
	EntityTypeTerm         EntityType = "term"
)

// ValidEntityTypes is the set of all valid entity types.
var ValidEntityTypes = []EntityType{
	EntityTypePerson,
	EntityTypeOrganization,
	EntityTypeDate,
	EntityTypeAmount,
	EntityTypeLocation,
	EntityTypeProduct,
	EntityTypeConcept,
	EntityTypeTerm,
}

// IsValid returns true if the entity type is recognised.
func (et EntityType) IsValid() bool {
	for i := range ValidEntityTypes {
		if et == ValidEntityTypes[i] {
			return true
		}
	}
	return false
}

// Entity is a canonical, workspace-scoped record representing one
// real-world entity merged across every document that mentions it.
//
// Invariant: (WorkspaceID, Type, NormalizedName) is unique. Lookups must
// reuse an existing entity rather than create a duplicate; the store layer
// enforces this with a uniqueness constraint and create-or-fetch-on-conflict.
type Entity struct {
	// ID is the unique entity identifier.
	ID string

	// WorkspaceID scopes the entity to one workspace.
	WorkspaceID string

	// Type classifies the entity.
	Type EntityType

	// Name is the display name as first harvested.
	Name string

	// NormalizedName is the dedup key: NFC-normalised, trimmed, lowercased.
	NormalizedName string

	// Aliases holds alternative display names seen for this entity.
	Aliases []string

	// MentionCount is the total number of mentions across all documents.
	MentionCount int

	// DocumentCount is the number of distinct documents mentioning this entity.
	DocumentCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Mention links one canonical entity to one document occurrence.
//
// Invariant: (EntityID, DocumentID, FieldPath) is unique. Mentions are
// created during harvesting, never updated, and deleted only when their
// owning document is deleted.
type Mention struct {
	// ID is the unique mention identifier.
	ID string

	// EntityID references the canonical entity.
	EntityID string

	// DocumentID references the mentioning document.
	DocumentID string

	// FieldPath is the extraction field origin, e.g. "parties[0].name".
	FieldPath string

	// Context is a short human-readable context string.
	Context string

	// Confidence is the extraction confidence in [0, 1].
	Confidence float64

	// Source tags where the mention came from, e.g. "extraction".
	Source string

	CreatedAt time.Time
}

// NormalizeName canonicalises an entity name for dedup: Unicode NFC,
// whitespace trimmed and collapsed, lowercased. An empty result means the
// name should be dropped. The operation is idempotent.
func NormalizeName(name string) string {
	s := norm.NFC.String(name)
	s = strings.Join(strings.Fields(s), " ")
	return strings.ToLower(s)
}

// organizationSuffixes are tokens that mark a party name as an organization
// rather than a person. Matching is against the last tokens of the
// normalised name, with trailing punctuation stripped.
var organizationSuffixes = map[string]bool{
	"inc":          true,
	"incorporated": true,
	"corp":         true,
	"corporation":  true,
	"llc":          true,
	"llp":          true,
	"ltd":          true,
	"limited":      true,
	"gmbh":         true,
	"plc":          true,
	"co":           true,
	"company":      true,
	"group":        true,
	"holdings":     true,
	"partners":     true,
	"associates":   true,
	"university":   true,
	"institute":    true,
	"foundation":   true,
	"bank":         true,
	"trust":        true,
	"agency":       true,
}

// ClassifyPartyName decides whether an ambiguous party name refers to a
// person or an organization, using the fixed suffix dictionary. The default
// for names without an organizational marker is person.
func ClassifyPartyName(name string) EntityType {
	for _, tok := range strings.Fields(NormalizeName(name)) {
		tok = strings.Trim(tok, ".,()")
		if organizationSuffixes[tok] {
			return EntityTypeOrganization
		}
	}
	return EntityTypePerson
}
