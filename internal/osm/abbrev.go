package osm

// Abbreviator performs US-postal-style name abbreviation ("Street" → "St",
// "Mountain" → "Mtn", …) during ingest. It is an external collaborator: the
// core never recomputes Abrev once an entity has been constructed, it only
// stores and serializes whatever the parser supplied.
type Abbreviator interface {
	Abbreviate(name string) string
}

// NoAbbreviator returns the name unchanged. Useful for tools (or tests)
// that have no abbreviation table configured.
type NoAbbreviator struct{}

func (NoAbbreviator) Abbreviate(name string) string { return name }
