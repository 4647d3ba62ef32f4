package document

// Record is the neutral shape a data layer returns for one loaded resource:
// typed attributes keyed by their JSON:API names plus the relationship
// linkage read from foreign keys. It deliberately knows nothing about how
// the row was fetched, so heterogeneous results (primary data and included
// resources of different types) serialise through the same path.
type Record struct {
	Type  string
	ID    string
	Attrs map[string]any

	// ToOne maps relationship names to the related id; an empty string is
	// a null linkage. ToMany maps names to the related id list. A missing
	// key means the linkage was not loaded and only links are emitted.
	ToOne  map[string]string
	ToMany map[string][]string
}

// Identifier returns the {type, id} pair of the record.
func (r Record) Identifier() ResourceIdentifier {
	return ResourceIdentifier{Type: r.Type, ID: r.ID}
}
