package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"
)

const (
	tagKey   = "jsonapi"
	dbTagKey = "db"

	tagPrimary  = "primary"
	tagAttr     = "attr"
	tagRelation = "relation"

	optOmitEmpty = "omitempty"
	optReadOnly  = "readonly"
	optToOne     = "toone"
	optFKPrefix  = "fk="
)

var (
	ErrNotAStruct       = errors.New("schema: resource must be a struct or pointer to struct")
	ErrNoPrimaryField   = errors.New("schema: resource has no jsonapi primary field")
	ErrInvalidTag       = errors.New("schema: invalid jsonapi tag")
	ErrDuplicateField   = errors.New("schema: duplicate attribute or relationship name")
	ErrUnknownField     = errors.New("schema: unknown field")
	ErrInvalidRelatedGo = errors.New("schema: relationship target is not a struct type")
)

// RelationshipKind distinguishes to-one from to-many relationships.
type RelationshipKind int

const (
	ToOne RelationshipKind = iota + 1
	ToMany
)

// String returns the JSON:API style name of the relationship kind.
func (k RelationshipKind) String() string {
	if k == ToOne {
		return "to-one"
	}
	return "to-many"
}

// Attribute describes one resource attribute and its storage mapping.
type Attribute struct {
	Name        string       // JSON:API attribute name
	Column      string       // database column
	GoField     string       // struct field name
	Type        reflect.Type // Go type of the struct field
	JSONEncoded bool         // stored as JSONB, (de)serialised through sonic
	OmitEmpty   bool
	ReadOnly    bool // rejected in create/update request documents
}

// Relationship describes a named relationship and the foreign-key mapping
// used to resolve it.
type Relationship struct {
	Name          string
	Kind          RelationshipKind
	RelatedType   string       // JSON:API resource type of the target
	RelatedGoType reflect.Type // struct type of the target
	LocalColumn   string       // to-one: FK column on the owning table
	ForeignColumn string       // to-many: FK column on the related table
}

// Schema is the reflected description of one resource type.
type Schema struct {
	ResourceType  string
	Table         string
	IDColumn      string
	IDGoField     string
	GoType        reflect.Type
	Attributes    []Attribute
	Relationships []Relationship

	attrsByName map[string]int
	relsByName  map[string]int
}

// Attribute returns the attribute with the given JSON:API name.
func (s *Schema) Attribute(name string) (Attribute, bool) {
	i, ok := s.attrsByName[name]
	if !ok {
		return Attribute{}, false
	}
	return s.Attributes[i], true
}

// Relationship returns the relationship with the given JSON:API name.
func (s *Schema) Relationship(name string) (Relationship, bool) {
	i, ok := s.relsByName[name]
	if !ok {
		return Relationship{}, false
	}
	return s.Relationships[i], true
}

// HasField reports whether name is a known attribute or relationship.
func (s *Schema) HasField(name string) bool {
	if _, ok := s.attrsByName[name]; ok {
		return true
	}
	_, ok := s.relsByName[name]
	return ok
}

// AttributeNames returns the attribute names in declaration order.
func (s *Schema) AttributeNames() []string {
	names := make([]string, len(s.Attributes))
	for i, attr := range s.Attributes {
		names[i] = attr.Name
	}
	return names
}

// RelationshipNames returns the relationship names in declaration order.
func (s *Schema) RelationshipNames() []string {
	names := make([]string, len(s.Relationships))
	for i, rel := range s.Relationships {
		names[i] = rel.Name
	}
	return names
}

// Fieldset validates a sparse fieldset request against the schema and
// returns the attribute subset to serialise. Relationship names are allowed
// and pass through untouched; unknown names produce an error naming the
// offending field.
func (s *Schema) Fieldset(names []string) ([]string, error) {
	fields := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !s.HasField(name) {
			return nil, fmt.Errorf("%w: %q is not a field of resource %q", ErrUnknownField, name, s.ResourceType)
		}
		fields = append(fields, name)
	}
	return fields, nil
}

// Reflect builds a Schema from the provided resource struct value or
// pointer. Options override the defaults derived from tags.
func Reflect(resource any, opts ...Option) (*Schema, error) {
	t := reflect.TypeOf(resource)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, ErrNotAStruct
	}

	s := &Schema{
		GoType:      t,
		IDColumn:    "id",
		attrsByName: make(map[string]int),
		relsByName:  make(map[string]int),
	}

	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag, ok := field.Tag.Lookup(tagKey)
		if !ok || tag == "" || tag == "-" {
			continue
		}
		if err := s.applyTaggedField(field, tag); err != nil {
			return nil, err
		}
	}

	if s.ResourceType == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoPrimaryField, t.Name())
	}
	if s.Table == "" {
		s.Table = snakeCase(s.ResourceType)
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s, nil
}

func (s *Schema) applyTaggedField(field reflect.StructField, tag string) error {
	parts := strings.Split(tag, ",")
	switch parts[0] {
	case tagPrimary:
		if len(parts) < 2 || parts[1] == "" {
			return fmt.Errorf("%w: primary tag on %s needs a resource type", ErrInvalidTag, field.Name)
		}
		s.ResourceType = parts[1]
		s.IDGoField = field.Name
		if col, ok := field.Tag.Lookup(dbTagKey); ok && col != "" {
			s.IDColumn = col
		}
		return nil

	case tagAttr:
		return s.addAttribute(field, parts)

	case tagRelation:
		return s.addRelationship(field, parts)

	default:
		return fmt.Errorf("%w: unknown directive %q on %s", ErrInvalidTag, parts[0], field.Name)
	}
}

func (s *Schema) addAttribute(field reflect.StructField, parts []string) error {
	if len(parts) < 2 || parts[1] == "" {
		return fmt.Errorf("%w: attr tag on %s needs a name", ErrInvalidTag, field.Name)
	}

	attr := Attribute{
		Name:    parts[1],
		GoField: field.Name,
		Type:    field.Type,
	}
	for _, opt := range parts[2:] {
		switch opt {
		case optOmitEmpty:
			attr.OmitEmpty = true
		case optReadOnly:
			attr.ReadOnly = true
		default:
			return fmt.Errorf("%w: unknown attr option %q on %s", ErrInvalidTag, opt, field.Name)
		}
	}

	attr.Column = field.Tag.Get(dbTagKey)
	if attr.Column == "" {
		attr.Column = snakeCase(attr.Name)
	}
	attr.JSONEncoded = isJSONEncoded(field.Type)

	if s.HasField(attr.Name) {
		return fmt.Errorf("%w: %q on %s", ErrDuplicateField, attr.Name, field.Name)
	}
	s.attrsByName[attr.Name] = len(s.Attributes)
	s.Attributes = append(s.Attributes, attr)
	return nil
}

func (s *Schema) addRelationship(field reflect.StructField, parts []string) error {
	if len(parts) < 2 || parts[1] == "" {
		return fmt.Errorf("%w: relation tag on %s needs a name", ErrInvalidTag, field.Name)
	}

	rel := Relationship{
		Name: parts[1],
		Kind: ToMany,
	}

	var fkOverride string
	for _, opt := range parts[2:] {
		switch {
		case opt == optToOne:
			rel.Kind = ToOne
		case strings.HasPrefix(opt, optFKPrefix):
			fkOverride = strings.TrimPrefix(opt, optFKPrefix)
		default:
			return fmt.Errorf("%w: unknown relation option %q on %s", ErrInvalidTag, opt, field.Name)
		}
	}

	related, err := relatedStructType(field.Type)
	if err != nil {
		return fmt.Errorf("%w: %s", err, field.Name)
	}
	rel.RelatedGoType = related
	rel.RelatedType = primaryTypeOf(related)
	if rel.RelatedType == "" {
		return fmt.Errorf("%w: %s has no jsonapi primary field", ErrInvalidRelatedGo, related.Name())
	}

	switch rel.Kind {
	case ToOne:
		rel.LocalColumn = fkOverride
		if rel.LocalColumn == "" {
			rel.LocalColumn = snakeCase(rel.Name) + "_id"
		}
	case ToMany:
		rel.ForeignColumn = fkOverride
		if rel.ForeignColumn == "" {
			rel.ForeignColumn = singular(s.ResourceType) + "_id"
		}
	}

	if s.HasField(rel.Name) {
		return fmt.Errorf("%w: %q on %s", ErrDuplicateField, rel.Name, field.Name)
	}
	s.relsByName[rel.Name] = len(s.Relationships)
	s.Relationships = append(s.Relationships, rel)
	return nil
}

// relatedStructType unwraps pointers and slices down to the struct type a
// relationship field points at.
func relatedStructType(t reflect.Type) (reflect.Type, error) {
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, ErrInvalidRelatedGo
	}
	return t, nil
}

// primaryTypeOf reads the resource type out of the target struct's primary
// tag without requiring the target to be registered yet.
func primaryTypeOf(t reflect.Type) string {
	for i := range t.NumField() {
		tag := t.Field(i).Tag.Get(tagKey)
		parts := strings.Split(tag, ",")
		if len(parts) >= 2 && parts[0] == tagPrimary {
			return parts[1]
		}
	}
	return ""
}

func isJSONEncoded(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Slice:
		return t.Elem().Kind() != reflect.Uint8
	case reflect.Map:
		return true
	case reflect.Struct:
		return t != reflect.TypeFor[time.Time]()
	default:
		return false
	}
}

// snakeCase lowers a JSON:API member name ("created-at", "createdAt") into
// a Postgres column name.
func snakeCase(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	var prevLower bool
	for _, r := range name {
		switch {
		case r == '-' || r == ' ':
			b.WriteByte('_')
			prevLower = false
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		default:
			b.WriteRune(r)
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		}
	}
	return b.String()
}

// singular trims the plural resource type down to the conventional FK stem:
// "articles" -> "article", "categories" -> "category".
func singular(resourceType string) string {
	switch {
	case strings.HasSuffix(resourceType, "ies"):
		return strings.TrimSuffix(resourceType, "ies") + "y"
	case strings.HasSuffix(resourceType, "ses"):
		return strings.TrimSuffix(resourceType, "es")
	case strings.HasSuffix(resourceType, "s"):
		return strings.TrimSuffix(resourceType, "s")
	default:
		return resourceType
	}
}
