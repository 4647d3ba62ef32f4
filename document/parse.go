package document

import (
	"errors"
	"fmt"
	"io"

	"github.com/drblury/jsonapiweaver/jsonutil"
	"github.com/drblury/jsonapiweaver/schema"
)

var (
	ErrInvalidDocument = errors.New("document: invalid request document")
	ErrUnknownMember   = errors.New("document: unknown member")
	ErrReadOnlyMember  = errors.New("document: attribute is read-only")
	ErrTypeConflict    = errors.New("document: resource type does not match endpoint")
)

// RequestError is a document parse error carrying the JSON pointer of the
// offending member for the error source.
type RequestError struct {
	Pointer string
	Detail  string
	Err     error
}

func (e *RequestError) Error() string {
	if e.Pointer == "" {
		return e.Detail
	}
	return fmt.Sprintf("%s: %s", e.Pointer, e.Detail)
}

func (e *RequestError) Unwrap() error { return e.Err }

func newRequestError(sentinel error, pointer, format string, args ...any) *RequestError {
	return &RequestError{
		Pointer: pointer,
		Detail:  fmt.Sprintf(format, args...),
		Err:     sentinel,
	}
}

// IncomingResource is the validated payload of a create or update request.
// Attribute values are decoded JSON values keyed by attribute name; the
// storage layer coerces them onto the schema's Go types.
type IncomingResource struct {
	Type  string
	ID    string
	Attrs map[string]any

	// ToOne maps relationship names to the new linkage; nil clears it.
	ToOne map[string]*string
	// ToMany maps relationship names to full replacement id lists.
	ToMany map[string][]string
}

type incomingDocument struct {
	Data *RawResource `json:"data"`
}

// RawResource is the undecoded wire shape of a resource object in a
// request document. The atomic-operations handler decodes operations into
// this shape before validating them per target schema.
type RawResource struct {
	Type          string                     `json:"type"`
	ID            string                     `json:"id"`
	Attributes    map[string]any             `json:"attributes"`
	Relationships map[string]RawRelationship `json:"relationships"`
}

// RawRelationship is the undecoded relationship member of a RawResource.
type RawRelationship struct {
	Data any `json:"data"`
}

// ParseResourceDocument reads and validates a create/update document
// against the schema. Unknown or read-only attributes and unknown
// relationships are rejected with pointer-carrying errors; a mismatched
// resource type yields ErrTypeConflict, which the HTTP layer answers with
// 409 as the specification requires.
func ParseResourceDocument(body io.Reader, s *schema.Schema) (*IncomingResource, error) {
	var doc incomingDocument
	if err := jsonutil.Decode(body, &doc); err != nil {
		return nil, newRequestError(ErrInvalidDocument, "", "request body is not a valid JSON:API document: %v", err)
	}
	return ResourceFromDocumentData(doc.Data, s)
}

// ResourceFromDocumentData validates an already decoded resource object,
// which is how the atomic-operations handler reuses the parse path.
func ResourceFromDocumentData(data *RawResource, s *schema.Schema) (*IncomingResource, error) {
	if data == nil {
		return nil, newRequestError(ErrInvalidDocument, "/data", "primary data is required")
	}
	if data.Type != s.ResourceType {
		return nil, newRequestError(ErrTypeConflict, "/data/type", "expected resource type %q, got %q", s.ResourceType, data.Type)
	}

	in := &IncomingResource{
		Type: data.Type,
		ID:   data.ID,
	}

	if len(data.Attributes) > 0 {
		in.Attrs = make(map[string]any, len(data.Attributes))
		for name, value := range data.Attributes {
			attr, ok := s.Attribute(name)
			if !ok {
				return nil, newRequestError(ErrUnknownMember, "/data/attributes/"+name,
					"%q is not an attribute of resource %q", name, s.ResourceType)
			}
			if attr.ReadOnly {
				return nil, newRequestError(ErrReadOnlyMember, "/data/attributes/"+name,
					"attribute %q cannot be written", name)
			}
			in.Attrs[name] = value
		}
	}

	for name, relData := range data.Relationships {
		rel, ok := s.Relationship(name)
		if !ok {
			return nil, newRequestError(ErrUnknownMember, "/data/relationships/"+name,
				"%q is not a relationship of resource %q", name, s.ResourceType)
		}
		if err := in.applyRelationship(rel, relData); err != nil {
			return nil, err
		}
	}

	return in, nil
}

func (in *IncomingResource) applyRelationship(rel schema.Relationship, relData RawRelationship) error {
	pointer := "/data/relationships/" + rel.Name + "/data"

	switch rel.Kind {
	case schema.ToOne:
		if in.ToOne == nil {
			in.ToOne = make(map[string]*string)
		}
		if relData.Data == nil {
			in.ToOne[rel.Name] = nil
			return nil
		}
		identifier, err := parseIdentifier(relData.Data, rel.RelatedType, pointer)
		if err != nil {
			return err
		}
		in.ToOne[rel.Name] = &identifier.ID
		return nil

	case schema.ToMany:
		list, ok := relData.Data.([]any)
		if !ok {
			return newRequestError(ErrInvalidDocument, pointer, "to-many linkage must be an array")
		}
		ids := make([]string, 0, len(list))
		for _, entry := range list {
			identifier, err := parseIdentifier(entry, rel.RelatedType, pointer)
			if err != nil {
				return err
			}
			ids = append(ids, identifier.ID)
		}
		if in.ToMany == nil {
			in.ToMany = make(map[string][]string)
		}
		in.ToMany[rel.Name] = ids
		return nil
	}

	return newRequestError(ErrInvalidDocument, pointer, "unsupported relationship kind")
}

func parseIdentifier(raw any, wantType, pointer string) (*ResourceIdentifier, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, newRequestError(ErrInvalidDocument, pointer, "resource linkage must be a {type, id} object")
	}
	identifierType, _ := obj["type"].(string)
	id, _ := obj["id"].(string)
	if identifierType == "" || id == "" {
		return nil, newRequestError(ErrInvalidDocument, pointer, "resource linkage needs both type and id")
	}
	if identifierType != wantType {
		return nil, newRequestError(ErrTypeConflict, pointer, "expected linkage type %q, got %q", wantType, identifierType)
	}
	return &ResourceIdentifier{Type: identifierType, ID: id}, nil
}
