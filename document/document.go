package document

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// MediaType is the JSON:API media type. Requests and responses carry it
// without parameters; the negotiation rules below implement the 415/406
// semantics the specification requires.
const MediaType = "application/vnd.api+json"

// Version is the highest version of the specification the module supports.
const Version = "1.0"

var (
	ErrUnsupportedMediaType = errors.New("document: Content-Type must be application/vnd.api+json without parameters")
	ErrNotAcceptable        = errors.New("document: no acceptable application/vnd.api+json representation")
)

// VersionObject is the top-level jsonapi member.
type VersionObject struct {
	Version string `json:"version"`
}

// Link is either a bare URL string or an object with href and meta; the
// module only emits the string form.
type Link = string

// Links is a JSON:API links object.
type Links struct {
	Self    Link `json:"self,omitempty"`
	Related Link `json:"related,omitempty"`
	First   Link `json:"first,omitempty"`
	Prev    Link `json:"prev,omitempty"`
	Next    Link `json:"next,omitempty"`
	Last    Link `json:"last,omitempty"`
}

// Meta is a free-form meta object.
type Meta map[string]any

// ResourceIdentifier is the {type, id} pair used for resource linkage.
type ResourceIdentifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// RelationshipObject carries resource linkage and relationship links.
//
// Data uses any so a single field covers to-one (identifier or explicit
// null) and to-many (identifier array) linkage. A typed nil
// *ResourceIdentifier survives omitempty and marshals as JSON null, which
// is how an empty to-one relationship must appear on the wire.
type RelationshipObject struct {
	Links *Links `json:"links,omitempty"`
	Data  any    `json:"data,omitempty"`
	Meta  Meta   `json:"meta,omitempty"`
}

// NullLinkage is the explicit empty to-one linkage value.
func NullLinkage() any {
	return (*ResourceIdentifier)(nil)
}

// ResourceObject is a full JSON:API resource object.
type ResourceObject struct {
	Type          string                        `json:"type"`
	ID            string                        `json:"id"`
	Attributes    map[string]any                `json:"attributes,omitempty"`
	Relationships map[string]RelationshipObject `json:"relationships,omitempty"`
	Links         *Links                        `json:"links,omitempty"`
	Meta          Meta                          `json:"meta,omitempty"`
}

// Identifier returns the {type, id} pair of the resource object.
func (r *ResourceObject) Identifier() ResourceIdentifier {
	return ResourceIdentifier{Type: r.Type, ID: r.ID}
}

// Document is a JSON:API top-level document with primary data. Data is
// either a *ResourceObject (nil for an empty to-one result), a
// []*ResourceObject, or resource identifiers for relationship documents.
type Document struct {
	JSONAPI  VersionObject     `json:"jsonapi"`
	Meta     Meta              `json:"meta,omitempty"`
	Links    *Links            `json:"links,omitempty"`
	Data     any               `json:"data"`
	Included []*ResourceObject `json:"included,omitempty"`
}

// NewDocument returns a Document with the version object populated.
func NewDocument(data any) *Document {
	return &Document{
		JSONAPI: VersionObject{Version: Version},
		Data:    data,
	}
}

// MetaDocument is a top-level document whose only primary member is meta,
// used for responses like a filtered bulk delete that report a count but no
// resources.
type MetaDocument struct {
	JSONAPI VersionObject `json:"jsonapi"`
	Meta    Meta          `json:"meta"`
}

// NewMetaDocument wraps the meta object in a top-level document.
func NewMetaDocument(meta Meta) *MetaDocument {
	return &MetaDocument{
		JSONAPI: VersionObject{Version: Version},
		Meta:    meta,
	}
}

// NegotiateRequest enforces the JSON:API content negotiation rules on an
// incoming request: a JSON:API Content-Type must carry no media type
// parameters (415 otherwise), and if every JSON:API entry in Accept is
// parameterised the server must answer 406.
func NegotiateRequest(r *http.Request) error {
	if err := validateContentType(r); err != nil {
		return err
	}
	return validateAccept(r.Header.Get("Accept"))
}

func validateContentType(r *http.Request) error {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return nil
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedMediaType, err)
	}
	if mediaType != MediaType {
		return fmt.Errorf("%w: got %q", ErrUnsupportedMediaType, mediaType)
	}
	if len(params) > 0 {
		return ErrUnsupportedMediaType
	}
	return nil
}

func validateAccept(accept string) error {
	if accept == "" {
		return nil
	}

	sawJSONAPI := false
	for entry := range strings.SplitSeq(accept, ",") {
		mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(entry))
		if err != nil {
			continue
		}
		switch mediaType {
		case "*/*", "application/*":
			return nil
		case MediaType:
			sawJSONAPI = true
			delete(params, "q")
			if len(params) == 0 {
				return nil
			}
		}
	}

	if sawJSONAPI {
		// Every JSON:API entry carried parameters.
		return ErrNotAcceptable
	}
	return nil
}
