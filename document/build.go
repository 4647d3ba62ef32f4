package document

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/drblury/jsonapiweaver/query"
	"github.com/drblury/jsonapiweaver/schema"
)

// Builder assembles outgoing documents from records, resolving schemas
// through the shared registry so included resources of any registered type
// serialise alongside the primary data.
type Builder struct {
	reg     *schema.Registry
	baseURL string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBaseURL prefixes every generated link with the given base URL.
func WithBaseURL(baseURL string) BuilderOption {
	return func(b *Builder) {
		b.baseURL = baseURL
	}
}

// NewBuilder returns a Builder backed by the schema registry.
func NewBuilder(reg *schema.Registry, opts ...BuilderOption) *Builder {
	b := &Builder{reg: reg}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Collection builds a compound document for a list result. total is the
// unpaginated match count; limit and offset are the effective pagination
// window the data layer applied, used for the meta and pagination links.
func (b *Builder) Collection(
	s *schema.Schema,
	records []Record,
	included []Record,
	total int,
	limit int,
	offset int,
	params *query.Params,
	requestURL *url.URL,
) (*Document, error) {

	data := make([]*ResourceObject, 0, len(records))
	for _, rec := range records {
		obj, err := b.resourceObject(s, rec, params)
		if err != nil {
			return nil, err
		}
		data = append(data, obj)
	}

	doc := NewDocument(data)
	doc.Meta = Meta{
		"count":      total,
		"totalPages": totalPages(total, limit),
	}
	doc.Links = b.paginationLinks(requestURL, total, limit, offset, params)

	if err := b.appendIncluded(doc, included, params); err != nil {
		return nil, err
	}
	return doc, nil
}

// Resource builds a document for a single primary resource.
func (b *Builder) Resource(
	s *schema.Schema,
	rec Record,
	included []Record,
	params *query.Params,
) (*Document, error) {

	obj, err := b.resourceObject(s, rec, params)
	if err != nil {
		return nil, err
	}

	doc := NewDocument(obj)
	doc.Links = &Links{Self: b.resourceURL(s.ResourceType, rec.ID)}

	if err := b.appendIncluded(doc, included, params); err != nil {
		return nil, err
	}
	return doc, nil
}

// Relationship builds a relationship document (resource linkage only) for
// GET /{type}/{id}/relationships/{name}.
func (b *Builder) Relationship(s *schema.Schema, rel schema.Relationship, ownerID string, rec Record) *Document {
	var data any
	if rel.Kind == schema.ToOne {
		data = NullLinkage()
		if id, ok := rec.ToOne[rel.Name]; ok && id != "" {
			data = &ResourceIdentifier{Type: rel.RelatedType, ID: id}
		}
	} else {
		ids := rec.ToMany[rel.Name]
		identifiers := make([]ResourceIdentifier, 0, len(ids))
		for _, id := range ids {
			identifiers = append(identifiers, ResourceIdentifier{Type: rel.RelatedType, ID: id})
		}
		data = identifiers
	}

	doc := NewDocument(data)
	doc.Links = &Links{
		Self:    b.relationshipURL(s.ResourceType, ownerID, rel.Name),
		Related: b.relatedURL(s.ResourceType, ownerID, rel.Name),
	}
	return doc
}

func (b *Builder) appendIncluded(doc *Document, included []Record, params *query.Params) error {
	seen := make(map[ResourceIdentifier]struct{}, len(included))
	for _, rec := range included {
		identifier := rec.Identifier()
		if _, dup := seen[identifier]; dup {
			continue
		}
		seen[identifier] = struct{}{}

		recSchema, err := b.reg.Lookup(rec.Type)
		if err != nil {
			return err
		}
		obj, err := b.resourceObject(recSchema, rec, params)
		if err != nil {
			return err
		}
		doc.Included = append(doc.Included, obj)
	}
	return nil
}

func (b *Builder) resourceObject(s *schema.Schema, rec Record, params *query.Params) (*ResourceObject, error) {
	attrNames := s.AttributeNames()
	relNames := s.RelationshipNames()

	if fields, ok := params.Fieldset(rec.Type); ok {
		validated, err := s.Fieldset(fields)
		if err != nil {
			return nil, err
		}
		attrNames = attrNames[:0]
		relNames = relNames[:0]
		for _, name := range validated {
			if _, isAttr := s.Attribute(name); isAttr {
				attrNames = append(attrNames, name)
			} else {
				relNames = append(relNames, name)
			}
		}
	}

	obj := &ResourceObject{
		Type:  rec.Type,
		ID:    rec.ID,
		Links: &Links{Self: b.resourceURL(rec.Type, rec.ID)},
	}

	if len(attrNames) > 0 {
		obj.Attributes = make(map[string]any, len(attrNames))
		for _, name := range attrNames {
			attr, _ := s.Attribute(name)
			value, present := rec.Attrs[name]
			if !present {
				continue
			}
			if attr.OmitEmpty && isEmptyValue(value) {
				continue
			}
			obj.Attributes[name] = value
		}
	}

	if len(relNames) > 0 {
		obj.Relationships = make(map[string]RelationshipObject, len(relNames))
		for _, name := range relNames {
			rel, _ := s.Relationship(name)
			obj.Relationships[name] = b.relationshipObject(s, rel, rec)
		}
	}

	return obj, nil
}

func (b *Builder) relationshipObject(s *schema.Schema, rel schema.Relationship, rec Record) RelationshipObject {
	obj := RelationshipObject{
		Links: &Links{
			Self:    b.relationshipURL(s.ResourceType, rec.ID, rel.Name),
			Related: b.relatedURL(s.ResourceType, rec.ID, rel.Name),
		},
	}

	switch rel.Kind {
	case schema.ToOne:
		if id, loaded := rec.ToOne[rel.Name]; loaded {
			if id == "" {
				obj.Data = NullLinkage()
			} else {
				obj.Data = &ResourceIdentifier{Type: rel.RelatedType, ID: id}
			}
		}
	case schema.ToMany:
		if ids, loaded := rec.ToMany[rel.Name]; loaded {
			identifiers := make([]ResourceIdentifier, 0, len(ids))
			for _, id := range ids {
				identifiers = append(identifiers, ResourceIdentifier{Type: rel.RelatedType, ID: id})
			}
			obj.Data = identifiers
		}
	}

	return obj
}

func (b *Builder) resourceURL(resourceType, id string) string {
	return fmt.Sprintf("%s/%s/%s", b.baseURL, resourceType, id)
}

func (b *Builder) relationshipURL(resourceType, id, rel string) string {
	return fmt.Sprintf("%s/%s/%s/relationships/%s", b.baseURL, resourceType, id, rel)
}

func (b *Builder) relatedURL(resourceType, id, rel string) string {
	return fmt.Sprintf("%s/%s/%s/%s", b.baseURL, resourceType, id, rel)
}

func totalPages(total, limit int) int {
	if limit <= 0 {
		return 1
	}
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	if pages == 0 {
		pages = 1
	}
	return pages
}

// paginationLinks rewrites the request URL's page parameters for
// first/prev/next/last, preserving filters, sort, includes, and fieldsets.
func (b *Builder) paginationLinks(requestURL *url.URL, total, limit, offset int, params *query.Params) *Links {
	if requestURL == nil {
		return nil
	}

	links := &Links{Self: requestURL.RequestURI()}
	if limit <= 0 {
		return links
	}

	numberBased := params != nil && (params.Page.Number > 0 || params.Page.Size > 0)
	lastOffset := (totalPages(total, limit) - 1) * limit

	links.First = pageLink(requestURL, 0, limit, numberBased)
	links.Last = pageLink(requestURL, lastOffset, limit, numberBased)
	if offset > 0 {
		prev := max(offset-limit, 0)
		links.Prev = pageLink(requestURL, prev, limit, numberBased)
	}
	if offset+limit < total {
		links.Next = pageLink(requestURL, offset+limit, limit, numberBased)
	}
	return links
}

func pageLink(requestURL *url.URL, offset, limit int, numberBased bool) string {
	values := requestURL.Query()
	if numberBased {
		values.Set("page[number]", strconv.Itoa(offset/limit+1))
		values.Set("page[size]", strconv.Itoa(limit))
		values.Del("page[offset]")
		values.Del("page[limit]")
	} else {
		values.Set("page[offset]", strconv.Itoa(offset))
		values.Set("page[limit]", strconv.Itoa(limit))
	}

	u := *requestURL
	u.RawQuery = values.Encode()
	return u.RequestURI()
}

func isEmptyValue(v any) bool {
	switch value := v.(type) {
	case nil:
		return true
	case string:
		return value == ""
	case int:
		return value == 0
	case int64:
		return value == 0
	case float64:
		return value == 0
	case bool:
		return !value
	case []any:
		return len(value) == 0
	case map[string]any:
		return len(value) == 0
	default:
		return false
	}
}
