package openapi

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/drblury/jsonapiweaver/document"
	"github.com/drblury/jsonapiweaver/schema"
)

// Option configures the generated document.
type Option func(*generator)

// WithInfo sets the API title and version of the generated document.
func WithInfo(title, version string) Option {
	return func(g *generator) {
		g.title = title
		g.version = version
	}
}

// WithServerURL adds a server entry.
func WithServerURL(url string) Option {
	return func(g *generator) {
		g.servers = append(g.servers, &openapi3.Server{URL: url})
	}
}

type generator struct {
	reg     *schema.Registry
	title   string
	version string
	servers openapi3.Servers
}

// Generate builds the OpenAPI document covering every resource type in the
// registry: list, create, detail, update, delete, bulk delete, and the
// relationship and related endpoints, plus the atomic operations endpoint.
func Generate(reg *schema.Registry, opts ...Option) (*openapi3.T, error) {
	g := &generator{
		reg:     reg,
		title:   "JSON:API",
		version: "1.0.0",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:   g.title,
			Version: g.version,
		},
		Servers: g.servers,
		Paths:   openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas: openapi3.Schemas{},
		},
	}

	g.sharedComponents(doc)

	for _, resourceType := range reg.Types() {
		s, err := reg.Lookup(resourceType)
		if err != nil {
			return nil, err
		}
		g.resourceComponents(doc, s)
		g.resourcePaths(doc, s)
	}

	g.operationsPath(doc)
	return doc, nil
}

func componentRef(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

func (g *generator) sharedComponents(doc *openapi3.T) {
	identifier := openapi3.NewObjectSchema().
		WithProperty("type", openapi3.NewStringSchema()).
		WithProperty("id", openapi3.NewStringSchema())
	identifier.Required = []string{"type", "id"}
	doc.Components.Schemas["resourceIdentifier"] = openapi3.NewSchemaRef("", identifier)

	toOne := openapi3.NewObjectSchema()
	toOne.Properties = openapi3.Schemas{"data": componentRef("resourceIdentifier")}
	doc.Components.Schemas["relationshipToOne"] = openapi3.NewSchemaRef("", toOne)

	identifierList := openapi3.NewArraySchema()
	identifierList.Items = componentRef("resourceIdentifier")
	toMany := openapi3.NewObjectSchema()
	toMany.Properties = openapi3.Schemas{"data": openapi3.NewSchemaRef("", identifierList)}
	doc.Components.Schemas["relationshipToMany"] = openapi3.NewSchemaRef("", toMany)

	errObject := openapi3.NewObjectSchema().
		WithProperty("id", openapi3.NewStringSchema()).
		WithProperty("status", openapi3.NewStringSchema()).
		WithProperty("title", openapi3.NewStringSchema()).
		WithProperty("detail", openapi3.NewStringSchema()).
		WithProperty("source", openapi3.NewObjectSchema().
			WithProperty("pointer", openapi3.NewStringSchema()).
			WithProperty("parameter", openapi3.NewStringSchema()))
	errList := openapi3.NewArraySchema()
	errList.Items = openapi3.NewSchemaRef("", errObject)
	errDoc := openapi3.NewObjectSchema()
	errDoc.Properties = openapi3.Schemas{"errors": openapi3.NewSchemaRef("", errList)}
	doc.Components.Schemas["errorDocument"] = openapi3.NewSchemaRef("", errDoc)
}

// resourceComponents registers {type}Resource, {type}Document, and
// {type}Collection component schemas.
func (g *generator) resourceComponents(doc *openapi3.T, s *schema.Schema) {
	attrs := openapi3.NewObjectSchema()
	attrs.Properties = openapi3.Schemas{}
	for _, attr := range s.Attributes {
		attrs.Properties[attr.Name] = openapi3.NewSchemaRef("", attrSchema(attr.Type))
	}

	rels := openapi3.NewObjectSchema()
	rels.Properties = openapi3.Schemas{}
	for _, rel := range s.Relationships {
		if rel.Kind == schema.ToOne {
			rels.Properties[rel.Name] = componentRef("relationshipToOne")
		} else {
			rels.Properties[rel.Name] = componentRef("relationshipToMany")
		}
	}

	resource := openapi3.NewObjectSchema().
		WithProperty("type", openapi3.NewStringSchema().WithEnum(s.ResourceType)).
		WithProperty("id", openapi3.NewStringSchema())
	resource.Properties["attributes"] = openapi3.NewSchemaRef("", attrs)
	if len(rels.Properties) > 0 {
		resource.Properties["relationships"] = openapi3.NewSchemaRef("", rels)
	}
	resource.Required = []string{"type"}

	resourceName := s.ResourceType + "Resource"
	doc.Components.Schemas[resourceName] = openapi3.NewSchemaRef("", resource)

	single := openapi3.NewObjectSchema()
	single.Properties = openapi3.Schemas{"data": componentRef(resourceName)}
	doc.Components.Schemas[s.ResourceType+"Document"] = openapi3.NewSchemaRef("", single)

	list := openapi3.NewArraySchema()
	list.Items = componentRef(resourceName)
	collection := openapi3.NewObjectSchema()
	collection.Properties = openapi3.Schemas{"data": openapi3.NewSchemaRef("", list)}
	doc.Components.Schemas[s.ResourceType+"Collection"] = openapi3.NewSchemaRef("", collection)
}

func (g *generator) resourcePaths(doc *openapi3.T, s *schema.Schema) {
	t := s.ResourceType

	doc.Paths.Set("/"+t, &openapi3.PathItem{
		Get:    g.listOperation(s),
		Post:   g.createOperation(s),
		Delete: g.bulkDeleteOperation(s),
	})

	doc.Paths.Set(fmt.Sprintf("/%s/{id}", t), &openapi3.PathItem{
		Get:    g.detailOperation(s),
		Patch:  g.updateOperation(s),
		Delete: g.deleteOperation(s),
	})

	doc.Paths.Set(fmt.Sprintf("/%s/{id}/relationships/{rel}", t), &openapi3.PathItem{
		Get: g.relationshipOperation(s),
	})

	doc.Paths.Set(fmt.Sprintf("/%s/{id}/{rel}", t), &openapi3.PathItem{
		Get: g.relatedOperation(s),
	})
}

func (g *generator) listOperation(s *schema.Schema) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = "list" + titleCase(s.ResourceType)
	op.Tags = []string{s.ResourceType}
	addQueryParameters(op)
	op.AddResponse(http.StatusOK, jsonapiResponse(s.ResourceType+"Collection", "resource collection"))
	op.AddResponse(http.StatusBadRequest, errorResponse())
	return op
}

func (g *generator) detailOperation(s *schema.Schema) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = "get" + titleCase(s.ResourceType)
	op.Tags = []string{s.ResourceType}
	op.AddParameter(idParameter())
	op.AddResponse(http.StatusOK, jsonapiResponse(s.ResourceType+"Document", "single resource"))
	op.AddResponse(http.StatusNotFound, errorResponse())
	return op
}

func (g *generator) createOperation(s *schema.Schema) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = "create" + titleCase(s.ResourceType)
	op.Tags = []string{s.ResourceType}
	op.RequestBody = jsonapiRequestBody(s.ResourceType + "Document")
	op.AddResponse(http.StatusCreated, jsonapiResponse(s.ResourceType+"Document", "created resource"))
	op.AddResponse(http.StatusConflict, errorResponse())
	return op
}

func (g *generator) updateOperation(s *schema.Schema) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = "update" + titleCase(s.ResourceType)
	op.Tags = []string{s.ResourceType}
	op.AddParameter(idParameter())
	op.RequestBody = jsonapiRequestBody(s.ResourceType + "Document")
	op.AddResponse(http.StatusOK, jsonapiResponse(s.ResourceType+"Document", "updated resource"))
	op.AddResponse(http.StatusNotFound, errorResponse())
	return op
}

func (g *generator) deleteOperation(s *schema.Schema) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = "delete" + titleCase(s.ResourceType)
	op.Tags = []string{s.ResourceType}
	op.AddParameter(idParameter())
	op.AddResponse(http.StatusNoContent, openapi3.NewResponse().WithDescription("resource deleted"))
	op.AddResponse(http.StatusNotFound, errorResponse())
	return op
}

func (g *generator) bulkDeleteOperation(s *schema.Schema) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = "deleteFiltered" + titleCase(s.ResourceType)
	op.Tags = []string{s.ResourceType}
	op.AddParameter(openapi3.NewQueryParameter("filter").WithSchema(openapi3.NewStringSchema()))
	meta := openapi3.NewObjectSchema().
		WithProperty("meta", openapi3.NewObjectSchema().
			WithProperty("count", openapi3.NewIntegerSchema()))
	response := openapi3.NewResponse().
		WithDescription("deleted count").
		WithContent(openapi3.NewContentWithSchema(meta, []string{document.MediaType}))
	op.AddResponse(http.StatusOK, response)
	return op
}

func (g *generator) relationshipOperation(s *schema.Schema) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = "get" + titleCase(s.ResourceType) + "Relationship"
	op.Tags = []string{s.ResourceType}
	op.AddParameter(idParameter())
	op.AddParameter(relParameter(s))
	op.AddResponse(http.StatusOK, jsonapiComponentResponse("relationshipToMany", "resource linkage"))
	op.AddResponse(http.StatusNotFound, errorResponse())
	return op
}

func (g *generator) relatedOperation(s *schema.Schema) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = "get" + titleCase(s.ResourceType) + "Related"
	op.Tags = []string{s.ResourceType}
	op.AddParameter(idParameter())
	op.AddParameter(relParameter(s))
	addQueryParameters(op)
	response := openapi3.NewResponse().WithDescription("related resources")
	op.AddResponse(http.StatusOK, response)
	op.AddResponse(http.StatusNotFound, errorResponse())
	return op
}

func (g *generator) operationsPath(doc *openapi3.T) {
	op := openapi3.NewOperation()
	op.OperationID = "atomicOperations"
	op.Tags = []string{"operations"}

	operation := openapi3.NewObjectSchema().
		WithProperty("op", openapi3.NewStringSchema().WithEnum("add", "update", "remove")).
		WithProperty("ref", openapi3.NewObjectSchema().
			WithProperty("type", openapi3.NewStringSchema()).
			WithProperty("id", openapi3.NewStringSchema())).
		WithProperty("data", openapi3.NewObjectSchema())
	operationList := openapi3.NewArraySchema()
	operationList.Items = openapi3.NewSchemaRef("", operation)
	request := openapi3.NewObjectSchema()
	request.Properties = openapi3.Schemas{"atomic:operations": openapi3.NewSchemaRef("", operationList)}
	request.Required = []string{"atomic:operations"}

	op.RequestBody = &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().
			WithRequired(true).
			WithContent(openapi3.NewContentWithSchema(request, []string{document.MediaType})),
	}

	results := openapi3.NewObjectSchema().
		WithProperty("atomic:results", openapi3.NewArraySchema())
	response := openapi3.NewResponse().
		WithDescription("operation results").
		WithContent(openapi3.NewContentWithSchema(results, []string{document.MediaType}))
	op.AddResponse(http.StatusOK, response)
	op.AddResponse(http.StatusBadRequest, errorResponse())

	doc.Paths.Set("/operations", &openapi3.PathItem{Post: op})
}

func idParameter() *openapi3.Parameter {
	return openapi3.NewPathParameter("id").WithSchema(openapi3.NewStringSchema())
}

func relParameter(s *schema.Schema) *openapi3.Parameter {
	relSchema := openapi3.NewStringSchema()
	names := s.RelationshipNames()
	enum := make([]any, len(names))
	for i, name := range names {
		enum[i] = name
	}
	relSchema.Enum = enum
	return openapi3.NewPathParameter("rel").WithSchema(relSchema)
}

// addQueryParameters declares the JSON:API collection query parameters.
// Bracketed families (filter[x], page[x], fields[x]) are described loosely
// because their keys depend on the schema and the request.
func addQueryParameters(op *openapi3.Operation) {
	op.AddParameter(openapi3.NewQueryParameter("filter").WithSchema(openapi3.NewStringSchema()))
	op.AddParameter(openapi3.NewQueryParameter("sort").WithSchema(openapi3.NewStringSchema()))
	op.AddParameter(openapi3.NewQueryParameter("include").WithSchema(openapi3.NewStringSchema()))
	op.AddParameter(openapi3.NewQueryParameter("page[number]").WithSchema(openapi3.NewIntegerSchema()))
	op.AddParameter(openapi3.NewQueryParameter("page[size]").WithSchema(openapi3.NewIntegerSchema()))
	op.AddParameter(openapi3.NewQueryParameter("page[offset]").WithSchema(openapi3.NewIntegerSchema()))
	op.AddParameter(openapi3.NewQueryParameter("page[limit]").WithSchema(openapi3.NewIntegerSchema()))
}

func jsonapiResponse(componentName, description string) *openapi3.Response {
	return openapi3.NewResponse().
		WithDescription(description).
		WithContent(openapi3.NewContentWithSchemaRef(componentRef(componentName), []string{document.MediaType}))
}

func jsonapiComponentResponse(componentName, description string) *openapi3.Response {
	return jsonapiResponse(componentName, description)
}

func errorResponse() *openapi3.Response {
	return openapi3.NewResponse().
		WithDescription("error document").
		WithContent(openapi3.NewContentWithSchemaRef(componentRef("errorDocument"), []string{document.MediaType}))
}

func jsonapiRequestBody(componentName string) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().
			WithRequired(true).
			WithContent(openapi3.NewContentWithSchemaRef(componentRef(componentName), []string{document.MediaType})),
	}
}

// attrSchema maps an attribute's Go type onto an OpenAPI schema.
func attrSchema(t reflect.Type) *openapi3.Schema {
	if t == nil {
		return openapi3.NewSchema()
	}
	if t.Kind() == reflect.Pointer {
		s := attrSchema(t.Elem())
		s.Nullable = true
		return s
	}

	if t == reflect.TypeFor[time.Time]() {
		return openapi3.NewDateTimeSchema()
	}

	switch t.Kind() {
	case reflect.String:
		return openapi3.NewStringSchema()
	case reflect.Bool:
		return openapi3.NewBoolSchema()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return openapi3.NewIntegerSchema()
	case reflect.Float32, reflect.Float64:
		return openapi3.NewFloat64Schema()
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return openapi3.NewBytesSchema()
		}
		items := attrSchema(t.Elem())
		list := openapi3.NewArraySchema()
		list.Items = openapi3.NewSchemaRef("", items)
		return list
	case reflect.Map:
		return openapi3.NewObjectSchema()
	case reflect.Struct:
		obj := openapi3.NewObjectSchema()
		obj.Properties = openapi3.Schemas{}
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name := jsonFieldName(field)
			if name == "-" {
				continue
			}
			obj.Properties[name] = openapi3.NewSchemaRef("", attrSchema(field.Type))
		}
		return obj
	default:
		return openapi3.NewSchema()
	}
}

func jsonFieldName(field reflect.StructField) string {
	tag, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if tag == "" {
		return field.Name
	}
	return tag
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
