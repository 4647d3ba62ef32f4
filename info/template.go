package info

import "html/template"

// UIType selects which embedded OpenAPI documentation viewer is rendered by
// GetOpenAPIHTML.
type UIType string

const (
	UIStoplight UIType = "stoplight"
	UIScalar    UIType = "scalar"
	UISwaggerUI UIType = "swaggerui"
	UIRedoc     UIType = "redoc"
)

var templateStoplight = template.Must(template.New("openapi-stoplight").Parse(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8">
    <title>API Documentation</title>
    <script src="https://unpkg.com/@stoplight/elements/web-components.min.js"></script>
    <link rel="stylesheet" href="https://unpkg.com/@stoplight/elements/styles.min.css">
  </head>
  <body>
    <elements-api
      apiDescriptionUrl="{{.BaseURL}}/info/openapi.json"
      router="hash"
      layout="sidebar"
    />
  </body>
</html>
`))

var templateScalar = template.Must(template.New("openapi-scalar").Parse(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8">
    <title>API Documentation</title>
  </head>
  <body>
    <script id="api-reference" data-url="{{.BaseURL}}/info/openapi.json"></script>
    <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
  </body>
</html>
`))

var templateSwaggerUI = template.Must(template.New("openapi-swaggerui").Parse(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8">
    <title>API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist/swagger-ui.css">
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist/swagger-ui-bundle.js"></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: "{{.BaseURL}}/info/openapi.json",
          dom_id: "#swagger-ui",
        });
      };
    </script>
  </body>
</html>
`))

var templateRedoc = template.Must(template.New("openapi-redoc").Parse(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8">
    <title>API Documentation</title>
  </head>
  <body>
    <redoc spec-url="{{.BaseURL}}/info/openapi.json"></redoc>
    <script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
  </body>
</html>
`))

var defaultOpenAPITemplate = templateStoplight

// OpenAPISpecURL returns the conventional location of the OpenAPI JSON
// document relative to the given base URL.
func OpenAPISpecURL(baseURL string) string {
	return baseURL + "/info/openapi.json"
}
