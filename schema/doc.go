// Package schema reflects JSON:API resource schemas from plain Go structs
// and keeps them in a registry shared by the query, storage, resource, and
// openapi packages.
//
// A resource struct declares its wire format with jsonapi struct tags and
// its storage mapping with db tags (sqlx convention):
//
//	type Article struct {
//	    ID        string    `jsonapi:"primary,articles"`
//	    Title     string    `jsonapi:"attr,title"`
//	    Body      string    `jsonapi:"attr,body,omitempty"`
//	    Tags      []string  `jsonapi:"attr,tags"`
//	    CreatedAt time.Time `jsonapi:"attr,created-at,readonly" db:"created_at"`
//	    Author    *Author   `jsonapi:"relation,author,toone"`
//	    Comments  []Comment `jsonapi:"relation,comments,fk=article_id"`
//	}
//
// Column names default to the snake_case form of the attribute name. To-one
// relationships map to a foreign-key column on the resource's own table
// (default "<name>_id"), to-many relationships to a foreign-key column on
// the related table.
package schema
