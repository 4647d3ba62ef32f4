// Package query parses JSON:API query strings into a neutral Params value
// consumed by the storage layer.
//
// Filters come in two forms. The simple form uses bracketed parameters:
//
//	?filter[title]=hello
//	?filter[views][gt]=100
//
// The full form carries a JSON expression tree supporting and/or/not
// grouping and dotted names that address related-resource fields:
//
//	?filter=[{"name":"author.name","op":"ilike","val":"%smith%"}]
//	?filter=[{"or":[{"name":"views","op":"gt","val":100},
//	                {"name":"pinned","op":"eq","val":true}]}]
//
// Sorting, pagination, includes, and sparse fieldsets follow the JSON:API
// conventions: sort=-created-at,title, page[number]/page[size] or
// page[offset]/page[limit], include=author,comments.author, and
// fields[articles]=title,body.
package query
