// Package document models JSON:API 1.0 documents: resource objects,
// relationship linkage, compound documents with included resources, and
// error documents. It builds outgoing documents from neutral storage
// records and parses incoming create/update documents against a schema.
package document
