package document

import "strconv"

// ErrorSource points at the part of the request that caused an error.
type ErrorSource struct {
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

// ErrorObject is a JSON:API error object.
type ErrorObject struct {
	ID     string       `json:"id,omitempty"`
	Status string       `json:"status,omitempty"`
	Code   string       `json:"code,omitempty"`
	Title  string       `json:"title,omitempty"`
	Detail string       `json:"detail,omitempty"`
	Source *ErrorSource `json:"source,omitempty"`
	Meta   Meta         `json:"meta,omitempty"`
}

// ErrorDocument is a top-level document whose primary member is errors.
type ErrorDocument struct {
	JSONAPI VersionObject `json:"jsonapi"`
	Errors  []ErrorObject `json:"errors"`
	Meta    Meta          `json:"meta,omitempty"`
}

// NewErrorDocument wraps the error objects in a top-level document.
func NewErrorDocument(errs ...ErrorObject) *ErrorDocument {
	return &ErrorDocument{
		JSONAPI: VersionObject{Version: Version},
		Errors:  errs,
	}
}

// NewError builds an error object for the given HTTP status.
func NewError(status int, title, detail string) ErrorObject {
	return ErrorObject{
		Status: strconv.Itoa(status),
		Title:  title,
		Detail: detail,
	}
}

// WithParameter attaches a query-parameter source to the error object.
func (e ErrorObject) WithParameter(parameter string) ErrorObject {
	e.Source = &ErrorSource{Parameter: parameter}
	return e
}

// WithPointer attaches a JSON-pointer source to the error object.
func (e ErrorObject) WithPointer(pointer string) ErrorObject {
	e.Source = &ErrorSource{Pointer: pointer}
	return e
}
