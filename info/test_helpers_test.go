package info

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/drblury/jsonapiweaver/document"
)

func decodeProbePayload(t *testing.T, body []byte) probePayload {
	t.Helper()

	var payload probePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("failed to decode probe payload: %v (body: %s)", err, string(body))
	}
	return payload
}

// decodedError is the flattened first error object of a JSON:API error
// document, which is what the responder emits for failures.
type decodedError struct {
	Status int
	Detail string
}

func decodeErrorDocument(t *testing.T, body []byte) decodedError {
	t.Helper()

	var doc document.ErrorDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("failed to decode error document: %v (body: %s)", err, string(body))
	}
	if len(doc.Errors) == 0 {
		t.Fatalf("expected at least one error object (body: %s)", string(body))
	}

	status, err := strconv.Atoi(doc.Errors[0].Status)
	if err != nil {
		t.Fatalf("error object status is not numeric: %q", doc.Errors[0].Status)
	}
	return decodedError{Status: status, Detail: doc.Errors[0].Detail}
}
