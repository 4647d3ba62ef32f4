package responder

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/drblury/jsonapiweaver/document"
	"github.com/drblury/jsonapiweaver/query"
)

func (r *Responder) statusMetaFor(status int) statusMeta {
	meta, ok := r.statusMetadata[status]
	if !ok {
		meta = statusMeta{}
	}
	return normalizeStatusMeta(status, meta)
}

// buildErrorDocument renders the error as a JSON:API error document. The
// error object id doubles as the correlation id written to the log record.
func (r *Responder) buildErrorDocument(status int, err error, meta statusMeta) (*document.ErrorDocument, string) {
	traceID := newTraceID()

	obj := document.NewError(status, meta.title, err.Error())
	obj.ID = traceID
	obj = withErrorSource(obj, err)

	doc := document.NewErrorDocument(obj)
	doc.Meta = document.Meta{"timestamp": time.Now().UTC().Format(time.RFC3339)}
	return doc, traceID
}

// withErrorSource fills the source member from the typed request errors the
// query parser and document parser produce.
func withErrorSource(obj document.ErrorObject, err error) document.ErrorObject {
	var queryErr *query.Error
	if errors.As(err, &queryErr) && queryErr.Parameter != "" {
		obj.Detail = queryErr.Detail
		return obj.WithParameter(queryErr.Parameter)
	}

	var requestErr *document.RequestError
	if errors.As(err, &requestErr) && requestErr.Pointer != "" {
		obj.Detail = requestErr.Detail
		return obj.WithPointer(requestErr.Pointer)
	}

	return obj
}

func (r *Responder) logProblem(req *http.Request, meta statusMeta, err error, traceID string, status int, msgs []string) {
	logger := r.logger().With("error", err.Error(), "traceId", traceID, "status", status)
	if len(msgs) > 0 {
		logger = logger.With("logMessages", msgs)
	}
	logger.Log(requestContext(req), meta.logLevel, meta.logMsg)
}

func normalizeStatusMeta(status int, meta statusMeta) statusMeta {
	if meta.logLevel == 0 {
		meta.logLevel = slog.LevelError
	}
	if meta.title == "" {
		meta.title = http.StatusText(status)
	}
	if meta.logMsg == "" {
		meta.logMsg = meta.title
	}
	return meta
}
