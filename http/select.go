package http

import (
	"io"
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	httpcmn "github.com/aukilabs/hagall-common/http"
	"github.com/aukilabs/octsel/models"
	"github.com/aukilabs/octsel/query"
	"github.com/segmentio/encoding/json"
)

// DefaultMaxRequestSize is the max size of a query body.
const DefaultMaxRequestSize = 1 << 20

// ErrorResponse is the body of the failed requests that are neither bad
// requests nor internal errors.
type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// HandleSelect runs the JSON query posted in the request body and answers the
// selected cells.
func HandleSelect(runner *query.Runner, maxRequestSize int64) http.HandlerFunc {
	if maxRequestSize <= 0 {
		maxRequestSize = DefaultMaxRequestSize
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("reading request body failed").
				WithType(query.ErrTypeInvalidRequest).
				Wrap(err))
			return
		}

		if int64(len(body)) > maxRequestSize {
			writeError(w, http.StatusRequestEntityTooLarge, errors.New("request body is too large").
				WithType(query.ErrTypeInvalidRequest).
				WithTag("max_size", maxRequestSize))
			return
		}

		var req query.Request
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, errors.New("decoding request failed").
				WithType(query.ErrTypeInvalidRequest).
				Wrap(err))
			return
		}

		res, err := runner.Run(r.Context(), req)
		if err != nil {
			writeError(w, statusCode(err), err)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}

// HandleDataset answers the description of the dataset.
func HandleDataset(d *models.Dataset) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Summary())
	}
}

func statusCode(err error) int {
	switch {
	case query.IsClientError(err):
		return http.StatusBadRequest

	case errors.IsType(err, query.ErrTypeQueryCanceled):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	switch code {
	case http.StatusBadRequest:
		logs.Debug(err)
		httpcmn.BadRequest(w, err)
		return

	case http.StatusInternalServerError:
		logs.Error(err)
		httpcmn.InternalServerError(w, err)
		return
	}

	logs.Warn(err)
	writeJSON(w, code, ErrorResponse{
		Type:    errors.Type(err),
		Message: err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logs.Error(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}
