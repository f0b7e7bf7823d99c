package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/octsel/featureflag"
	"github.com/aukilabs/octsel/grid"
	"github.com/aukilabs/octsel/models"
	"github.com/aukilabs/octsel/octree"
	"github.com/aukilabs/octsel/query"
	"github.com/aukilabs/octsel/selection"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func testRunner(t *testing.T) *query.Runner {
	tree, err := octree.New(selection.Vector3{}, selection.Vector3{1, 1, 1}, [3]int{1, 1, 1})
	require.NoError(t, err)
	require.NoError(t, tree.RefineToLevel(1))

	patches, err := grid.NewIndex(nil)
	require.NoError(t, err)

	return &query.Runner{
		Dataset: &models.Dataset{
			Name:    "test",
			Octree:  tree,
			Patches: patches,
		},
		Workers:         2,
		DefaultMaxLevel: selection.MaxLevelLimit,
		FeatureFlags:    featureflag.New(nil),
	}
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/select", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandleSelect(t *testing.T) {
	h := HandleSelect(testRunner(t), 256)

	t.Run("selects cells", func(t *testing.T) {
		w := post(t, h, `{"shape": "sphere", "center": [0.3, 0.3, 0.3], "radius": 0.01}`)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var res query.Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		require.Equal(t, selection.KindSphere, res.Shape)
		require.Len(t, res.Cells, 1)
		require.Equal(t, selection.Vector3{0.375, 0.375, 0.375}, res.Cells[0].Center)
	})

	tests := []struct {
		name    string
		method  string
		body    string
		code    int
		errType string
	}{
		{
			name:   "wrong method",
			method: http.MethodGet,
			code:   http.StatusMethodNotAllowed,
		},
		{
			name:   "malformed body",
			method: http.MethodPost,
			body:   `{"shape":`,
			code:   http.StatusBadRequest,
		},
		{
			name:   "unknown shape",
			method: http.MethodPost,
			body:   `{"shape": "torus"}`,
			code:   http.StatusBadRequest,
		},
		{
			name:   "invalid configuration",
			method: http.MethodPost,
			body:   `{"shape": "sphere", "radius": -1}`,
			code:   http.StatusBadRequest,
		},
		{
			name:    "body too large",
			method:  http.MethodPost,
			body:    `{"shape": "point", "position": [` + strings.Repeat("0.0000", 60) + `0]}`,
			code:    http.StatusRequestEntityTooLarge,
			errType: query.ErrTypeInvalidRequest,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			req := httptest.NewRequest(test.method, "/select", strings.NewReader(test.body))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			require.Equal(t, test.code, w.Code)

			if test.errType == "" {
				return
			}

			var res ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
			require.Equal(t, test.errType, res.Type)
			require.NotEmpty(t, res.Message)
		})
	}
}

func TestStatusCode(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, statusCode(errors.New("bad").WithType(query.ErrTypeInvalidRequest)))
	require.Equal(t, http.StatusBadRequest, statusCode(errors.New("bad").WithType(selection.ErrTypeConfiguration)))
	require.Equal(t, http.StatusServiceUnavailable, statusCode(errors.New("canceled").WithType(query.ErrTypeQueryCanceled)))
	require.Equal(t, http.StatusInternalServerError, statusCode(errors.New("boom")))
}

func TestHandleDataset(t *testing.T) {
	runner := testRunner(t)

	w := httptest.NewRecorder()
	HandleDataset(runner.Dataset)(w, httptest.NewRequest(http.MethodGet, "/dataset", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var summary models.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	require.Equal(t, "test", summary.Name)
	require.Equal(t, 9, summary.Octs)
}

func TestHandleWithCORS(t *testing.T) {
	called := false
	h := HandleWithCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/select", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	require.False(t, called)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/select", nil))
	require.True(t, called)
}

func TestVerifyAuthTokenHandler(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		token    string
		header   string
		url      string
		expected int
	}{
		{
			name:     "no token required",
			url:      "/select",
			expected: http.StatusOK,
		},
		{
			name:     "bearer token",
			token:    "secret",
			header:   "Bearer secret",
			url:      "/select",
			expected: http.StatusOK,
		},
		{
			name:     "wrong token",
			token:    "secret",
			header:   "Bearer guess",
			url:      "/select",
			expected: http.StatusUnauthorized,
		},
		{
			name:     "missing token",
			token:    "secret",
			url:      "/select",
			expected: http.StatusUnauthorized,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, test.url, nil)
			if test.header != "" {
				req.Header.Set("Authorization", test.header)
			}

			w := httptest.NewRecorder()
			VerifyAuthTokenHandler(test.token, ok).ServeHTTP(w, req)
			require.Equal(t, test.expected, w.Code)
		})
	}
}

func TestHandlers(t *testing.T) {
	w := httptest.NewRecorder()
	HandleHealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	HandleReadyCheck(func() bool { return false })(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	HandleVersion("v1.2.3")(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	require.Equal(t, "v1.2.3", string(body))
}

func TestMetricsPathFormatter(t *testing.T) {
	require.Equal(t, "/select", MetricsPathFormatter(http.StatusOK, "/select"))
	require.Empty(t, MetricsPathFormatter(http.StatusNotFound, "/unknown"))
	require.Empty(t, MetricsPathFormatter(http.StatusUnauthorized, "/select"))
}

func TestListenAndServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		ListenAndServe(ctx, time.Second, &http.Server{Addr: "127.0.0.1:0"})
	}()

	cancel()
	<-done
}
