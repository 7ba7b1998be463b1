package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/piecework/piecework/form/storage/inmem"
	"github.com/piecework/piecework/model"

	"github.com/alexedwards/flow"
	"github.com/micromdm/nanolib/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAPI(t *testing.T) {
	ctx := context.Background()
	store := inmem.New()
	require.NoError(t, store.StoreRequest(ctx, &model.FormRequest{
		RequestID:            "r1",
		ProcessDefinitionKey: "demo",
		Action:               model.ActionCreate,
		RequestDate:          time.Now(),
	}))
	require.NoError(t, store.StoreSubmission(ctx, &model.Submission{
		ID:             "s1",
		RequestID:      "r1",
		Action:         model.ActionComplete,
		RestrictedData: map[string][]string{"ssn": {"123"}},
	}))

	mux := flow.New()
	HandleAPIv1("/v1", mux, log.NopLogger, store)

	for _, tc := range []struct {
		path     string
		status   int
		contains string
	}{
		{"/v1/request/r1", http.StatusOK, `"request_id":"r1"`},
		{"/v1/request/nope", http.StatusNotFound, "not found"},
		{"/v1/submission/s1", http.StatusOK, `"ssn"`},
		{"/v1/validation/nope", http.StatusNotFound, "not found"},
	} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", tc.path, nil))
		assert.Equal(t, tc.status, rec.Code, tc.path)
		assert.Contains(t, rec.Body.String(), tc.contains, tc.path)
	}
}
