package web_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oslokommune/okdata-permission-api/internal/webhook"
)

const tokensPath = "/webhooks/" + datasetID + "/tokens"

func TestWebhookTokens(t *testing.T) {
	f := setup(t)
	f.createDataset(t, janeOwner())

	status, raw := f.do(t, http.MethodPost, tokensPath, "homersimpson", map[string]string{"operation": "read"})
	require.Equal(t, http.StatusForbidden, status, string(raw))
	assert.JSONEq(t, `{"message":"Forbidden"}`, string(raw))

	status, raw = f.do(t, http.MethodPost, tokensPath, "janedoe", map[string]string{"operation": "read"})
	require.Equal(t, http.StatusCreated, status, string(raw))

	created := decode[webhook.Token](t, raw)
	assert.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.Secret)
	assert.Equal(t, datasetID, created.DatasetID)
	assert.Equal(t, webhook.OperationRead, created.Operation)
	assert.Equal(t, "janedoe", created.CreatedBy)
	assert.True(t, created.IsActive)

	status, raw = f.do(t, http.MethodGet, tokensPath, "homersimpson", nil)
	assert.Equal(t, http.StatusForbidden, status, string(raw))

	status, raw = f.do(t, http.MethodGet, tokensPath, "janedoe", nil)
	require.Equal(t, http.StatusOK, status, string(raw))

	listed := decode[[]webhook.Token](t, raw)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)
	assert.Empty(t, listed[0].Secret)

	authorize := tokensPath + "/" + created.Secret + "/authorize"

	status, raw = f.do(t, http.MethodGet, authorize+"?operation=read", "homersimpson", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.JSONEq(t, `{"access":true,"reason":null}`, string(raw))

	status, raw = f.do(t, http.MethodGet, authorize+"?operation=write", "homersimpson", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.JSONEq(t, `{
		"access": false,
		"reason": "Provided token does not have access to perform write on `+datasetID+`"
	}`, string(raw))

	status, raw = f.do(t, http.MethodDelete, tokensPath+"/"+created.ID, "janedoe", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.JSONEq(t, `{"message":"Deleted `+created.ID+` for dataset `+datasetID+`"}`, string(raw))

	status, raw = f.do(t, http.MethodDelete, tokensPath+"/"+created.ID, "janedoe", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.JSONEq(t, `{"message":"Provided token does not exist for dataset `+datasetID+`"}`, string(raw))

	status, raw = f.do(t, http.MethodGet, authorize+"?operation=read", "homersimpson", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.JSONEq(t, `{
		"access": false,
		"reason": "Provided token is not associated to dataset-id: `+datasetID+`"
	}`, string(raw))
}

func TestWebhookTokenValidation(t *testing.T) {
	f := setup(t)
	f.createDataset(t, janeOwner())

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   string
	}{
		{
			name:   "unknown operation",
			method: http.MethodPost,
			path:   tokensPath,
			body:   map[string]string{"operation": "cake"},
			want: `{"message":"Bad Request","errors":[{"loc":["body","operation"],` +
				`"msg":"value is not a valid enumeration member; permitted: 'read', 'write'"}]}`,
		},
		{
			name:   "missing operation",
			method: http.MethodPost,
			path:   tokensPath,
			body:   map[string]string{"operationzz": "read"},
			want:   `{"message":"Bad Request","errors":[{"loc":["body","operation"],"msg":"field required"}]}`,
		},
		{
			name:   "unknown authorize operation",
			method: http.MethodGet,
			path:   tokensPath + "/secret/authorize?operation=cake",
			want: `{"message":"Bad Request","errors":[{"loc":["query","operation"],` +
				`"msg":"value is not a valid enumeration member; permitted: 'read', 'write'"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := f.do(t, tt.method, tt.path, "janedoe", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}

func TestWebhookTokensUnknownDataset(t *testing.T) {
	f := setup(t)

	status, raw := f.do(t, http.MethodGet, "/webhooks/nope/tokens", "janedoe", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `{"message":"Resource with id [okdata:dataset:nope] does not exist."}`, string(raw))
}
