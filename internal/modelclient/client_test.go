package modelclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scifind-backend/internal/modelclient"
)

func TestNew_UnknownProviderErrors(t *testing.T) {
	_, err := modelclient.New(modelclient.Config{Provider: "unknown-backend"})
	assert.Error(t, err)
}

func TestOpenAIClient_Complete_ReturnsMessageContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "hello there"}},
			},
		})
	}))
	defer srv.Close()

	client, err := modelclient.New(modelclient.Config{Provider: "openai", BaseURL: srv.URL, APIKey: "test-key", ModelName: "gpt"})
	require.NoError(t, err)

	text, err := client.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
}

func TestOpenAIClient_CompleteJSON_ExtractsFromFencedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "```json\n{\"topic\": \"x\"}\n```"}},
			},
		})
	}))
	defer srv.Close()

	client, err := modelclient.New(modelclient.Config{Provider: "openai", BaseURL: srv.URL, APIKey: "test-key"})
	require.NoError(t, err)

	obj, err := client.CompleteJSON(context.Background(), "sys", "user", nil)
	require.NoError(t, err)
	assert.Equal(t, "x", obj["topic"])
}

func TestOpenAIClient_Complete_AuthErrorOn401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("invalid key"))
	}))
	defer srv.Close()

	client, err := modelclient.New(modelclient.Config{Provider: "openai", BaseURL: srv.URL, APIKey: "bad-key"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "sys", "user")
	assert.Error(t, err)
}

func TestOpenAIClient_Complete_RateLimitErrorOn429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := modelclient.New(modelclient.Config{Provider: "openai", BaseURL: srv.URL, APIKey: "test-key"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "sys", "user")
	assert.Error(t, err)
}

func TestOpenAIClient_Complete_EmptyChoicesReturnsEmptyString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []map[string]interface{}{}})
	}))
	defer srv.Close()

	client, err := modelclient.New(modelclient.Config{Provider: "openai", BaseURL: srv.URL, APIKey: "test-key"})
	require.NoError(t, err)

	text, err := client.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "", text)
}
