package exporter

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kiseki"
)

func TestElasticsearchBulkPayload(t *testing.T) {
	var gotPath, gotAuth string
	var lines []json.RawMessage

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		sc := bufio.NewScanner(r.Body)
		for sc.Scan() {
			lines = append(lines, append(json.RawMessage(nil), sc.Bytes()...))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errors":false,"items":[]}`))
	}))
	defer srv.Close()

	e := NewElasticsearch(ElasticsearchConfig{Hosts: []string{srv.URL}, APIKey: "abc"})
	ok := e.ExportBatch(context.Background(), []kiseki.SpanData{testSpan("one"), testSpan("two")})
	require.True(t, ok)

	assert.Equal(t, "/_bulk", gotPath)
	assert.Equal(t, "ApiKey abc", gotAuth)

	// Action line + document line per span.
	require.Len(t, lines, 4)
	var action map[string]map[string]string
	require.NoError(t, json.Unmarshal(lines[0], &action))
	assert.Equal(t, "genai-traces", action["index"]["_index"])

	var doc map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &doc))
	assert.Equal(t, "one", doc["name"])
}

func TestElasticsearchItemErrorsAreFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"errors":true,"items":[]}`))
	}))
	defer srv.Close()

	e := NewElasticsearch(ElasticsearchConfig{Hosts: []string{srv.URL}})
	assert.False(t, e.Export(context.Background(), testSpan("x")))
}

func TestElasticsearchBasicAuth(t *testing.T) {
	var user, pass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ = r.BasicAuth()
		_, _ = w.Write([]byte(`{"errors":false}`))
	}))
	defer srv.Close()

	e := NewElasticsearch(ElasticsearchConfig{Hosts: []string{srv.URL}, Username: "elastic", Password: "pw"})
	require.True(t, e.Export(context.Background(), testSpan("x")))
	assert.Equal(t, "elastic", user)
	assert.Equal(t, "pw", pass)
}

func TestElasticsearchRoundRobin(t *testing.T) {
	e := NewElasticsearch(ElasticsearchConfig{Hosts: []string{"http://a:9200/", "http://b:9200"}})
	assert.Equal(t, "http://a:9200", e.host())
	assert.Equal(t, "http://b:9200", e.host())
	assert.Equal(t, "http://a:9200", e.host())
}

func TestElasticsearchHealthCheck(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := NewElasticsearch(ElasticsearchConfig{Hosts: []string{srv.URL}})
	assert.True(t, e.HealthCheck(context.Background()))
	assert.Equal(t, "/_cluster/health", gotPath)
}
