package es

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qa-smart-go/internal/config"
	"qa-smart-go/internal/model"
)

type recorded struct {
	method string
	path   string
	body   string
}

// fakeCluster 模拟一个只有 existing 中索引的 Elasticsearch。
func fakeCluster(t *testing.T, existing map[string]bool) (*elasticsearch.Client, *[]recorded) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recorded{method: r.Method, path: r.URL.Path, body: string(raw)})
		mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodHead {
			if existing[r.URL.Path[1:]] {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusNotFound)
			}
			return
		}
		_, _ = io.WriteString(w, `{"acknowledged":true,"result":"created"}`)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(config.ElasticsearchConfig{Addresses: srv.URL})
	require.NoError(t, err)
	return client, &reqs
}

func TestCreateIndexIfNotExists_Creates(t *testing.T) {
	client, reqs := fakeCluster(t, nil)

	require.NoError(t, CreateIndexIfNotExists(context.Background(), client, "questions"))
	require.Len(t, *reqs, 2)
	assert.Equal(t, http.MethodHead, (*reqs)[0].method)
	assert.Equal(t, http.MethodPut, (*reqs)[1].method)
	assert.Equal(t, "/questions", (*reqs)[1].path)

	var mapping map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte((*reqs)[1].body), &mapping))
	props := mapping["mappings"].(map[string]interface{})["properties"].(map[string]interface{})
	assert.Equal(t, "keyword", props["tags"].(map[string]interface{})["type"])
}

func TestCreateIndexIfNotExists_Existing(t *testing.T) {
	client, reqs := fakeCluster(t, map[string]bool{"questions": true})

	require.NoError(t, CreateIndexIfNotExists(context.Background(), client, "questions"))
	assert.Len(t, *reqs, 1)
}

func TestIndexQuestion(t *testing.T) {
	client, reqs := fakeCluster(t, nil)
	doc := model.QuestionDocument{
		QuestionID: 7,
		Title:      "Go channels",
		Tags:       []string{"tag9"},
		UpdatedAt:  time.Unix(1700000000, 0).UTC(),
	}

	require.NoError(t, IndexQuestion(context.Background(), client, "questions", doc))
	require.Len(t, *reqs, 1)
	assert.Equal(t, http.MethodPut, (*reqs)[0].method)
	assert.Equal(t, "/questions/_doc/7", (*reqs)[0].path)

	var got model.QuestionDocument
	require.NoError(t, json.Unmarshal([]byte((*reqs)[0].body), &got))
	assert.Equal(t, doc, got)
}
