package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/richconv/internal/config"
	"github.com/dgallion1/richconv/internal/convert"
	"github.com/dgallion1/richconv/internal/doctree"
	"github.com/dgallion1/richconv/internal/markup"
	"github.com/dgallion1/richconv/internal/pipeline"
	"github.com/dgallion1/richconv/internal/rules"
	"github.com/dgallion1/richconv/internal/schema"
	"github.com/dgallion1/richconv/internal/store"
)

const testKey = "test-key"

func testConfig() config.Config {
	return config.Config{
		APIKey:               testKey,
		WorkerCount:          1,
		MaxQueueSize:         10,
		MaxConcurrentConvert: 2,
		MaxConcurrentStore:   2,
		MaxUploadBytes:       1 << 20,
		MaxDepth:             convert.DefaultMaxDepth,
		JobTTL:               time.Hour,
	}
}

func newTestServer(t *testing.T, rs []rules.Rule) (*Server, *Metrics) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig()

	st, err := store.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	metrics := NewMetrics()
	conv := convert.New(rs, convert.WithObserver(metrics), convert.WithMaxDepth(cfg.MaxDepth))
	orch := pipeline.NewOrchestrator(cfg, conv, st, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	return NewServer(orch, conv, st, metrics, log, cfg), metrics
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthIsPublic(t *testing.T) {
	s, _ := newTestServer(t, schema.Rules())
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuth(t *testing.T) {
	s, _ := newTestServer(t, schema.Rules())

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/serialize", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/serialize", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid api key", decode(t, rec)["error"])
}

func TestDeserializeAndSerialize(t *testing.T) {
	s, _ := newTestServer(t, schema.Rules())

	rec := do(t, s, http.MethodPost, "/api/deserialize", `<p>Hello <strong>World</strong></p>`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	want := `{"nodes":[{"object":"block","type":"paragraph","nodes":[` +
		`{"object":"text","text":"Hello "},` +
		`{"object":"mark","type":"bold","nodes":[{"object":"text","text":"World"}]}]}]}`
	assert.JSONEq(t, want, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/serialize", want)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `<p>Hello <strong>World</strong></p>`, decode(t, rec)["html"])
}

func TestDeserializeMarkdown(t *testing.T) {
	s, _ := newTestServer(t, schema.Rules())
	rec := do(t, s, http.MethodPost, "/api/deserialize?format=markdown", "## Hi\n\n- a\n- b\n")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Nodes doctree.Nodes `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Nodes, 2)
	assert.Equal(t, "heading-two", doctree.TypeOf(resp.Nodes[0]))
	assert.Equal(t, schema.BulletedList, doctree.TypeOf(resp.Nodes[1]))
	assert.Len(t, doctree.ChildrenOf(resp.Nodes[1]), 2)
}

func TestDeserializeUnsupportedFormat(t *testing.T) {
	s, _ := newTestServer(t, schema.Rules())
	rec := do(t, s, http.MethodPost, "/api/deserialize?format=rtf", "x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, s, http.MethodPost, "/api/deserialize?format=pdf", "x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSerializeBadJSON(t *testing.T) {
	s, _ := newTestServer(t, schema.Rules())
	rec := do(t, s, http.MethodPost, "/api/serialize", `{"nodes":[{"object":"widget"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "invalid json")
}

func TestSerializeMinify(t *testing.T) {
	s, _ := newTestServer(t, schema.Rules())
	body := `{"nodes":[{"object":"block","type":"paragraph","nodes":[{"object":"text","text":"a   b"}]}]}`
	rec := do(t, s, http.MethodPost, "/api/serialize?minify=true", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `<p>a b</p>`, decode(t, rec)["html"])
}

func TestRuleErrorIs500(t *testing.T) {
	bad := rules.Rule{
		Name: "broken",
		Serialize: func(n doctree.Node, _ []markup.Fragment) (markup.Node, bool, error) {
			return nil, true, assert.AnError
		},
	}
	s, _ := newTestServer(t, []rules.Rule{bad})
	rec := do(t, s, http.MethodPost, "/api/serialize", `{"nodes":[{"object":"text","text":"x"}]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, assert.AnError.Error(), decode(t, rec)["error"])
}

func TestMaxDepthIs422(t *testing.T) {
	s, _ := newTestServer(t, schema.Rules())
	deep := strings.Repeat("<div>", 600) + "x" + strings.Repeat("</div>", 600)
	rec := do(t, s, http.MethodPost, "/api/deserialize", deep)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDocumentLifecycle(t *testing.T) {
	s, _ := newTestServer(t, schema.Rules())
	body := `{"title":"Notes","nodes":[{"object":"block","type":"quote","nodes":[{"object":"text","text":"Remember the milk"}]}]}`

	rec := do(t, s, http.MethodPut, "/api/documents/n1?user_id=u1", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, false, decode(t, rec)["unchanged"])

	rec = do(t, s, http.MethodPut, "/api/documents/n1?user_id=u1", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["unchanged"])

	rec = do(t, s, http.MethodGet, "/api/documents/n1?user_id=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, "Notes", got["title"])
	assert.Equal(t, "<blockquote>Remember the milk</blockquote>", got["html"])
	assert.Equal(t, "users/u1/documents/n1", got["key"])

	rec = do(t, s, http.MethodGet, "/api/documents?user_id=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Documents []struct {
			DocID   string `json:"doc_id"`
			Excerpt string `json:"excerpt"`
		} `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Documents, 1)
	assert.Equal(t, "n1", list.Documents[0].DocID)
	assert.Equal(t, "Remember the milk", list.Documents[0].Excerpt)

	rec = do(t, s, http.MethodDelete, "/api/documents/n1?user_id=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, s, http.MethodGet, "/api/documents/n1?user_id=u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocumentRequiresUser(t *testing.T) {
	s, _ := newTestServer(t, schema.Rules())
	rec := do(t, s, http.MethodGet, "/api/documents/n1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, s, http.MethodGet, "/api/documents", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImport(t *testing.T) {
	s, _ := newTestServer(t, schema.Rules())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "readme.md")
	require.NoError(t, err)
	fw.Write([]byte("# Read Me\n\nSome **bold** text.\n"))
	require.NoError(t, mw.WriteField("user_id", "u1"))
	require.NoError(t, mw.WriteField("doc_id", "readme"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import", &buf)
	req.Header.Set("Authorization", "Bearer "+testKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode(t, rec)
	assert.Equal(t, "Read Me", got["title"])
	assert.Equal(t, "<h1>Read Me</h1><p>Some <strong>bold</strong> text.</p>", got["html"])
	assert.Equal(t, "users/u1/documents/readme", got["key"])

	rec = do(t, s, http.MethodGet, "/api/documents/readme?user_id=u1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestImportUnsupported(t *testing.T) {
	s, _ := newTestServer(t, schema.Rules())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "tool.exe")
	require.NoError(t, err)
	fw.Write([]byte("MZ"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import", &buf)
	req.Header.Set("Authorization", "Bearer "+testKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatch(t *testing.T) {
	s, _ := newTestServer(t, schema.Rules())
	body := `{"user_id":"u1","store":true,"items":[
		{"doc_id":"a","content":"<p>one</p>"},
		{"doc_id":"b","format":"markdown","content":"two *x*"}
	]}`
	rec := do(t, s, http.MethodPost, "/api/batch", body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	resp := decode(t, rec)
	pollURL, _ := resp["poll_url"].(string)
	require.NotEmpty(t, pollURL)

	var snap pipeline.JobSnapshot
	require.Eventually(t, func() bool {
		rec := do(t, s, http.MethodGet, pollURL, "")
		if rec.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			return false
		}
		return snap.Status == pipeline.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, snap.Progress.ItemsStored)

	rec = do(t, s, http.MethodGet, "/api/documents/b?user_id=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<p>two <em>x</em></p>", decode(t, rec)["html"])
}

func TestBatchValidation(t *testing.T) {
	s, _ := newTestServer(t, schema.Rules())
	cases := []string{
		`{"user_id":"u1","items":[]}`,
		`{"items":[{"doc_id":"a","content":"x"}]}`,
		`{"user_id":"u1","items":[{"doc_id":"a/b","content":"x"}]}`,
		`{"user_id":"u1","items":[{"doc_id":"a","content":"x"},{"doc_id":"a","content":"y"}]}`,
	}
	for _, body := range cases {
		rec := do(t, s, http.MethodPost, "/api/batch", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec := do(t, s, http.MethodGet, "/api/batch/nope/status", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsCountFallbacks(t *testing.T) {
	s, _ := newTestServer(t, schema.Rules())
	rec := do(t, s, http.MethodPost, "/api/deserialize", `<div><span><p>x</p></span></div>`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `richconv_fallbacks_total{direction="deserialize"} 2`)
	assert.Contains(t, body, `richconv_conversions_total{direction="deserialize",outcome="ok"} 1`)
	assert.Contains(t, body, `route="/api/deserialize"`)
	assert.Contains(t, body, "richconv_batch_queue_depth 0")
}
