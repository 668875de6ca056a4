package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ncats/chp/internal/apperr"
	"ncats/chp/internal/reasoner"
	"ncats/chp/internal/testkit"
	"ncats/chp/internal/translator"
)

const minimalRequest = `{
	"query_graph": {
		"nodes": [
			{"id": "n0", "type": "Gene", "curie": "ENSEMBL:ENSG00000132155"},
			{"id": "n1", "type": "disease", "curie": "MONDO:0007254"},
			{"id": "n2", "type": "PhenotypicFeature", "curie": "EFO:0000714"}
		],
		"edges": [
			{"id": "e0", "type": "gene_to_disease_association", "source_id": "n0", "target_id": "n1"},
			{"id": "e1", "type": "disease_to_phenotype_association", "value": 970, "source_id": "n1", "target_id": "n2"}
		]
	}
}`

func newServer(t *testing.T) *Server {
	t.Helper()
	h, table := testkit.Population(t)
	return New(reasoner.New(h, table), Options{Vocabulary: translator.DefaultVocabulary()})
}

func TestQuery(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodPost, "/query?source_ara=ranking", strings.NewReader(minimalRequest))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var out translator.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotNil(t, out.KnowledgeGraph)

	var found int
	for _, e := range out.KnowledgeGraph.Edges {
		if e.Type == translator.EdgeDiseaseToPhenotype {
			found++
			require.NotNil(t, e.HasConfidenceLevel)
			assert.InDelta(t, 2.0/3, *e.HasConfidenceLevel, 1e-12)
		}
	}
	assert.Equal(t, 1, found)
}

func TestQueryValidationError(t *testing.T) {
	s := newServer(t)
	body := `{"query_graph": {"nodes": [{"id": "n1", "type": "PhenotypicFeature", "curie": "EFO:0000714"}], "edges": []}}`
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var e errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, apperr.CodeInputValidation, e.ErrorCode)
	assert.Contains(t, e.Message, "Disease node not found")
}

func TestQueryMalformedBody(t *testing.T) {
	s := newServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader("not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotZero(t, body["snodes"])
}

func TestMetrics(t *testing.T) {
	s := newServer(t)
	s.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chp_http_requests_total")
}

func TestMethodNotAllowed(t *testing.T) {
	s := newServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/query", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
