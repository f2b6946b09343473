package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abrahaamv/ifinallywill-sub004/internal/config"
)

type stubProbe struct{ up bool }

func (s stubProbe) Available(_ context.Context) bool { return s.up }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Routing.ModelEndpoint = "http://localhost:1/v1/chat/completions"
	return cfg
}

func TestCheckDataDir_WritableDirPasses(t *testing.T) {
	c := New(testConfig(t))

	r := c.CheckDataDir()

	assert.Equal(t, StatusPass, r.Status)
	assert.True(t, r.Required)
}

func TestCheckDataDir_CreatesMissingDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataDir = cfg.DataDir + "/nested/data"
	c := New(cfg)

	r := c.CheckDataDir()

	assert.Equal(t, StatusPass, r.Status)
}

func TestCheckThresholds(t *testing.T) {
	tests := []struct {
		name    string
		fast    float64
		capable float64
		want    Status
	}{
		{"defaults pass", 0.3, 0.7, StatusPass},
		{"inverted bands fail", 0.7, 0.3, StatusFail},
		{"zero fast fails", 0, 0.7, StatusFail},
		{"capable at one fails", 0.3, 1.0, StatusFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Routing.FastThreshold = tt.fast
			cfg.Routing.CapableThreshold = tt.capable

			r := New(cfg).CheckThresholds()

			assert.Equal(t, tt.want, r.Status)
		})
	}
}

func TestCheckEmbedder_DownIsWarningNotFailure(t *testing.T) {
	c := New(testConfig(t), WithEmbedder(stubProbe{up: false}))

	r := c.CheckEmbedder(context.Background())

	assert.Equal(t, StatusWarn, r.Status)
	assert.False(t, r.Required)
	assert.False(t, r.IsCritical())
}

func TestCheckEmbedder_UpPasses(t *testing.T) {
	c := New(testConfig(t), WithEmbedder(stubProbe{up: true}))

	r := c.CheckEmbedder(context.Background())

	assert.Equal(t, StatusPass, r.Status)
}

func TestCheckModelEndpoint_MissingEndpointIsCritical(t *testing.T) {
	cfg := testConfig(t)
	cfg.Routing.ModelEndpoint = ""

	r := New(cfg).CheckModelEndpoint(context.Background())

	assert.True(t, r.IsCritical())
}

func TestCheckModelEndpoint_AnyHTTPResponseCounts(t *testing.T) {
	// A completion endpoint typically rejects HEAD; reachability is all
	// this check claims.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Routing.ModelEndpoint = srv.URL

	r := New(cfg).CheckModelEndpoint(context.Background())

	assert.Equal(t, StatusPass, r.Status)
}

func TestRun_SkipsRerankerWhenDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Rerank.Enabled = false

	results := New(cfg).Run(context.Background())

	for _, r := range results {
		require.NotEqual(t, "reranker", r.Name)
	}
}

func TestRun_IncludesRerankerWhenEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Rerank.Enabled = true

	results := New(cfg, WithReranker(stubProbe{up: true})).Run(context.Background())

	var found bool
	for _, r := range results {
		if r.Name == "reranker" {
			found = true
			assert.Equal(t, StatusPass, r.Status)
		}
	}
	assert.True(t, found)
}

func TestHasCriticalFailures(t *testing.T) {
	assert.False(t, HasCriticalFailures([]Result{
		{Name: "embedder", Status: StatusFail, Required: false},
		{Name: "data_dir", Status: StatusPass, Required: true},
	}))
	assert.True(t, HasCriticalFailures([]Result{
		{Name: "data_dir", Status: StatusFail, Required: true},
	}))
}
