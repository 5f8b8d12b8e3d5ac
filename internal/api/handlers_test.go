package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshishSingh1503/HelixMind/internal/annotation"
	"github.com/AshishSingh1503/HelixMind/internal/config"
	"github.com/AshishSingh1503/HelixMind/internal/domain"
	"github.com/AshishSingh1503/HelixMind/internal/pipeline"
	"github.com/AshishSingh1503/HelixMind/internal/risk"
	"github.com/AshishSingh1503/HelixMind/internal/service"
	"github.com/AshishSingh1503/HelixMind/internal/storage"
	"github.com/AshishSingh1503/HelixMind/internal/vcf"
)

const testVCF = `##fileformat=VCFv4.2
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO
17	43044295	rs1	A	G	35.0	PASS	.
1	1014143	rs2	C	T	60.0	PASS	.
`

type testEnv struct {
	server *Server
	store  *storage.MemoryStore
	runner *service.Runner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Upload: config.UploadConfig{Dir: t.TempDir(), MaxFileSize: 1 << 20},
		Auth:   config.AuthConfig{Secret: "test-secret", TokenTTL: 30 * time.Minute},
		Logging: config.LoggingConfig{
			Level:  "error",
			Format: "json",
		},
	}

	store := storage.NewMemoryStore()
	scorer, err := risk.NewWeightedScorer(risk.DefaultArtifact(), logger)
	require.NoError(t, err)

	pl := pipeline.New(
		vcf.NewExtractor(logger),
		annotation.NewAnnotator(annotation.DefaultGeneTable()),
		scorer,
		logger,
	)

	authService := service.NewAuthService(store, cfg.Auth.Secret, cfg.Auth.TokenTTL, logger)
	analysisService := service.NewAnalysisService(store, pl, nil, cfg.Upload.Dir, logger)

	runner := service.NewRunner(1, 4, analysisService.Process, logger)
	analysisService.SetRunner(runner)
	runner.Start(context.Background())
	t.Cleanup(runner.Stop)

	return &testEnv{
		server: NewServer(cfg, authService, analysisService, store, logger),
		store:  store,
		runner: runner,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

func (e *testEnv) registerAndLogin(t *testing.T, username string) string {
	t.Helper()

	body := fmt.Sprintf(`{"username":%q,"email":"%s@example.com","password":"s3cret-pass"}`, username, username)
	w := e.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	creds := fmt.Sprintf(`{"username":%q,"password":"s3cret-pass"}`, username)
	w = e.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(creds)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func (e *testEnv) uploadVCF(t *testing.T, token, filename, content string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return e.do(req)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRegister_InvalidPayload(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(`{"username":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrCodeInvalidInput)
}

func TestRegister_DuplicateConflict(t *testing.T) {
	env := newTestEnv(t)
	env.registerAndLogin(t, "alice")

	body := `{"username":"alice","email":"alice2@example.com","password":"s3cret-pass"}`
	w := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestToken_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.registerAndLogin(t, "alice")

	w := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(`{"username":"alice","password":"wrong"}`)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := env.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp userResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.Username)
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	env := newTestEnv(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/auth/me"},
		{http.MethodPost, "/api/v1/analysis/upload"},
		{http.MethodGet, "/api/v1/analysis/results/some-id"},
		{http.MethodGet, "/api/v1/analysis/history"},
		{http.MethodDelete, "/api/v1/analysis/results/some-id"},
	}

	for _, p := range paths {
		w := env.do(httptest.NewRequest(p.method, p.path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", p.method, p.path)
	}
}

func TestAuthenticate_RejectsGarbageToken(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := env.do(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpload_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice")

	w := env.uploadVCF(t, token, "sample.vcf", testVCF)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AnalysisID)
	assert.Equal(t, string(domain.StatusPending), resp.Status)

	// Let the background runner finish.
	env.runner.Stop()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/results/"+resp.AnalysisID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var rec domain.AnalysisResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, domain.StatusCompleted, rec.Status)
	assert.Equal(t, 2, rec.TotalVariants)
	assert.Equal(t, 1, rec.HighRiskVariants)
}

func TestUpload_RejectsNonVCF(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice")

	w := env.uploadVCF(t, token, "sample.txt", "not a vcf")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), ".vcf")
}

func TestUpload_MissingFile(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/upload", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := env.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetResults_NotFoundAndForbidden(t *testing.T) {
	env := newTestEnv(t)
	alice := env.registerAndLogin(t, "alice")
	bob := env.registerAndLogin(t, "bob")

	w := env.uploadVCF(t, alice, "sample.vcf", testVCF)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/results/does-not-exist", nil)
	req.Header.Set("Authorization", "Bearer "+alice)
	assert.Equal(t, http.StatusNotFound, env.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/analysis/results/"+resp.AnalysisID, nil)
	req.Header.Set("Authorization", "Bearer "+bob)
	assert.Equal(t, http.StatusForbidden, env.do(req).Code)
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice")

	require.Equal(t, http.StatusAccepted, env.uploadVCF(t, token, "a.vcf", testVCF).Code)
	require.Equal(t, http.StatusAccepted, env.uploadVCF(t, token, "b.vcf", testVCF).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/history", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := env.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Analyses []domain.AnalysisResult `json:"analyses"`
		Count    int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.Analyses, 2)
}

func TestDeleteAnalysis_API(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice")

	w := env.uploadVCF(t, token, "sample.vcf", testVCF)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	env.runner.Stop()

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/analysis/results/"+resp.AnalysisID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, env.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/analysis/results/"+resp.AnalysisID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusNotFound, env.do(req).Code)
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestCORSPreflights(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodOptions, "/api/v1/auth/token", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
