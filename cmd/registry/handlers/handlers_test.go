package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackforge/terraform-registry/cmd/registry/models"
	"github.com/stackforge/terraform-registry/cmd/registry/repository"
	"github.com/stackforge/terraform-registry/cmd/registry/service"
	"github.com/stackforge/terraform-registry/common/bootstrap"
	"github.com/stackforge/terraform-registry/common/config"
	"github.com/stackforge/terraform-registry/common/logger"
	"github.com/stackforge/terraform-registry/common/policy"
	"github.com/stackforge/terraform-registry/common/storage"
)

// fakeMeta is an in-memory stand-in for both metadata repositories
type fakeMeta struct {
	mu       sync.Mutex
	modules  map[string]*models.Module
	versions map[string][]*models.ModuleVersion
}

func newFakeMeta() *fakeMeta {
	return &fakeMeta{
		modules:  make(map[string]*models.Module),
		versions: make(map[string][]*models.ModuleVersion),
	}
}

func (f *fakeMeta) GetByTriple(ctx context.Context, namespace, name, provider string) (*models.Module, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.modules[models.ModuleID(namespace, name, provider)], nil
}

func (f *fakeMeta) Search(ctx context.Context, query, namespace, provider string, limit, offset int) ([]*models.Module, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Module
	for _, m := range f.modules {
		if query != "" && !strings.Contains(m.Name, query) {
			continue
		}
		if namespace != "" && m.Namespace != namespace {
			continue
		}
		if provider != "" && m.Provider != provider {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeMeta) ListByModule(ctx context.Context, moduleID string) ([]*models.ModuleVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.ModuleVersion(nil), f.versions[moduleID]...), nil
}

func (f *fakeMeta) GetByVersion(ctx context.Context, moduleID, version string) (*models.ModuleVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.versions[moduleID] {
		if v.Version == version {
			return v, nil
		}
	}
	return nil, nil
}

func (f *fakeMeta) Exists(ctx context.Context, moduleID, version string) (bool, error) {
	v, _ := f.GetByVersion(ctx, moduleID, version)
	return v != nil, nil
}

func (f *fakeMeta) CreateWithModule(ctx context.Context, module *models.Module, v *models.ModuleVersion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.modules[module.ID]; !ok {
		f.modules[module.ID] = module
	}
	for _, existing := range f.versions[module.ID] {
		if existing.Version == v.Version {
			return repository.ErrDuplicateVersion
		}
	}
	f.versions[module.ID] = append(f.versions[module.ID], v)
	return nil
}

func (f *fakeMeta) UpdateDocumentation(ctx context.Context, versionID string, docs map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, vs := range f.versions {
		for _, v := range vs {
			if v.ID == versionID {
				v.Documentation = docs
				return nil
			}
		}
	}
	return nil
}

type testServer struct {
	echo  *echo.Echo
	meta  *fakeMeta
	store *storage.Filesystem
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log := logger.New("error", "text")
	cfg := &config.Config{
		Cache: config.CacheConfig{DefaultTTL: time.Minute},
		Registry: config.RegistryConfig{
			ModulesPath: "/v1/modules/",
		},
	}
	components := &bootstrap.Components{Config: cfg, Logger: log}

	store, err := storage.NewFilesystem(t.TempDir(), log)
	require.NoError(t, err)

	meta := newFakeMeta()
	uploadPolicy, err := policy.NewUploadPolicy("")
	require.NoError(t, err)

	docs := service.NewDocsService(log)
	resolver := service.NewResolver(meta, meta, log)
	stats := service.NewStatsService(nil, log)
	search := service.NewSearchService(meta, log)
	uploader := service.NewUploadCoordinator(store, meta, meta, uploadPolicy, docs, nil, nil, "", log)

	e := echo.New()

	dh := NewDiscoveryHandler(components)
	e.GET("/.well-known/terraform.json", dh.Discovery)

	mh := NewModuleHandler(components, resolver, stats, search, store)
	modules := e.Group("/v1/modules")
	modules.GET("/search", mh.Search)
	modules.GET("/:namespace/:name/:provider/versions", mh.ListVersions)
	modules.GET("/:namespace/:name/:provider/stats", mh.Stats)
	modules.GET("/:namespace/:name/:provider", mh.GetModule)
	modules.GET("/:namespace/:name/:provider/:version", mh.GetModuleVersion)
	modules.GET("/:namespace/:name/:provider/:version/download", mh.Download)
	modules.GET("/:namespace/:name/:provider/:version/archive", mh.Archive)

	uh := NewUploadHandler(components, uploader, resolver, docs, meta)
	api := e.Group("/api/modules")
	api.POST("/:namespace/:name/:provider/:version/upload", uh.Upload)
	api.PATCH("/:namespace/:name/:provider/:version/docs", uh.PatchDocs)

	return &testServer{echo: e, meta: meta, store: store}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func validArchive(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"main.tf":      `resource "null_resource" "x" {}`,
		"variables.tf": `variable "region" {}`,
		"outputs.tf":   `output "id" { value = "x" }`,
		"README.md":    "# vpc",
	} {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func uploadRequest(t *testing.T, path string, archive []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "module.zip")
	require.NoError(t, err)
	_, err = part.Write(archive)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return req
}

func (s *testServer) publish(t *testing.T, namespace, name, provider, version string) {
	t.Helper()
	path := "/api/modules/" + namespace + "/" + name + "/" + provider + "/" + version + "/upload"
	rec := s.do(uploadRequest(t, path, validArchive(t)))
	require.Equal(t, http.StatusOK, rec.Code, "publish failed: %s", rec.Body.String())
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestDiscoveryDocument(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/.well-known/terraform.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"modules.v1":"/v1/modules/"}`, rec.Body.String())
}

func TestDiscoveryDocumentBehindProxy(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/terraform.json", nil)
	req.Header.Set("X-Forwarded-Host", "registry.example.com")
	rec := srv.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"modules.v1":"https://registry.example.com/v1/modules/"}`, rec.Body.String())
}

func TestUploadAndListVersions(t *testing.T) {
	srv := newTestServer(t)
	srv.publish(t, "acme", "vpc", "aws", "1.0.0")
	srv.publish(t, "acme", "vpc", "aws", "2.0.0")
	srv.publish(t, "acme", "vpc", "aws", "1.5.0")

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/v1/modules/acme/vpc/aws/versions", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Modules []struct {
			Versions []struct {
				Version   string            `json:"version"`
				Protocols []string          `json:"protocols"`
				Platforms []models.Platform `json:"platforms"`
			} `json:"versions"`
		} `json:"modules"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Len(t, doc.Modules, 1)
	require.Len(t, doc.Modules[0].Versions, 3)

	// Descending semver order
	assert.Equal(t, "2.0.0", doc.Modules[0].Versions[0].Version)
	assert.Equal(t, "1.5.0", doc.Modules[0].Versions[1].Version)
	assert.Equal(t, "1.0.0", doc.Modules[0].Versions[2].Version)

	assert.Equal(t, []string{"5.0"}, doc.Modules[0].Versions[0].Protocols)
	assert.Equal(t, []models.Platform{{OS: "linux", Arch: "amd64"}}, doc.Modules[0].Versions[0].Platforms)
}

func TestListVersionsUnknownModule(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/v1/modules/nobody/nothing/aws/versions", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Module not found"}`, rec.Body.String())
}

func TestGetModuleReturnsLatest(t *testing.T) {
	srv := newTestServer(t)
	srv.publish(t, "acme", "vpc", "aws", "1.0.0")
	srv.publish(t, "acme", "vpc", "aws", "1.2.0")

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/v1/modules/acme/vpc/aws", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "acme-vpc-aws-1.2.0", body["id"])
	assert.Equal(t, "1.2.0", body["version"])
	assert.Equal(t, "acme", body["namespace"])
	assert.Equal(t, "vpc", body["name"])
	assert.Equal(t, "aws", body["provider"])
	assert.Equal(t, "acme", body["owner"])
	assert.Equal(t, float64(0), body["downloads"])
	assert.Equal(t, false, body["verified"])

	// published_at is RFC3339
	_, err := time.Parse(time.RFC3339, body["published_at"].(string))
	assert.NoError(t, err)
}

func TestGetModuleVersion(t *testing.T) {
	srv := newTestServer(t)
	srv.publish(t, "acme", "vpc", "aws", "1.0.0")
	srv.publish(t, "acme", "vpc", "aws", "1.2.0")

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/v1/modules/acme/vpc/aws/1.0.0", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1.0.0", decodeJSON(t, rec)["version"])

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/v1/modules/acme/vpc/aws/9.9.9", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownload(t *testing.T) {
	srv := newTestServer(t)
	srv.publish(t, "acme", "vpc", "aws", "1.0.0")

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/v1/modules/acme/vpc/aws/1.0.0/download", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "/v1/modules/acme/vpc/aws/1.0.0/archive", rec.Header().Get("X-Terraform-Get"))
	assert.Empty(t, rec.Body.Bytes())
}

func TestDownloadUnknownVersion(t *testing.T) {
	srv := newTestServer(t)
	srv.publish(t, "acme", "vpc", "aws", "1.0.0")

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/v1/modules/acme/vpc/aws/2.0.0/download", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Terraform-Get"))
}

func TestArchiveServesStoredBytes(t *testing.T) {
	srv := newTestServer(t)
	archive := validArchive(t)
	rec := srv.do(uploadRequest(t, "/api/modules/acme/vpc/aws/1.0.0/upload", archive))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/v1/modules/acme/vpc/aws/1.0.0/archive", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, archive, rec.Body.Bytes())
}

// Metadata pointing at missing content is integrity damage, reported as
// a server error rather than a 404.
func TestArchiveWithBrokenLocator(t *testing.T) {
	srv := newTestServer(t)
	srv.publish(t, "acme", "vpc", "aws", "1.0.0")

	locator := storage.Locator("acme", "vpc", "aws", "1.0.0")
	require.NoError(t, srv.store.Delete(context.Background(), locator))

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/v1/modules/acme/vpc/aws/1.0.0/archive", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decodeJSON(t, rec)["error"])
}

func TestUploadResponseShape(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(uploadRequest(t, "/api/modules/acme/vpc/aws/1.0.0/upload", validArchive(t)))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "acme-vpc-aws", body["module_id"])
	assert.Equal(t, "1.0.0", body["version"])
	assert.Contains(t, body, "documentation")
}

func TestUploadValidationFailure(t *testing.T) {
	srv := newTestServer(t)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	_, err := w.Create("main.tf")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	rec := srv.do(uploadRequest(t, "/api/modules/acme/vpc/aws/not-semver/upload", buf.Bytes()))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "validation_failed", body["error"])

	fields := body["errors"].(map[string]interface{})
	assert.Contains(t, fields, "version")
	assert.Contains(t, fields, "variables.tf")
	assert.Contains(t, fields, "outputs.tf")
}

func TestUploadMissingFilePart(t *testing.T) {
	srv := newTestServer(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/modules/acme/vpc/aws/1.0.0/upload", &body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())

	rec := srv.do(req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decodeJSON(t, rec)["error"])
}

func TestUploadConflict(t *testing.T) {
	srv := newTestServer(t)
	srv.publish(t, "acme", "vpc", "aws", "1.0.0")

	rec := srv.do(uploadRequest(t, "/api/modules/acme/vpc/aws/1.0.0/upload", validArchive(t)))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "version_conflict", decodeJSON(t, rec)["error"])
}

func TestPatchDocs(t *testing.T) {
	srv := newTestServer(t)
	srv.publish(t, "acme", "vpc", "aws", "1.0.0")

	patch := strings.NewReader(`{"readme":"generated","inputs":[{"name":"region"}]}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/modules/acme/vpc/aws/1.0.0/docs", patch)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := srv.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	docs := decodeJSON(t, rec)["documentation"].(map[string]interface{})
	assert.Equal(t, "generated", docs["readme"])
	assert.Contains(t, docs, "inputs")

	// The patched documentation is persisted
	stored, err := srv.meta.GetByVersion(context.Background(), "acme-vpc-aws", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "generated", stored.Documentation["readme"])
}

func TestPatchDocsUnknownVersion(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPatch, "/api/modules/acme/vpc/aws/1.0.0/docs", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := srv.do(req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatchDocsRejectsMalformedPatch(t *testing.T) {
	srv := newTestServer(t)
	srv.publish(t, "acme", "vpc", "aws", "1.0.0")

	req := httptest.NewRequest(http.MethodPatch, "/api/modules/acme/vpc/aws/1.0.0/docs", strings.NewReader(`{broken`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := srv.do(req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_patch", decodeJSON(t, rec)["error"])
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t)
	srv.publish(t, "acme", "vpc-network", "aws", "1.0.0")
	srv.publish(t, "acme", "k8s-cluster", "aws", "1.0.0")

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/v1/modules/search?q=vpc", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Modules []models.Module `json:"modules"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Modules, 1)
	assert.Equal(t, "vpc-network", body.Modules[0].Name)
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.publish(t, "acme", "vpc", "aws", "1.0.0")

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/v1/modules/acme/vpc/aws/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"downloads":0}`, rec.Body.String())

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/v1/modules/acme/missing/aws/stats", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
