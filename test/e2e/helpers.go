//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/studybuddy/internal/api/handlers"
	"github.com/cloo-solutions/studybuddy/internal/domain"
	"github.com/cloo-solutions/studybuddy/internal/extract"
	"github.com/cloo-solutions/studybuddy/internal/openai"
	"github.com/cloo-solutions/studybuddy/internal/repository"
	"github.com/cloo-solutions/studybuddy/internal/server"
	"github.com/cloo-solutions/studybuddy/internal/service"
	"github.com/cloo-solutions/studybuddy/internal/storage"
	"github.com/cloo-solutions/studybuddy/internal/testutil"
	"github.com/cloo-solutions/studybuddy/internal/vectorstore"
	"github.com/jackc/pgx/v5/pgxpool"
)

const testDimensions = domain.DefaultEmbeddingDimensions

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	LLM          *httptest.Server
	Pages        *httptest.Server
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	BinaryDir    string
	ConfigHome   string
	Token        string
	HTTPClient   *http.Client
}

// SetupE2EEnv starts Postgres, RustFS, a fake model endpoint, a page server
// and the API server.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.S3AccessKey,
		SecretAccessKey: testutil.S3SecretKey,
		Bucket:          "test-documents",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	llm := httptest.NewServer(fakeLLMHandler())
	pages := httptest.NewServer(pageHandler())

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser := startServer(t, pool, s3Client, llm.URL, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		LLM:          llm,
		Pages:        pages,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		S3Client:     s3Client,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.LLM != nil {
		e.LLM.Close()
	}
	if e.Pages != nil {
		e.Pages.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// Bootstrap registers a user and logs in, keeping the session token.
func (e *E2ETestEnv) Bootstrap() {
	creds := map[string]string{"username": "e2e-student", "password": "correct horse"}
	if _, err := e.Post("/api/register", creds, ""); err != nil {
		e.T.Fatalf("failed to register: %v", err)
	}

	resp, err := e.Post("/api/login", creds, "")
	if err != nil {
		e.T.Fatalf("failed to login: %v", err)
	}

	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Data, &login); err != nil {
		e.T.Fatalf("failed to parse login response: %v", err)
	}
	e.Token = login.Token
}

// BuildBinaries builds the studybuddy and studybuddyd binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "studybuddy-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir
	e.ConfigHome = filepath.Join(tmpDir, "config")

	for _, name := range []string{"studybuddy", "studybuddyd"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

// RunCLI runs the studybuddy CLI with its config directory isolated under
// the binary dir.
func (e *E2ETestEnv) RunCLI(input string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "studybuddy"), args...)
	cmd.Stdin = strings.NewReader(input)
	cmd.Env = append(os.Environ(),
		"XDG_CONFIG_HOME="+e.ConfigHome,
		"STUDYBUDDY_TOKEN=",
		"STUDYBUDDY_API_URL="+e.ServerURL,
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	Status int
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

func (e *E2ETestEnv) Get(path, token string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil, "", token)
}

func (e *E2ETestEnv) Post(path string, body interface{}, token string) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}
	return e.doRequest(http.MethodPost, path, reqBody, "application/json", token)
}

// Upload posts content as the multipart "file" field.
func (e *E2ETestEnv) Upload(path, filename string, content []byte, token string) (*APIResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return e.doRequest(http.MethodPost, path, &body, mw.FormDataContentType(), token)
}

// Raw returns the API response without turning 4xx/5xx into errors.
func (e *E2ETestEnv) Raw(method, path string, body interface{}, token string) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(jsonData)
	}
	return e.send(method, path, reqBody, "application/json", token)
}

func (e *E2ETestEnv) doRequest(method, path string, body io.Reader, contentType, token string) (*APIResponse, error) {
	resp, err := e.send(method, path, body, contentType, token)
	if err != nil {
		return nil, err
	}
	if resp.Status >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.Status, resp.Error)
	}
	return resp, nil
}

func (e *E2ETestEnv) send(method, path string, body io.Reader, contentType, token string) (*APIResponse, error) {
	req, err := http.NewRequest(method, e.ServerURL+path, body)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	apiResp := APIResponse{Status: resp.StatusCode}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	return &apiResp, nil
}

func startServer(t *testing.T, pool *pgxpool.Pool, s3Client *storage.S3Client, llmURL string, port int) (string, func()) {
	userRepo := repository.NewUserRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	queryLogRepo := repository.NewQueryLogRepository(pool)

	authSvc := service.NewAuthService(userRepo, sessionRepo, &service.DefaultUUIDGenerator{}, time.Hour)

	llm := openai.NewClientWithConfig(openai.Config{
		APIKey:              "test",
		BaseURL:             llmURL,
		EmbeddingDimensions: testDimensions,
		Timeout:             5 * time.Second,
	})

	documentPipeline := newPipeline(t, service.DocumentPipelineConfig(), llm)
	webPipeline := newPipeline(t, service.WebPipelineConfig(), llm)
	documentPipeline.WithQueryLog(queryLogRepo)
	webPipeline.WithQueryLog(queryLogRepo)

	documents := service.NewDocumentService(documentPipeline, extract.NewPDF()).
		WithArchive(s3Client, storage.DocumentKey)
	web := service.NewWebService(webPipeline, extract.NewWebPage())

	router := server.NewRouter(server.RouterConfig{
		SessionValidator: authSvc,
		HealthHandler:    handlers.NewHealthHandler(pool),
		AuthHandler:      handlers.NewAuthHandler(authSvc),
		DocumentHandler:  handlers.NewDocumentHandler(documents, handlers.DefaultMaxUploadBytes),
		WebHandler:       handlers.NewWebHandler(web),
		DocumentChunks:   handlers.NewChunksHandler(documentPipeline.Store()),
		WebChunks:        handlers.NewChunksHandler(webPipeline.Store()),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func newPipeline(t *testing.T, cfg service.PipelineConfig, llm *openai.Client) *service.RAGPipeline {
	store, err := vectorstore.New(testDimensions)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	p, err := service.NewRAGPipeline(cfg, store, llm, llm)
	if err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}
	return p
}

// fakeLLMHandler serves the two OpenAI-compatible endpoints the client uses.
// Embeddings are hashed bags of words, so texts sharing words land close
// together. Completions echo the prompt back.
func fakeLLMHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		data := make([]map[string]interface{}, len(req.Input))
		for i, text := range req.Input {
			data[i] = map[string]interface{}{
				"object":    "embedding",
				"index":     i,
				"embedding": bagOfWords(text),
			}
		}
		writeJSON(w, map[string]interface{}{
			"object": "list",
			"model":  req.Model,
			"data":   data,
		})
	})

	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var prompt string
		if len(req.Messages) > 0 {
			prompt = req.Messages[len(req.Messages)-1].Content
		}
		writeJSON(w, map[string]interface{}{
			"id":     "chatcmpl-e2e",
			"object": "chat.completion",
			"model":  req.Model,
			"choices": []map[string]interface{}{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": "ECHO: " + prompt},
			}},
		})
	})

	return mux
}

func bagOfWords(text string) []float32 {
	v := make([]float32, testDimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?()\"'")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		v[h.Sum32()%uint32(testDimensions)]++
	}
	return v
}

const pageHTML = `<html><head><title>Cells</title><script>var ignored = 1;</script></head>
<body>
<p>The mitochondria is the powerhouse of the cell.</p>
<p>Ribosomes assemble proteins from amino acids.</p>
</body></html>`

func pageHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/cells", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(pageHTML))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><div>no paragraphs here</div></body></html>`))
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// buildPDF writes a single-page PDF showing text in Helvetica.
func buildPDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
