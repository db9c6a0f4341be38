package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/premsagar786/printsmart/internal/admin"
	"github.com/premsagar786/printsmart/internal/api/middleware"
	"github.com/premsagar786/printsmart/internal/docs"
	"github.com/premsagar786/printsmart/internal/engine"
)

type memStore struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{m: make(map[string][]byte)}
}

func (s *memStore) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.m[key]
	return blob, ok, nil
}

func (s *memStore) Set(key string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = blob
	return nil
}

type fixedRand struct{ n int }

func (r fixedRand) Intn(n int) int   { return r.n % n }
func (r fixedRand) Float64() float64 { return 0 }

type testServer struct {
	router *gin.Engine
	engine *engine.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := newMemStore()
	eng := engine.New(st, nil, fixedRand{n: 777}, engine.Config{TickInterval: time.Hour})

	library, err := docs.NewLibrary(t.TempDir())
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}

	directory := admin.NewDirectory(st)
	auth, err := middleware.NewAuthMiddleware(st, directory)
	if err != nil {
		t.Fatalf("NewAuthMiddleware: %v", err)
	}

	r := gin.New()
	RegisterRoutes(r, auth,
		NewJobHandler(eng, library),
		NewSettingsHandler(eng),
		NewUserHandler(directory),
	)

	return &testServer{router: r, engine: eng}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		blob, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(blob)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) login(t *testing.T) *http.Cookie {
	t.Helper()

	w := ts.do(t, http.MethodPost, "/api/auth/login", gin.H{
		"username": "admin",
		"password": admin.DefaultAdminPassword,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login failed with status %d: %s", w.Code, w.Body.String())
	}
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "printsmart_auth" {
			return cookie
		}
	}
	t.Fatal("login response carried no auth cookie")
	return nil
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestCreateJobEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/jobs", gin.H{
		"file_name":   "report.pdf",
		"total_pages": 5,
		"color_mode":  "bw",
		"copies":      1,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var job JobResponse
	decode(t, w, &job)
	if !strings.HasPrefix(job.Token, "PS-") {
		t.Errorf("token = %q, want PS- prefix", job.Token)
	}
	if job.Cost != 2.5 {
		t.Errorf("cost = %v, want 2.5", job.Cost)
	}
	if job.Status != "Queued" {
		t.Errorf("status = %q, want Queued", job.Status)
	}
	if job.PaymentStatus != "Unpaid" {
		t.Errorf("payment = %q, want Unpaid", job.PaymentStatus)
	}
}

func TestCreateJobValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body gin.H
	}{
		{name: "missing file name", body: gin.H{"total_pages": 5}},
		{name: "zero pages", body: gin.H{"file_name": "a.pdf", "total_pages": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := ts.do(t, http.MethodPost, "/api/jobs", tt.body); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestWalkInJobRequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	if w := ts.do(t, http.MethodPost, "/api/jobs/walkin", gin.H{"pages": 3}); w.Code != http.StatusUnauthorized {
		t.Fatalf("status without auth = %d, want 401", w.Code)
	}

	cookie := ts.login(t)
	w := ts.do(t, http.MethodPost, "/api/jobs/walkin", gin.H{"pages": 3}, cookie)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var job JobResponse
	decode(t, w, &job)
	if !strings.HasPrefix(job.Token, "FO-") {
		t.Errorf("token = %q, want FO- prefix", job.Token)
	}
	if !job.IsWalkIn {
		t.Error("expected a walk-in job")
	}
}

func TestQuoteEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/quote", gin.H{
		"total_pages": 5,
		"color_mode":  "bw",
		"expedited":   true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Cost float64 `json:"cost"`
	}
	decode(t, w, &resp)
	if resp.Cost != 3.125 {
		t.Errorf("cost = %v, want 3.125", resp.Cost)
	}
}

func TestScanEndpoint(t *testing.T) {
	ts := newTestServer(t)
	// The default data set includes a job already at the counter once a
	// tick moves the printing one forward.
	ts.engine.Tick()

	t.Run("invalid code", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/scan", gin.H{"code": "garbage"})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", w.Code)
		}
		var resp struct {
			Error string `json:"error"`
		}
		decode(t, w, &resp)
		if resp.Error != "Invalid QR Code." {
			t.Errorf("error = %q", resp.Error)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/scan", gin.H{"code": "PrintSmart-Token:PS-999"})
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d", w.Code)
		}
		var resp struct {
			Error string `json:"error"`
		}
		decode(t, w, &resp)
		if resp.Error != "Invalid Token. Job not found." {
			t.Errorf("error = %q", resp.Error)
		}
	})

	t.Run("not ready", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/scan", gin.H{"code": "PrintSmart-Token:PS-124"})
		if w.Code != http.StatusConflict {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("ready job collects", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/scan", gin.H{"code": "PrintSmart-Token:PS-123"})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		var resp struct {
			Success bool   `json:"success"`
			Message string `json:"message"`
		}
		decode(t, w, &resp)
		if !resp.Success {
			t.Error("expected success")
		}
		if resp.Message != "Success! Job PS-123 marked as collected." {
			t.Errorf("message = %q", resp.Message)
		}
	})

	t.Run("second scan of same token", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/scan", gin.H{"code": "PrintSmart-Token:PS-123"})
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404 on re-scan", w.Code)
		}
	})
}

func TestQueueEndpointHidesCollected(t *testing.T) {
	ts := newTestServer(t)

	var resp struct {
		Jobs []JobResponse `json:"jobs"`
	}

	w := ts.do(t, http.MethodGet, "/api/queue", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	decode(t, w, &resp)
	for _, j := range resp.Jobs {
		if j.Status == "Collected" {
			t.Errorf("collected job %s visible in public queue", j.Token)
		}
	}

	// Naming a collected job keeps it visible to its owner.
	w = ts.do(t, http.MethodGet, "/api/queue?mine=5", nil)
	decode(t, w, &resp)
	found := false
	for _, j := range resp.Jobs {
		if j.ID == 5 {
			found = true
		}
	}
	if !found {
		t.Error("own collected job missing from queue view")
	}
}

func TestRefreshEndpointReportsChange(t *testing.T) {
	ts := newTestServer(t)

	var resp struct {
		Changed bool `json:"changed"`
	}

	// The seed data has work in flight, so the first tick changes state.
	w := ts.do(t, http.MethodPost, "/api/queue/refresh", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	decode(t, w, &resp)
	if !resp.Changed {
		t.Error("expected the first refresh to change state")
	}
}

func TestAdvanceJobEndpoint(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t)

	// Seed job 1 is Printing; advance moves it to Ready.
	w := ts.do(t, http.MethodPost, "/api/jobs/1/advance", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var job JobResponse
	decode(t, w, &job)
	if job.Status != "Ready" {
		t.Errorf("status = %q, want Ready", job.Status)
	}

	// An explicit non-adjacent target is rejected.
	w = ts.do(t, http.MethodPost, "/api/jobs/1/advance", gin.H{"status": "Queued"}, cookie)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}

	w = ts.do(t, http.MethodPost, "/api/jobs/999999/advance", nil, cookie)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestSetPriorityEndpoint(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t)

	w := ts.do(t, http.MethodPut, "/api/jobs/3/priority", gin.H{"priority": 1}, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var job JobResponse
	decode(t, w, &job)
	if job.Priority != 1 || job.PriorityLabel != "High" {
		t.Errorf("priority = %d (%s), want 1 (High)", job.Priority, job.PriorityLabel)
	}

	w = ts.do(t, http.MethodPut, "/api/jobs/3/priority", gin.H{"priority": 9}, cookie)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for invalid priority", w.Code)
	}
}

func TestMarkPaidEndpoint(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t)

	// Seed job 3 is unpaid.
	w := ts.do(t, http.MethodPost, "/api/jobs/3/paid", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var job JobResponse
	decode(t, w, &job)
	if job.PaymentStatus != "Paid" {
		t.Errorf("payment = %q, want Paid", job.PaymentStatus)
	}
}

func TestListJobsFilters(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t)

	var resp struct {
		Jobs []JobResponse `json:"jobs"`
	}

	w := ts.do(t, http.MethodGet, "/api/jobs?status=live", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	decode(t, w, &resp)
	for _, j := range resp.Jobs {
		if j.Status == "Collected" {
			t.Errorf("collected job in live filter: %s", j.Token)
		}
	}

	w = ts.do(t, http.MethodGet, "/api/jobs?payment=Unpaid", nil, cookie)
	decode(t, w, &resp)
	for _, j := range resp.Jobs {
		if j.PaymentStatus != "Unpaid" {
			t.Errorf("paid job in unpaid filter: %s", j.Token)
		}
	}
}

func TestStatsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t)

	w := ts.do(t, http.MethodGet, "/api/stats", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var stats engine.Stats
	decode(t, w, &stats)
	if stats.TotalJobs != 5 {
		t.Errorf("total jobs = %d, want 5 from seed data", stats.TotalJobs)
	}
	if stats.TotalEarnings != 103.5 {
		t.Errorf("total earnings = %v, want 103.5", stats.TotalEarnings)
	}
}

func TestRatesEndpoints(t *testing.T) {
	ts := newTestServer(t)

	// Reading rates is public.
	w := ts.do(t, http.MethodGet, "/api/rates", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var rates struct {
		BW        float64 `json:"bw"`
		Color     float64 `json:"color"`
		Discount  float64 `json:"discount"`
		Surcharge float64 `json:"surcharge"`
	}
	decode(t, w, &rates)
	if rates.BW != 0.5 || rates.Color != 2.0 {
		t.Errorf("default rates = %+v", rates)
	}

	// Writing requires a session.
	update := gin.H{"bw": 1.0, "color": 3.0, "discount": 0.8, "surcharge": 1.5}
	if w := ts.do(t, http.MethodPut, "/api/rates", update); w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated update status = %d, want 401", w.Code)
	}

	cookie := ts.login(t)
	if w := ts.do(t, http.MethodPut, "/api/rates", update, cookie); w.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", w.Code, w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/api/rates", nil)
	decode(t, w, &rates)
	if rates.BW != 1.0 || rates.Surcharge != 1.5 {
		t.Errorf("rates after update = %+v", rates)
	}
}

func TestNotificationSettingsEndpoints(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t)

	var prefs engine.Preferences

	w := ts.do(t, http.MethodGet, "/api/settings/notifications", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	decode(t, w, &prefs)
	if !prefs.NewJob || prefs.JobReady {
		t.Errorf("defaults = %+v", prefs)
	}

	w = ts.do(t, http.MethodPut, "/api/settings/notifications", gin.H{"newJob": false, "jobReady": true}, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", w.Code, w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/api/settings/notifications", nil, cookie)
	decode(t, w, &prefs)
	if prefs.NewJob || !prefs.JobReady {
		t.Errorf("prefs after update = %+v", prefs)
	}
}

func TestUserEndpoints(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t)

	w := ts.do(t, http.MethodPost, "/api/users", gin.H{"username": "priya", "password": "pw123"}, cookie)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	if w := ts.do(t, http.MethodPost, "/api/users", gin.H{"username": "priya", "password": "pw123"}, cookie); w.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", w.Code)
	}

	w = ts.do(t, http.MethodGet, "/api/users", nil, cookie)
	var list struct {
		Users []string `json:"users"`
	}
	decode(t, w, &list)
	if len(list.Users) != 2 {
		t.Errorf("users = %v, want [admin priya]", list.Users)
	}

	if w := ts.do(t, http.MethodDelete, "/api/users/admin", nil, cookie); w.Code != http.StatusConflict {
		t.Errorf("delete admin status = %d, want 409", w.Code)
	}
	if w := ts.do(t, http.MethodPut, "/api/users/admin/password", gin.H{"password": "newpw"}, cookie); w.Code != http.StatusConflict {
		t.Errorf("rotate own password status = %d, want 409", w.Code)
	}
	if w := ts.do(t, http.MethodDelete, "/api/users/priya", nil, cookie); w.Code != http.StatusOK {
		t.Errorf("delete status = %d", w.Code)
	}
	if w := ts.do(t, http.MethodDelete, "/api/users/ghost", nil, cookie); w.Code != http.StatusNotFound {
		t.Errorf("delete unknown status = %d, want 404", w.Code)
	}
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)

	t.Run("bad credentials", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/auth/login", gin.H{"username": "admin", "password": "wrong"})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("status reflects session", func(t *testing.T) {
		var status middleware.StatusResponse

		w := ts.do(t, http.MethodGet, "/api/auth/status", nil)
		decode(t, w, &status)
		if status.Authenticated {
			t.Error("expected unauthenticated before login")
		}

		cookie := ts.login(t)
		w = ts.do(t, http.MethodGet, "/api/auth/status", nil, cookie)
		decode(t, w, &status)
		if !status.Authenticated || status.Username != "admin" {
			t.Errorf("status after login = %+v", status)
		}
	})

	t.Run("bearer token accepted", func(t *testing.T) {
		cookie := ts.login(t)

		req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
		req.Header.Set("Authorization", "Bearer "+cookie.Value)
		w := httptest.NewRecorder()
		ts.router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("bearer auth status = %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		w := httptest.NewRecorder()
		ts.router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})
}

func TestChangeOwnPasswordEndpoint(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t)

	w := ts.do(t, http.MethodPost, "/api/auth/password", gin.H{
		"current_password": "wrong",
		"new_password":     "newpass",
	}, cookie)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong current password status = %d, want 401", w.Code)
	}

	w = ts.do(t, http.MethodPost, "/api/auth/password", gin.H{
		"current_password": admin.DefaultAdminPassword,
		"new_password":     "newpass",
	}, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	// Old password no longer works.
	if w := ts.do(t, http.MethodPost, "/api/auth/login", gin.H{"username": "admin", "password": admin.DefaultAdminPassword}); w.Code != http.StatusUnauthorized {
		t.Errorf("old password still accepted: %d", w.Code)
	}
	if w := ts.do(t, http.MethodPost, "/api/auth/login", gin.H{"username": "admin", "password": "newpass"}); w.Code != http.StatusOK {
		t.Errorf("new password rejected: %d", w.Code)
	}
}

func TestDocumentUploadAndDownload(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "report.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte("%PDF-1.4 test"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d: %s", w.Code, w.Body.String())
	}

	var uploaded struct {
		Handle string `json:"handle"`
	}
	decode(t, w, &uploaded)
	if uploaded.Handle == "" {
		t.Fatal("empty document handle")
	}

	w = ts.do(t, http.MethodPost, "/api/jobs", gin.H{
		"file_name":       "report.pdf",
		"total_pages":     2,
		"document_handle": uploaded.Handle,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create job status = %d: %s", w.Code, w.Body.String())
	}
	var job JobResponse
	decode(t, w, &job)
	if !job.HasDocument {
		t.Error("job should report an attached document")
	}

	cookie := ts.login(t)
	w = ts.do(t, http.MethodGet, "/api/jobs/"+jsonNumber(job.ID)+"/document", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("download status = %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "%PDF-1.4 test" {
		t.Errorf("downloaded content = %q", w.Body.String())
	}

	// Seed jobs carry no document.
	w = ts.do(t, http.MethodGet, "/api/jobs/1/document", nil, cookie)
	if w.Code != http.StatusNotFound {
		t.Errorf("seed job document status = %d, want 404", w.Code)
	}
}

func jsonNumber(id int64) string {
	blob, _ := json.Marshal(id)
	return string(blob)
}
