package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"accidentes-platform/internal/auth"
	"accidentes-platform/internal/etl"
	"accidentes-platform/internal/models"
	"accidentes-platform/internal/repository"
	"accidentes-platform/internal/services"
	"accidentes-platform/pkg/logging"
	"accidentes-platform/pkg/metrics"
)

// One collector per test binary; prometheus registration is global.
var testMetrics = metrics.NewCollector("handlers_test")

func testLogger() *logging.StructuredLogger {
	logger := logging.NewStructuredLogger("handlers-test", "test", logging.FatalLevel)
	logger.SetOutput(io.Discard)
	return logger
}

// fakeRepo is an in-memory AccidentRepository. Filtering mirrors the SQL
// semantics closely enough for handler-level tests.
type fakeRepo struct {
	rows         []models.Accident
	replaceCalls int
	healthErr    error

	// When set, ReplaceAll signals and then blocks until released, so a test
	// can issue a second request while a refresh is still in flight.
	replaceStarted chan struct{}
	replaceRelease chan struct{}
}

func (f *fakeRepo) EnsureSchema(ctx context.Context) error { return nil }

func (f *fakeRepo) ReplaceAll(ctx context.Context, rows []models.Accident) error {
	f.replaceCalls++
	if f.replaceStarted != nil {
		close(f.replaceStarted)
		<-f.replaceRelease
	}
	f.rows = make([]models.Accident, len(rows))
	for i, rec := range rows {
		rec.AccidenteID = int64(i + 1)
		f.rows[i] = rec
	}
	return nil
}

func (f *fakeRepo) CountAll(ctx context.Context) (int, error) { return len(f.rows), nil }

func (f *fakeRepo) List(ctx context.Context, page repository.Page) ([]models.Accident, int, error) {
	return paginate(f.rows, page), len(f.rows), nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id int64) (*models.Accident, error) {
	for _, rec := range f.rows {
		if rec.AccidenteID == id {
			r := rec
			return &r, nil
		}
	}
	return nil, &repository.NotFoundError{Resource: "accident", ID: fmt.Sprintf("%d", id)}
}

func (f *fakeRepo) Search(ctx context.Context, filter repository.SearchFilter, page repository.Page) ([]models.Accident, int, error) {
	var matched []models.Accident
	for _, rec := range f.rows {
		if filter.ClasAcc != nil && (rec.ClasAcc == nil || !strings.EqualFold(*rec.ClasAcc, *filter.ClasAcc)) {
			continue
		}
		if filter.IDEntidad != nil && rec.IDEntidad != *filter.IDEntidad {
			continue
		}
		if filter.IDMunicipio != nil && rec.IDMunicipio != *filter.IDMunicipio {
			continue
		}
		if filter.Desde != nil && rec.Fecha.Before(*filter.Desde) {
			continue
		}
		if filter.Hasta != nil && rec.Fecha.After(*filter.Hasta) {
			continue
		}
		if filter.Q != nil && !matchesQ(rec, *filter.Q) {
			continue
		}
		matched = append(matched, rec)
	}
	return paginate(matched, page), len(matched), nil
}

func (f *fakeRepo) HealthCheck(ctx context.Context) error { return f.healthErr }

func matchesQ(rec models.Accident, q string) bool {
	q = strings.ToLower(q)
	for _, field := range []*string{rec.TipAccid, rec.CausaAcci, rec.Urbana, rec.Suburbana} {
		if field != nil && strings.Contains(strings.ToLower(*field), q) {
			return true
		}
	}
	return false
}

func paginate(rows []models.Accident, page repository.Page) []models.Accident {
	sorted := append([]models.Accident(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if page.Order == repository.OrderFechaAsc {
			return sorted[i].Fecha.Before(sorted[j].Fecha)
		}
		return sorted[i].Fecha.After(sorted[j].Fecha)
	})

	if page.Offset >= len(sorted) {
		return []models.Accident{}
	}
	sorted = sorted[page.Offset:]
	if page.Limit < len(sorted) {
		sorted = sorted[:page.Limit]
	}
	return sorted
}

func seedRows(n int) []models.Accident {
	base := time.Date(2022, time.January, 1, 12, 0, 0, 0, time.UTC)
	rows := make([]models.Accident, n)
	for i := range rows {
		clasacc := "Solo daños"
		if i%3 == 0 {
			clasacc = "Fatal"
		}
		tipaccid := "Colisión con vehículo automotor"
		rows[i] = models.Accident{
			AccidenteID: int64(i + 1),
			IDEntidad:   9,
			IDMunicipio: i % 5,
			Fecha:       base.AddDate(0, 0, i),
			TipAccid:    &tipaccid,
			ClasAcc:     &clasacc,
		}
	}
	return rows
}

const csvHeader = "id_entidad,id_municipio,anio,mes,id_dia,id_hora,id_minuto," +
	"diasemana,urbana,suburbana,tipaccid,causaacci,sexo,aliento,cinturon,clasacc,estatus"

func writeSourceCSV(t *testing.T, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(csvHeader + "\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "9,%d,2022,%d,%d,10,30,Lunes,,,Colision,Conductor,Hombre,No,Si,Solo danos,Definitivas\n",
			i, i%12+1, i%28+1)
	}
	path := filepath.Join(t.TempDir(), "datos.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

type testEnv struct {
	repo    *fakeRepo
	auth    *auth.Manager
	router  *mux.Router
	handler *AccidentHandler
}

func newTestEnv(t *testing.T, repo *fakeRepo, csvPath string, devToken bool) *testEnv {
	t.Helper()

	logger := testLogger()
	pipeline := etl.NewPipeline(csvPath, repo, logger, testMetrics)
	accidentService := services.NewAccidentService(repo, logger, testMetrics)
	refreshService := services.NewRefreshService(pipeline, logger, testMetrics)
	authManager := auth.NewManager("test-secret")

	handler := NewAccidentHandler(accidentService, refreshService, authManager, logger, testMetrics, devToken)

	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	return &testEnv{repo: repo, auth: authManager, router: router, handler: handler}
}

func (e *testEnv) do(t *testing.T, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeSearchResponse(t *testing.T, rec *httptest.ResponseRecorder) (int, []models.Accident) {
	t.Helper()
	var resp struct {
		Total int               `json:"total"`
		Items []models.Accident `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp.Total, resp.Items
}

func TestListRecords_Defaults(t *testing.T) {
	env := newTestEnv(t, &fakeRepo{rows: seedRows(30)}, "", false)

	rec := env.do(t, "GET", "/records", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	total, items := decodeSearchResponse(t, rec)
	if total != 30 {
		t.Errorf("total = %d, want 30", total)
	}
	if len(items) != 20 {
		t.Errorf("items = %d, want default limit 20", len(items))
	}
	// Default order is newest first.
	if len(items) >= 2 && items[0].Fecha.Before(items[1].Fecha) {
		t.Error("default order should be fecha descending")
	}
}

func TestListRecords_PagingAndOrder(t *testing.T) {
	env := newTestEnv(t, &fakeRepo{rows: seedRows(30)}, "", false)

	rec := env.do(t, "GET", "/records?limit=5&offset=5&order=fecha_asc", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	total, items := decodeSearchResponse(t, rec)
	if total != 30 {
		t.Errorf("total = %d, want 30 (page-independent)", total)
	}
	if len(items) != 5 {
		t.Fatalf("items = %d, want 5", len(items))
	}
	want := time.Date(2022, time.January, 6, 12, 0, 0, 0, time.UTC)
	if !items[0].Fecha.Equal(want) {
		t.Errorf("first item fecha = %v, want %v", items[0].Fecha, want)
	}
}

func TestListRecords_InvalidParams(t *testing.T) {
	env := newTestEnv(t, &fakeRepo{rows: seedRows(5)}, "", false)

	tests := []struct {
		name   string
		target string
	}{
		{"limit zero", "/records?limit=0"},
		{"limit above cap", "/records?limit=101"},
		{"limit not a number", "/records?limit=abc"},
		{"negative offset", "/records?offset=-1"},
		{"unknown order", "/records?order=fecha_random"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "GET", tt.target, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestGetRecord(t *testing.T) {
	env := newTestEnv(t, &fakeRepo{rows: seedRows(3)}, "", false)

	t.Run("found", func(t *testing.T) {
		rec := env.do(t, "GET", "/records/2", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var got models.Accident
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if got.AccidenteID != 2 {
			t.Errorf("accidente_id = %d, want 2", got.AccidenteID)
		}
	})

	t.Run("not found", func(t *testing.T) {
		rec := env.do(t, "GET", "/records/999", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("non numeric id", func(t *testing.T) {
		rec := env.do(t, "GET", "/records/abc", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestSearchRecords_Classification(t *testing.T) {
	env := newTestEnv(t, &fakeRepo{rows: seedRows(30)}, "", false)

	rec := env.do(t, "GET", "/search?clasacc=fatal&limit=100", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	total, items := decodeSearchResponse(t, rec)
	if total != 10 {
		t.Errorf("total = %d, want 10", total)
	}
	for _, rec := range items {
		if rec.ClasAcc == nil || !strings.EqualFold(*rec.ClasAcc, "Fatal") {
			t.Errorf("row %d classification = %v, want Fatal", rec.AccidenteID, rec.ClasAcc)
		}
	}
}

func TestSearchRecords_InvalidParams(t *testing.T) {
	env := newTestEnv(t, &fakeRepo{rows: seedRows(5)}, "", false)

	tests := []struct {
		name   string
		target string
	}{
		{"id_entidad not a number", "/search?id_entidad=abc"},
		{"id_municipio not a number", "/search?id_municipio=4.5"},
		{"bad desde", "/search?desde=15-01-2022"},
		{"bad hasta", "/search?hasta=yesterday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "GET", tt.target, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestRefreshETL_RequiresToken(t *testing.T) {
	repo := &fakeRepo{}
	env := newTestEnv(t, repo, writeSourceCSV(t, 10), false)

	tests := []struct {
		name    string
		headers map[string]string
	}{
		{name: "no header"},
		{name: "wrong scheme", headers: map[string]string{"Authorization": "Basic abc"}},
		{name: "garbage token", headers: map[string]string{"Authorization": "Bearer not.a.jwt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "POST", "/admin/refresh-etl", tt.headers)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}

	if repo.replaceCalls != 0 {
		t.Errorf("pipeline ran %d times on rejected requests, want 0", repo.replaceCalls)
	}
}

func TestRefreshETL_Success(t *testing.T) {
	repo := &fakeRepo{}
	env := newTestEnv(t, repo, writeSourceCSV(t, 150), false)

	token, err := env.auth.Issue("etl_admin", time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	rec := env.do(t, "POST", "/admin/refresh-etl", map[string]string{
		"Authorization": "Bearer " + token,
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp RefreshResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
	if resp.Inserted != 100 {
		t.Errorf("inserted = %d, want 100", resp.Inserted)
	}
	if repo.replaceCalls != 1 {
		t.Errorf("replace calls = %d, want 1", repo.replaceCalls)
	}
}

func TestRefreshETL_ConcurrentConflict(t *testing.T) {
	repo := &fakeRepo{
		replaceStarted: make(chan struct{}),
		replaceRelease: make(chan struct{}),
	}
	env := newTestEnv(t, repo, writeSourceCSV(t, 10), false)

	token, err := env.auth.Issue("etl_admin", time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	headers := map[string]string{"Authorization": "Bearer " + token}

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		first <- env.do(t, "POST", "/admin/refresh-etl", headers)
	}()

	// The first refresh is now mid-load and holds the run lock.
	<-repo.replaceStarted

	rec := env.do(t, "POST", "/admin/refresh-etl", headers)
	if rec.Code != http.StatusConflict {
		t.Errorf("concurrent refresh status = %d, want 409", rec.Code)
	}

	close(repo.replaceRelease)
	if rec := <-first; rec.Code != http.StatusOK {
		t.Errorf("first refresh status = %d, want 200", rec.Code)
	}

	if repo.replaceCalls != 1 {
		t.Errorf("replace calls = %d, want 1 (rejected run must not reach the store)", repo.replaceCalls)
	}
}

func TestRefreshETL_PipelineFailure(t *testing.T) {
	repo := &fakeRepo{}
	env := newTestEnv(t, repo, filepath.Join(t.TempDir(), "missing.csv"), false)

	token, err := env.auth.Issue("etl_admin", time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	rec := env.do(t, "POST", "/admin/refresh-etl", map[string]string{
		"Authorization": "Bearer " + token,
	})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestDevToken(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		env := newTestEnv(t, &fakeRepo{}, "", true)

		rec := env.do(t, "GET", "/auth/dev-token", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var resp TokenResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		subject, err := env.auth.Verify(resp.Token)
		if err != nil {
			t.Fatalf("minted token does not verify: %v", err)
		}
		if subject != "etl_admin" {
			t.Errorf("subject = %q, want etl_admin", subject)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t, &fakeRepo{}, "", false)

		rec := env.do(t, "GET", "/auth/dev-token", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404 when disabled", rec.Code)
		}
	})
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		env := newTestEnv(t, &fakeRepo{}, "", false)
		rec := env.do(t, "GET", "/health", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("unhealthy", func(t *testing.T) {
		env := newTestEnv(t, &fakeRepo{healthErr: fmt.Errorf("connection refused")}, "", false)
		rec := env.do(t, "GET", "/health", nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})
}
