package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"scsc-homepage/backend/internal/dto"
	"scsc-homepage/backend/internal/model"
	"scsc-homepage/backend/internal/service"
	"scsc-homepage/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock LifecycleService ──

type mockLifecycleService struct {
	getResult    *dto.GlobalStatusResponse
	getErr       error
	updateResult *dto.TransitionResult
	updateErr    error

	gotUserID string
	gotStatus string
}

func (m *mockLifecycleService) GetGlobalStatus(_ context.Context) (*dto.GlobalStatusResponse, error) {
	return m.getResult, m.getErr
}
func (m *mockLifecycleService) UpdateGlobalStatus(_ context.Context, actingUserID, requested string) (*dto.TransitionResult, error) {
	m.gotUserID = actingUserID
	m.gotStatus = requested
	return m.updateResult, m.updateErr
}

// ── Mock DepositService ──

type mockDepositService struct {
	checkResult   dto.DepositResult
	batchResult   *dto.BatchDepositResponse
	batchErr      error
	exportErr     error
	standbyResult []dto.StandbyResponse
	standbyErr    error

	gotRecord dto.DepositRecord
	gotCSV    string
}

func (m *mockDepositService) Check(_ context.Context, record dto.DepositRecord) dto.DepositResult {
	m.gotRecord = record
	return m.checkResult
}
func (m *mockDepositService) BatchCheck(_ context.Context, r io.Reader) (*dto.BatchDepositResponse, error) {
	b, _ := io.ReadAll(r)
	m.gotCSV = string(b)
	return m.batchResult, m.batchErr
}
func (m *mockDepositService) ExportResults(_ *dto.BatchDepositResponse, w io.Writer) error {
	if m.exportErr != nil {
		return m.exportErr
	}
	_, err := w.Write([]byte("xlsx-bytes"))
	return err
}
func (m *mockDepositService) ListStandby(_ context.Context) ([]dto.StandbyResponse, error) {
	return m.standbyResult, m.standbyErr
}

// ── Mock BackupService ──

type mockBackupService struct {
	path      string
	backupErr error
	list      []dto.BackupResponse
	listErr   error

	gotReason string
	gotLimit  int
}

func (m *mockBackupService) Backup(_ context.Context, reason string) (string, error) {
	m.gotReason = reason
	return m.path, m.backupErr
}
func (m *mockBackupService) ListRecent(_ context.Context, limit int) ([]dto.BackupResponse, error) {
	m.gotLimit = limit
	return m.list, m.listErr
}
func (m *mockBackupService) StartSchedule(_ string) (*cron.Cron, error) { return nil, nil }

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

func setupGin() (*gin.Engine, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	r := gin.New()
	return r, w
}

func setAuth(c *gin.Context) {
	c.Set("user_id", "test-user-id")
	c.Set("role", model.RolePresident)
}

func withAuth(c *gin.Context) {
	setAuth(c)
	c.Next()
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func multipartCSV(t *testing.T, field, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, "bank.csv")
		if err != nil {
			t.Fatalf("创建表单文件失败: %v", err)
		}
		fw.Write([]byte(content))
	} else {
		mw.WriteField("note", "no file")
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

// ═══════════════════════════════════════════════════════════
// GlobalStatusHandler Tests
// ═══════════════════════════════════════════════════════════

func TestGlobalStatusHandler_Get_Success(t *testing.T) {
	mock := &mockLifecycleService{getResult: &dto.GlobalStatusResponse{
		Status: "active", Year: 2025, Semester: 1, Period: "2025-1",
	}}
	h := NewGlobalStatusHandler(mock)

	r, w := setupGin()
	r.GET("/global-status", withAuth, h.GetGlobalStatus)
	r.ServeHTTP(w, httptest.NewRequest("GET", "/global-status", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"period":"2025-1"`) {
		t.Errorf("响应缺少 period: %s", w.Body.String())
	}
}

func TestGlobalStatusHandler_Update_Success(t *testing.T) {
	mock := &mockLifecycleService{updateResult: &dto.TransitionResult{
		From: "active", To: "inactive", Year: 2025, Semester: 2, BackupPath: "/var/backups/x.dump",
	}}
	h := NewGlobalStatusHandler(mock)

	r, w := setupGin()
	r.PUT("/global-status", withAuth, h.UpdateGlobalStatus)
	req := httptest.NewRequest("PUT", "/global-status", jsonBody(dto.UpdateGlobalStatusRequest{Status: "inactive"}))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if mock.gotUserID != "test-user-id" || mock.gotStatus != "inactive" {
		t.Errorf("参数未透传: user=%q status=%q", mock.gotUserID, mock.gotStatus)
	}
}

func TestGlobalStatusHandler_Update_BadJSON(t *testing.T) {
	h := NewGlobalStatusHandler(&mockLifecycleService{})

	r, w := setupGin()
	r.PUT("/global-status", withAuth, h.UpdateGlobalStatus)
	req := httptest.NewRequest("PUT", "/global-status", bytes.NewReader([]byte("invalid json")))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 10001 {
		t.Errorf("expected code 10001, got %d", resp.Code)
	}
}

func TestGlobalStatusHandler_Update_Unauthenticated(t *testing.T) {
	h := NewGlobalStatusHandler(&mockLifecycleService{})

	r, w := setupGin()
	r.PUT("/global-status", h.UpdateGlobalStatus)
	req := httptest.NewRequest("PUT", "/global-status", jsonBody(dto.UpdateGlobalStatusRequest{Status: "active"}))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestGlobalStatusHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"invalid", fmt.Errorf("%w: inactive -> active", service.ErrInvalidTransition), http.StatusBadRequest, 21001},
		{"in progress", service.ErrTransitionInProgress, http.StatusConflict, 21002},
		{"reconciling", service.ErrReconciliationInProgress, http.StatusConflict, 21007},
		{"precondition", fmt.Errorf("%w: grant", service.ErrTransitionPrecondition), http.StatusPreconditionFailed, 21003},
		{"backup", fmt.Errorf("%w: exit 1", service.ErrBackupFailed), http.StatusInternalServerError, 21004},
		{"bot", fmt.Errorf("%w: timeout", service.ErrBotUnavailable), http.StatusServiceUnavailable, 21005},
		{"not found", service.ErrGlobalStatusNotFound, http.StatusNotFound, 21006},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, 50000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewGlobalStatusHandler(&mockLifecycleService{updateErr: tt.err})

			r, w := setupGin()
			r.PUT("/global-status", withAuth, h.UpdateGlobalStatus)
			req := httptest.NewRequest("PUT", "/global-status", jsonBody(dto.UpdateGlobalStatusRequest{Status: "active"}))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.wantCode {
				t.Errorf("expected code %d, got %d", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestGlobalStatusHandler_InvalidTransitionDetails(t *testing.T) {
	err := fmt.Errorf("%w: inactive -> active", service.ErrInvalidTransition)
	h := NewGlobalStatusHandler(&mockLifecycleService{updateErr: err})

	r, w := setupGin()
	r.PUT("/global-status", withAuth, h.UpdateGlobalStatus)
	req := httptest.NewRequest("PUT", "/global-status", jsonBody(dto.UpdateGlobalStatusRequest{Status: "active"}))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	resp := parseResponse(w)
	if !strings.Contains(resp.Details, "inactive -> active") {
		t.Errorf("details 应包含切换方向, got %q", resp.Details)
	}
}

// ═══════════════════════════════════════════════════════════
// DepositHandler Tests
// ═══════════════════════════════════════════════════════════

func TestDepositHandler_Check_Success(t *testing.T) {
	mock := &mockDepositService{checkResult: dto.DepositResult{ResultCode: 200, ResultMsg: "ok", Users: []dto.DepositUser{}}}
	h := NewDepositHandler(mock)

	r, w := setupGin()
	r.POST("/deposits/check", withAuth, h.CheckDeposit)
	ts := time.Date(2025, 3, 2, 1, 0, 0, 0, time.UTC)
	req := httptest.NewRequest("POST", "/deposits/check", jsonBody(dto.DepositRecord{
		Amount: 20000, DepositTime: ts, DepositName: "Kim12",
	}))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.gotRecord.DepositName != "Kim12" || !mock.gotRecord.DepositTime.Equal(ts) {
		t.Errorf("记录未透传: %+v", mock.gotRecord)
	}
}

func TestDepositHandler_Check_BusinessFailureStill200(t *testing.T) {
	mock := &mockDepositService{checkResult: dto.DepositResult{ResultCode: 404, ResultMsg: "not found", Users: []dto.DepositUser{}}}
	h := NewDepositHandler(mock)

	r, w := setupGin()
	r.POST("/deposits/check", withAuth, h.CheckDeposit)
	req := httptest.NewRequest("POST", "/deposits/check", jsonBody(dto.DepositRecord{
		Amount: 20000, DepositTime: time.Date(2025, 3, 2, 1, 0, 0, 0, time.UTC), DepositName: "Ghost99",
	}))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"result_code":404`) {
		t.Errorf("响应缺少结果码: %s", w.Body.String())
	}
}

func TestDepositHandler_Check_MissingFields(t *testing.T) {
	h := NewDepositHandler(&mockDepositService{})

	r, w := setupGin()
	r.POST("/deposits/check", withAuth, h.CheckDeposit)
	req := httptest.NewRequest("POST", "/deposits/check", jsonBody(map[string]any{"amount": 20000}))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 10001 {
		t.Errorf("expected code 10001, got %d", resp.Code)
	}
}

func TestDepositHandler_Batch_JSON(t *testing.T) {
	mock := &mockDepositService{batchResult: &dto.BatchDepositResponse{
		Success: 1, Failure: 1,
		Results: []dto.DepositResult{{ResultCode: 200, Row: 6}, {ResultCode: 404, Row: 8}},
	}}
	h := NewDepositHandler(mock)

	r, w := setupGin()
	r.POST("/deposits/batch", withAuth, h.BatchCheck)
	body, ct := multipartCSV(t, "file", "csv-content")
	req := httptest.NewRequest("POST", "/deposits/batch", body)
	req.Header.Set("Content-Type", ct)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if mock.gotCSV != "csv-content" {
		t.Errorf("上传内容未透传: %q", mock.gotCSV)
	}
	if !strings.Contains(w.Body.String(), `"success":1`) {
		t.Errorf("响应缺少汇总: %s", w.Body.String())
	}
}

func TestDepositHandler_Batch_XLSX(t *testing.T) {
	mock := &mockDepositService{batchResult: &dto.BatchDepositResponse{}}
	h := NewDepositHandler(mock)

	r, w := setupGin()
	r.POST("/deposits/batch", withAuth, h.BatchCheck)
	body, ct := multipartCSV(t, "file", "csv-content")
	req := httptest.NewRequest("POST", "/deposits/batch?format=xlsx", body)
	req.Header.Set("Content-Type", ct)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != xlsxContentType {
		t.Errorf("expected xlsx content type, got %q", got)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "attachment") {
		t.Errorf("缺少 Content-Disposition")
	}
	if w.Body.String() != "xlsx-bytes" {
		t.Errorf("unexpected body %q", w.Body.String())
	}
}

func TestDepositHandler_Batch_NoFile(t *testing.T) {
	h := NewDepositHandler(&mockDepositService{})

	r, w := setupGin()
	r.POST("/deposits/batch", withAuth, h.BatchCheck)
	body, ct := multipartCSV(t, "", "")
	req := httptest.NewRequest("POST", "/deposits/batch", body)
	req.Header.Set("Content-Type", ct)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 22001 {
		t.Errorf("expected code 22001, got %d", resp.Code)
	}
}

func TestDepositHandler_Batch_TooLarge(t *testing.T) {
	h := NewDepositHandler(&mockDepositService{})

	r, w := setupGin()
	r.POST("/deposits/batch", withAuth, h.BatchCheck)
	body, ct := multipartCSV(t, "file", strings.Repeat("a", int(service.MaxBankCSVBytes)+1))
	req := httptest.NewRequest("POST", "/deposits/batch", body)
	req.Header.Set("Content-Type", ct)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 22002 {
		t.Errorf("expected code 22002, got %d", resp.Code)
	}
}

func TestDepositHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		batchErr   error
		exportErr  error
		query      string
		wantStatus int
		wantCode   int
	}{
		{"too large", service.ErrCSVTooLarge, nil, "", http.StatusRequestEntityTooLarge, 22002},
		{"too many rows", service.ErrCSVTooManyRows, nil, "", http.StatusRequestEntityTooLarge, 22003},
		{"missing columns", fmt.Errorf("%w: 입금액", service.ErrCSVMissingColumns), nil, "", http.StatusBadRequest, 22004},
		{"malformed", fmt.Errorf("%w: line 3", service.ErrCSVMalformed), nil, "", http.StatusBadRequest, 22005},
		{"export", nil, fmt.Errorf("%w: disk", service.ErrDepositExportFailed), "?format=xlsx", http.StatusInternalServerError, 22006},
		{"unknown", errors.New("boom"), nil, "", http.StatusInternalServerError, 50000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockDepositService{
				batchResult: &dto.BatchDepositResponse{},
				batchErr:    tt.batchErr,
				exportErr:   tt.exportErr,
			}
			h := NewDepositHandler(mock)

			r, w := setupGin()
			r.POST("/deposits/batch", withAuth, h.BatchCheck)
			body, ct := multipartCSV(t, "file", "x")
			req := httptest.NewRequest("POST", "/deposits/batch"+tt.query, body)
			req.Header.Set("Content-Type", ct)
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.wantCode {
				t.Errorf("expected code %d, got %d", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestDepositHandler_ListStandby(t *testing.T) {
	mock := &mockDepositService{standbyResult: []dto.StandbyResponse{{ID: 1, UserName: "Kim", DepositName: "Kim12"}}}
	h := NewDepositHandler(mock)

	r, w := setupGin()
	r.GET("/deposits/standby", withAuth, h.ListStandby)
	r.ServeHTTP(w, httptest.NewRequest("GET", "/deposits/standby", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"deposit_name":"Kim12"`) {
		t.Errorf("响应缺少申请: %s", w.Body.String())
	}
}

func TestDepositHandler_ListStandby_Error(t *testing.T) {
	h := NewDepositHandler(&mockDepositService{standbyErr: errors.New("db down")})

	r, w := setupGin()
	r.GET("/deposits/standby", withAuth, h.ListStandby)
	r.ServeHTTP(w, httptest.NewRequest("GET", "/deposits/standby", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// BackupHandler Tests
// ═══════════════════════════════════════════════════════════

func TestBackupHandler_List(t *testing.T) {
	mock := &mockBackupService{list: []dto.BackupResponse{{ID: 1, Path: "/var/backups/a.dump"}}}
	h := NewBackupHandler(mock)

	r, w := setupGin()
	r.GET("/backups", withAuth, h.ListBackups)
	r.ServeHTTP(w, httptest.NewRequest("GET", "/backups?limit=5", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.gotLimit != 5 {
		t.Errorf("expected limit 5, got %d", mock.gotLimit)
	}
}

func TestBackupHandler_List_DefaultLimit(t *testing.T) {
	mock := &mockBackupService{}
	h := NewBackupHandler(mock)

	r, w := setupGin()
	r.GET("/backups", withAuth, h.ListBackups)
	r.ServeHTTP(w, httptest.NewRequest("GET", "/backups", nil))

	if mock.gotLimit != 20 {
		t.Errorf("expected default limit 20, got %d", mock.gotLimit)
	}
}

func TestBackupHandler_Create(t *testing.T) {
	mock := &mockBackupService{path: "/var/backups/b.dump"}
	h := NewBackupHandler(mock)

	r, w := setupGin()
	r.POST("/backups", withAuth, h.CreateBackup)
	r.ServeHTTP(w, httptest.NewRequest("POST", "/backups", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.gotReason != "manual-test-user-id" {
		t.Errorf("unexpected reason %q", mock.gotReason)
	}
}

func TestBackupHandler_Create_Failed(t *testing.T) {
	mock := &mockBackupService{backupErr: fmt.Errorf("%w: exit 1", service.ErrBackupFailed)}
	h := NewBackupHandler(mock)

	r, w := setupGin()
	r.POST("/backups", withAuth, h.CreateBackup)
	r.ServeHTTP(w, httptest.NewRequest("POST", "/backups", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 23001 {
		t.Errorf("expected code 23001, got %d", resp.Code)
	}
}
