package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"screening-platform/internal/calls"
	"screening-platform/internal/candidates"
	"screening-platform/internal/notify"
	"screening-platform/internal/scheduler"
	"screening-platform/internal/timeexpr"

	"github.com/gin-gonic/gin"
)

type stubDialer struct {
	callID string
	err    error
	phones []string
}

func (d *stubDialer) PlaceCall(ctx context.Context, phoneNumber string) (scheduler.DialResult, error) {
	d.phones = append(d.phones, phoneNumber)
	if d.err != nil {
		return scheduler.DialResult{}, d.err
	}
	return scheduler.DialResult{CallID: d.callID}, nil
}

type apiFixture struct {
	router *gin.Engine
	calls  *calls.MemoryRepo
	cands  *candidates.MemoryRepo
	notes  *notify.MemoryRepo
	dialer *stubDialer
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	callRepo := calls.NewMemoryRepo()
	candRepo := candidates.NewMemoryRepo()
	noteRepo := notify.NewMemoryRepo()
	dialer := &stubDialer{callID: "CA-stub"}

	svc := calls.NewService(callRepo, candRepo, noteRepo, notify.NewMemoryPublisher(), nil)
	sched := scheduler.New(scheduler.Config{}, candRepo, scheduler.NewMemoryGuard(), dialer, noteRepo, nil)

	h := Handlers{
		Calls:         svc,
		Candidates:    candRepo,
		Notifications: noteRepo,
		Scheduler:     sched,
		Dialer:        dialer,
		Resolver:      timeexpr.NewResolver(),
	}

	r := gin.New()
	r.POST("/api/calls/status", h.ReportStatus)
	r.POST("/api/calls/data", h.SaveFinalData)
	r.GET("/api/calls", h.ListCalls)
	r.GET("/api/calls/active", h.ActiveCalls)
	r.GET("/api/calls/:call_id", h.GetCall)
	r.POST("/api/calls/retry", h.RetryCall)
	r.POST("/api/calls/outbound", h.OutboundCall)
	r.POST("/api/schedule", h.Schedule)
	r.GET("/api/candidates", h.ListCandidates)
	r.GET("/api/candidates/unsuccessful-calls", h.UnsuccessfulCalls)
	r.GET("/api/candidates/not-interested", h.NotInterested)
	r.GET("/api/candidates/:candidate_id", h.GetCandidate)
	r.GET("/api/notifications", h.ListNotifications)
	r.POST("/api/notifications/:notification_id/read", h.MarkNotificationRead)

	return &apiFixture{router: r, calls: callRepo, cands: candRepo, notes: noteRepo, dialer: dialer}
}

func (f *apiFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *strings.Reader
	if body == "" {
		rdr = strings.NewReader("")
	} else {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestReportStatusEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/calls/status",
		`{"call_sid":"CA-1","status":"initiated","phone_number":"+15550001111","direction":"outbound"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var call calls.Call
	if err := json.Unmarshal(w.Body.Bytes(), &call); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if call.CallID != "CA-1" || call.Status != calls.CallStatusInitiated {
		t.Fatalf("unexpected call: %+v", call)
	}

	// Missing call_sid is a client error.
	w = f.do(t, http.MethodPost, "/api/calls/status", `{"status":"ringing"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSaveFinalDataEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	body := `{
		"call_sid": "CA-2",
		"call_data": {
			"phone_number": "+15550002222",
			"start_time": "2026-02-10T09:00:00Z",
			"end_time": "2026-02-10T09:03:00Z",
			"summary": "screened"
		},
		"candidate_data": {
			"phone_number": "+15550002222",
			"name": "Jordan",
			"call_status": "Rescheduled",
			"next_availability": "tomorrow 3pm"
		}
	}`
	w := f.do(t, http.MethodPost, "/api/calls/data", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Call      calls.Call           `json:"call"`
		Candidate candidates.Candidate `json:"candidate"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Call.Status != calls.CallStatusCompleted {
		t.Fatalf("call status = %s, want completed", resp.Call.Status)
	}
	if resp.Call.DurationSeconds == nil || *resp.Call.DurationSeconds != 180 {
		t.Fatalf("duration = %v, want 180", resp.Call.DurationSeconds)
	}
	if resp.Candidate.CallOutcome != candidates.OutcomeRescheduled {
		t.Fatalf("candidate outcome = %s", resp.Candidate.CallOutcome)
	}
	if resp.Call.CandidateID != resp.Candidate.ID {
		t.Fatal("call not linked to candidate snapshot")
	}

	// The snapshot is now queryable by id.
	w = f.do(t, http.MethodGet, "/api/candidates/"+resp.Candidate.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("candidate lookup = %d", w.Code)
	}
}

func TestCallLookupEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	f.do(t, http.MethodPost, "/api/calls/status", `{"call_sid":"CA-a","status":"ringing"}`)
	f.do(t, http.MethodPost, "/api/calls/status", `{"call_sid":"CA-b","status":"completed"}`)

	w := f.do(t, http.MethodGet, "/api/calls", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var list []calls.Call
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}

	w = f.do(t, http.MethodGet, "/api/calls/active", "")
	var active []calls.Call
	if err := json.Unmarshal(w.Body.Bytes(), &active); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(active) != 1 || active[0].CallID != "CA-a" {
		t.Fatalf("active = %+v", active)
	}

	if w := f.do(t, http.MethodGet, "/api/calls/CA-b", ""); w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/calls/CA-missing", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing get = %d, want 404", w.Code)
	}
}

func TestManualDialEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/calls/outbound", `{"phone_number":"+15553334444"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("outbound = %d, body %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["call_sid"] != "CA-stub" {
		t.Fatalf("call_sid = %v", resp["call_sid"])
	}

	w = f.do(t, http.MethodPost, "/api/calls/retry", `{"phone_number":"+15553334444","candidate_id":"cand-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("retry = %d", w.Code)
	}
	if len(f.dialer.phones) != 2 {
		t.Fatalf("dialed %d times, want 2", len(f.dialer.phones))
	}

	// Missing phone number never reaches the dialer.
	w = f.do(t, http.MethodPost, "/api/calls/outbound", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty phone = %d, want 400", w.Code)
	}
	if len(f.dialer.phones) != 2 {
		t.Fatal("dialer called with empty phone number")
	}
}

func TestScheduleEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	at := time.Now().Add(2 * time.Hour).UTC().Format(time.RFC3339)
	w := f.do(t, http.MethodPost, "/api/schedule",
		`{"candidate_id":"cand-9","phone_number":"+15559998888","time":"`+at+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("schedule = %d, body %s", w.Code, w.Body.String())
	}

	// Past times are rejected.
	w = f.do(t, http.MethodPost, "/api/schedule",
		`{"candidate_id":"cand-9","phone_number":"+15559998888","time":"2020-01-01T00:00:00Z"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("past schedule = %d, want 400", w.Code)
	}

	// Free-text times go through the resolver.
	w = f.do(t, http.MethodPost, "/api/schedule",
		`{"candidate_id":"cand-9","phone_number":"+15559998888","time_text":"in 2 hours"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("free-text schedule = %d, body %s", w.Code, w.Body.String())
	}
	w = f.do(t, http.MethodPost, "/api/schedule",
		`{"candidate_id":"cand-9","phone_number":"+15559998888","time_text":"whenever works"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("garbled schedule = %d, want 400", w.Code)
	}
}

func TestCandidateListEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	seed := []candidates.Candidate{
		{ID: "c1", PhoneNumber: "+1", CallOutcome: candidates.OutcomeRescheduled, NextAvailability: "tomorrow"},
		{ID: "c2", PhoneNumber: "+2", CallOutcome: candidates.OutcomeDisconnected},
		{ID: "c3", PhoneNumber: "+3", CallOutcome: candidates.OutcomeNotInterested},
		{ID: "c4", PhoneNumber: "+4", CallOutcome: candidates.OutcomeCompleted},
	}
	for _, cand := range seed {
		if err := f.cands.Insert(ctx, cand); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	var all []candidates.Candidate
	w := f.do(t, http.MethodGet, "/api/candidates", "")
	if err := json.Unmarshal(w.Body.Bytes(), &all); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("all = %d, want 4", len(all))
	}

	var unsuccessful []candidates.Candidate
	w = f.do(t, http.MethodGet, "/api/candidates/unsuccessful-calls", "")
	if err := json.Unmarshal(w.Body.Bytes(), &unsuccessful); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(unsuccessful) != 2 {
		t.Fatalf("unsuccessful = %d, want 2", len(unsuccessful))
	}

	var notInterested []candidates.Candidate
	w = f.do(t, http.MethodGet, "/api/candidates/not-interested", "")
	if err := json.Unmarshal(w.Body.Bytes(), &notInterested); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(notInterested) != 1 || notInterested[0].ID != "c3" {
		t.Fatalf("not-interested = %+v", notInterested)
	}

	if w := f.do(t, http.MethodGet, "/api/candidates/nope", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing candidate = %d, want 404", w.Code)
	}
}

func TestNotificationEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	// A missed terminal report creates a notification through the service.
	f.do(t, http.MethodPost, "/api/calls/status", `{"call_sid":"CA-m","status":"missed","phone_number":"+15550007777"}`)

	w := f.do(t, http.MethodGet, "/api/notifications", "")
	var list []notify.Notification
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].Type != notify.TypeMissedCall || list[0].Read {
		t.Fatalf("notifications = %+v", list)
	}

	w = f.do(t, http.MethodPost, "/api/notifications/"+list[0].ID+"/read", "")
	if w.Code != http.StatusOK {
		t.Fatalf("mark read = %d", w.Code)
	}
	w = f.do(t, http.MethodGet, "/api/notifications", "")
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !list[0].Read {
		t.Fatal("notification still unread after mark-read")
	}

	if w := f.do(t, http.MethodPost, "/api/notifications/bogus/read", ""); w.Code != http.StatusNotFound {
		t.Fatalf("bogus mark read = %d, want 404", w.Code)
	}
}
