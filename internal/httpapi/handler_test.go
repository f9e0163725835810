package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"classattend/internal/attendance"
	"classattend/internal/auth"
	"classattend/internal/clock"
)

var ist = time.FixedZone("IST", 5*3600+1800)

var classStart = time.Date(2026, 10, 18, 10, 0, 0, 0, ist)

type testServer struct {
	router *gin.Engine
	mem    *attendance.Memory
	issuer *auth.Issuer
}

func newTestServer(t *testing.T, now time.Time, store attendance.Store, checks map[string]HealthCheck) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := attendance.NewMemory()
	mem.AddStudent(attendance.Student{RollNumber: "21CS042", Name: "Asha", Year: 3, Branch: "CSE"})
	mem.AddStudent(attendance.Student{RollNumber: "21CS043", Name: "Vik", Year: 3, Branch: "CSE"})
	mem.AddClass(attendance.ScheduledClass{
		ClassName: "Room 301", Subject: "DBMS", TeacherName: "Dr. Rao",
		Date: time.Date(2026, 10, 18, 0, 0, 0, 0, ist), Day: "Sunday",
		StartTime: "10:00", EndTime: "11:00", ClassCode: "DB42", Year: 3, Branch: "CSE",
	})
	mem.AddLocation(attendance.ClassLocation{ClassName: "room 301", Latitude: 12.9716, Longitude: 77.5946, RadiusMeters: 50, BeaconID: "ABC123"})
	if store == nil {
		store = mem
	}

	issuer := auth.NewIssuer("classattend", "test-key", 15*time.Minute, time.Hour)
	h := New(Options{
		Service: attendance.NewService(store, clock.Fixed{At: now}),
		Issuer:  issuer,
		Refresh: auth.NewMemoryRefreshStore(),
		Checks:  checks,
	})
	r := gin.New()
	h.Register(r)
	return &testServer{router: r, mem: mem, issuer: issuer}
}

func (s *testServer) token(t *testing.T, roll string) string {
	t.Helper()
	pair, err := s.issuer.Issue(roll, auth.RoleStudent, "dev-1")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return pair.AccessToken
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w, decoded
}

func submission(overrides map[string]interface{}) map[string]interface{} {
	body := map[string]interface{}{
		"rollNumber":      "21CS042",
		"className":       "Room 301",
		"classCode":       "DB42",
		"latitude":        12.97161,
		"longitude":       77.59462,
		"beaconProximity": map[string]string{"beaconId": " abc123 "},
	}
	for k, v := range overrides {
		body[k] = v
	}
	return body
}

func TestSubmitAttendance(t *testing.T) {
	s := newTestServer(t, classStart.Add(4*time.Minute), nil, nil)
	token := s.token(t, "21CS042")

	w, body := s.do(t, http.MethodPost, "/v1/attendance", token, submission(nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if body["className"] != "Room 301" || body["subject"] != "DBMS" || body["date"] != "2026-10-18" || body["time"] != "10:04:00" {
		t.Fatalf("unexpected receipt %v", body)
	}
	if len(s.mem.Records()) != 1 {
		t.Fatalf("expected one record")
	}

	w, body = s.do(t, http.MethodPost, "/v1/attendance", token, submission(nil))
	if w.Code != http.StatusBadRequest || body["error"] != "already_marked" {
		t.Fatalf("expected already_marked, got %d %v", w.Code, body)
	}
	if len(s.mem.Records()) != 1 {
		t.Fatalf("expected still one record")
	}
}

func TestSubmitAttendanceErrors(t *testing.T) {
	cases := []struct {
		name      string
		now       time.Time
		overrides map[string]interface{}
		status    int
		code      string
		details   map[string]interface{}
	}{
		{
			name:      "unknown class",
			overrides: map[string]interface{}{"classCode": "NOPE"},
			status:    http.StatusNotFound,
			code:      "class_not_found",
		},
		{
			name:      "outside geofence",
			overrides: map[string]interface{}{"latitude": 12.9816},
			status:    http.StatusForbidden,
			code:      "out_of_range",
		},
		{
			name:      "wrong beacon",
			overrides: map[string]interface{}{"beaconProximity": map[string]string{"beaconId": "zzz"}},
			status:    http.StatusForbidden,
			code:      "beacon_mismatch",
			details:   map[string]interface{}{"expected": "abc123", "received": "zzz"},
		},
		{
			name:      "missing beacon payload",
			overrides: map[string]interface{}{"beaconProximity": nil},
			status:    http.StatusForbidden,
			code:      "beacon_mismatch",
		},
		{
			name:    "too early",
			now:     classStart.Add(-7 * time.Minute),
			status:  http.StatusBadRequest,
			code:    "too_early",
			details: map[string]interface{}{"minutesUntilStart": float64(7)},
		},
		{
			name:    "window expired",
			now:     classStart.Add(20 * time.Minute),
			status:  http.StatusBadRequest,
			code:    "window_expired",
			details: map[string]interface{}{"minutesLate": float64(5)},
		},
		{
			name:      "latitude out of bounds",
			overrides: map[string]interface{}{"latitude": 91.0},
			status:    http.StatusBadRequest,
			code:      "invalid_request",
		},
		{
			name:      "blank class code",
			overrides: map[string]interface{}{"classCode": "  "},
			status:    http.StatusBadRequest,
			code:      "invalid_request",
		},
		{
			name:      "missing longitude",
			overrides: map[string]interface{}{"longitude": nil},
			status:    http.StatusBadRequest,
			code:      "invalid_request",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			now := tc.now
			if now.IsZero() {
				now = classStart.Add(time.Minute)
			}
			s := newTestServer(t, now, nil, nil)
			w, body := s.do(t, http.MethodPost, "/v1/attendance", s.token(t, "21CS042"), submission(tc.overrides))
			if w.Code != tc.status || body["error"] != tc.code {
				t.Fatalf("expected %d %s, got %d %v", tc.status, tc.code, w.Code, body)
			}
			if tc.details != nil {
				details, _ := body["details"].(map[string]interface{})
				for k, v := range tc.details {
					if details[k] != v {
						t.Fatalf("detail %s: expected %v got %v", k, v, details[k])
					}
				}
			}
			if n := len(s.mem.Records()); n != 0 {
				t.Fatalf("expected no records, got %d", n)
			}
		})
	}
}

func TestSubmitOutOfRangeDetails(t *testing.T) {
	s := newTestServer(t, classStart, nil, nil)
	_, body := s.do(t, http.MethodPost, "/v1/attendance", s.token(t, "21CS042"), submission(map[string]interface{}{"latitude": 12.9816}))
	details, _ := body["details"].(map[string]interface{})
	if details["radius"] != float64(50) {
		t.Fatalf("expected radius 50, got %v", details["radius"])
	}
	if d, _ := details["distance"].(float64); d < 1000 || d > 1200 {
		t.Fatalf("expected distance around 1.1km, got %v", details["distance"])
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, classStart, nil, nil)

	w, body := s.do(t, http.MethodPost, "/v1/attendance", "", submission(nil))
	if w.Code != http.StatusUnauthorized || body["error"] != "missing_token" {
		t.Fatalf("expected 401 missing_token, got %d %v", w.Code, body)
	}

	w, body = s.do(t, http.MethodPost, "/v1/attendance", s.token(t, "21CS043"), submission(nil))
	if w.Code != http.StatusForbidden || body["error"] != "roll_number_mismatch" {
		t.Fatalf("expected 403 roll_number_mismatch, got %d %v", w.Code, body)
	}

	w, _ = s.do(t, http.MethodGet, "/v1/students/21CS042/attendance", s.token(t, "21CS043"), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another student's history, got %d", w.Code)
	}

	w, _ = s.do(t, http.MethodGet, "/v1/students/21CS042/notifications", "garbage", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", w.Code)
	}
}

func TestNotificationsEndpoint(t *testing.T) {
	s := newTestServer(t, classStart.Add(10*time.Minute), nil, nil)

	w, body := s.do(t, http.MethodGet, "/v1/students/21CS042/notifications", s.token(t, "21CS042"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	items, _ := body["notifications"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("expected 1 notification, got %v", body["notifications"])
	}
	n := items[0].(map[string]interface{})
	if n["status"] != "active" || n["minutesRemaining"] != float64(5) || n["teacherName"] != "Dr. Rao" {
		t.Fatalf("unexpected notification %v", n)
	}
	if _, ok := n["attendanceId"]; ok {
		t.Fatalf("attendanceId must be omitted when not marked")
	}
	serverTime, err := time.Parse(time.RFC3339, body["serverTime"].(string))
	if err != nil || !serverTime.Equal(classStart.Add(10*time.Minute)) {
		t.Fatalf("unexpected server time %v (%v)", body["serverTime"], err)
	}
}

func TestNotificationsUnknownStudent(t *testing.T) {
	s := newTestServer(t, classStart, nil, nil)
	w, body := s.do(t, http.MethodGet, "/v1/students/99XX000/notifications", s.token(t, "99XX000"), nil)
	if w.Code != http.StatusNotFound || body["error"] != "student_not_found" {
		t.Fatalf("expected 404 student_not_found, got %d %v", w.Code, body)
	}
	if _, ok := body["notifications"]; ok {
		t.Fatalf("expected no class data")
	}
}

func TestHistoryEndpoint(t *testing.T) {
	s := newTestServer(t, classStart.Add(time.Minute), nil, nil)
	token := s.token(t, "21CS042")
	if w, _ := s.do(t, http.MethodPost, "/v1/attendance", token, submission(nil)); w.Code != http.StatusCreated {
		t.Fatalf("submit failed: %d", w.Code)
	}
	_, _ = s.mem.InsertRecord(context.Background(), attendance.Record{
		RollNumber: "21CS042", ClassName: "Room 301", Subject: "OS", Status: attendance.StatusPresent,
		MarkedAt: classStart.Add(-24 * time.Hour), Day: classStart.Add(-24 * time.Hour),
	})

	w, body := s.do(t, http.MethodGet, "/v1/students/21CS042/attendance", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	history, _ := body["history"].([]interface{})
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %v", body["history"])
	}
	first := history[0].(map[string]interface{})
	if first["subject"] != "DBMS" || first["date"] != "18/10/2026" || first["time"] != "10:01 AM" || first["status"] != "Present" {
		t.Fatalf("unexpected newest entry %v", first)
	}
}

func TestInternalErrorsAreHidden(t *testing.T) {
	s := newTestServer(t, classStart, brokenStore{attendance.NewMemory()}, nil)
	w, body := s.do(t, http.MethodGet, "/v1/students/21CS042/attendance", s.token(t, "21CS042"), nil)
	if w.Code != http.StatusInternalServerError || body["error"] != "internal_error" {
		t.Fatalf("expected 500 internal_error, got %d %v", w.Code, body)
	}
	if _, ok := body["details"]; ok {
		t.Fatalf("internal errors must not carry details")
	}
}

type brokenStore struct{ *attendance.Memory }

func (brokenStore) StudentByRoll(context.Context, string) (*attendance.Student, error) {
	return nil, errors.New("pq: relation \"students\" does not exist")
}

func TestDeviceRegistrationAndRefresh(t *testing.T) {
	s := newTestServer(t, classStart, nil, nil)

	w, body := s.do(t, http.MethodPost, "/v1/devices/register", "", map[string]string{"rollNumber": "21CS042", "deviceId": "pixel-7"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %v", w.Code, body)
	}
	access, _ := body["accessToken"].(string)
	refresh, _ := body["refreshToken"].(string)
	if access == "" || refresh == "" {
		t.Fatalf("expected tokens, got %v", body)
	}

	if w, _ := s.do(t, http.MethodPost, "/v1/attendance", access, submission(nil)); w.Code != http.StatusCreated {
		t.Fatalf("expected issued token to authorise submission, got %d", w.Code)
	}

	w, body = s.do(t, http.MethodPost, "/v1/devices/register", "", map[string]string{"rollNumber": "21CS042", "deviceId": "iphone"})
	if w.Code != http.StatusConflict || body["error"] != "device_already_bound" {
		t.Fatalf("expected 409, got %d %v", w.Code, body)
	}

	w, body = s.do(t, http.MethodPost, "/v1/devices/register", "", map[string]string{"rollNumber": "00XX000", "deviceId": "x"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown student, got %d %v", w.Code, body)
	}

	w, body = s.do(t, http.MethodPost, "/v1/tokens/refresh", "", map[string]string{"refreshToken": refresh})
	if w.Code != http.StatusOK || body["accessToken"] == "" {
		t.Fatalf("expected refreshed tokens, got %d %v", w.Code, body)
	}
	w, _ = s.do(t, http.MethodPost, "/v1/tokens/refresh", "", map[string]string{"refreshToken": refresh})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected reused refresh token to be rejected, got %d", w.Code)
	}
	w, _ = s.do(t, http.MethodPost, "/v1/tokens/refresh", "", map[string]string{"refreshToken": access})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected access token to be rejected for refresh, got %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	checks := map[string]HealthCheck{
		"db":    func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("dial tcp: refused") },
	}
	s := newTestServer(t, classStart, nil, checks)
	w, body := s.do(t, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusServiceUnavailable || body["db"] != true || body["redis"] != false {
		t.Fatalf("expected degraded health, got %d %v", w.Code, body)
	}
}

func TestAuthDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mem := attendance.NewMemory()
	mem.AddStudent(attendance.Student{RollNumber: "21CS042", Year: 3, Branch: "CSE"})
	h := New(Options{
		Service:      attendance.NewService(mem, clock.Fixed{At: classStart}),
		Issuer:       auth.NewIssuer("classattend", "k", time.Minute, time.Hour),
		Refresh:      auth.NewMemoryRefreshStore(),
		AuthDisabled: true,
	})
	r := gin.New()
	h.Register(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/students/21CS042/attendance", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 without token when auth disabled, got %d", w.Code)
	}
}
