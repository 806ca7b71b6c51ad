package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YiberMelo/ChronosSuite/internal/config"
	"github.com/YiberMelo/ChronosSuite/internal/store/memory"
)

const testAPIToken = "test-token"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Config{
		JWTSecret:              "test-secret",
		JWTExpiryMinutes:       60,
		APIToken:               testAPIToken,
		TOTPIssuer:             "ChronosSuite",
		RequireFutureEntry:     true,
		LoginAttemptsPerMinute: 3,
	}
	s, err := NewServer(cfg, memory.NewStore(), nil, nil)
	require.NoError(t, err)
	return s
}

type response struct {
	Code   int
	Header http.Header
	Body   map[string]any
}

func (r response) errorCode() string {
	e, _ := r.Body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

// call sends body as JSON. headers are key/value pairs.
func call(t *testing.T, s *Server, method, path string, body any, headers ...string) response {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	out := response{Code: rec.Code, Header: rec.Header()}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out.Body), rec.Body.String())
	}
	return out
}

func admin(t *testing.T, s *Server, method, path string, body any) response {
	t.Helper()
	return call(t, s, method, path, body, "X-Api-Key", testAPIToken)
}

func bearer(token string) []string {
	return []string{"Authorization", "Bearer " + token}
}

type directory struct {
	visitorID  int64
	employeeID int64
	locationID int64
}

func seedDirectory(t *testing.T, s *Server) directory {
	t.Helper()
	company := admin(t, s, http.MethodPost, "/v1/companies", map[string]any{"name": "Acme"})
	require.Equal(t, http.StatusCreated, company.Code, company.Body)
	companyID := company.Body["company"].(map[string]any)["id"]

	visitor := admin(t, s, http.MethodPost, "/v1/visitors", map[string]any{
		"first_name":     "Ana",
		"last_name":      "Gomez",
		"identification": "CC-100",
		"company_id":     companyID,
		"date_of_birth":  "1990-05-01",
	})
	require.Equal(t, http.StatusCreated, visitor.Code, visitor.Body)

	employee := admin(t, s, http.MethodPost, "/v1/employees", map[string]any{
		"first_name": "Luis",
		"last_name":  "Perez",
		"email":      "luis@example.com",
	})
	require.Equal(t, http.StatusCreated, employee.Code, employee.Body)

	location := admin(t, s, http.MethodPost, "/v1/locations", map[string]any{"name": "Main Lobby"})
	require.Equal(t, http.StatusCreated, location.Code, location.Body)

	id := func(r response, key string) int64 {
		return int64(r.Body[key].(map[string]any)["id"].(float64))
	}
	return directory{
		visitorID:  id(visitor, "visitor"),
		employeeID: id(employee, "employee"),
		locationID: id(location, "location"),
	}
}

func visitBody(d directory, entry time.Time) map[string]any {
	return map[string]any{
		"visitor_id":             d.visitorID,
		"authorized_employee_id": d.employeeID,
		"location_id":            d.locationID,
		"visit_purpose":          "Quarterly audit",
		"carried_objects":        "Laptop",
		"scheduled_entry_time":   entry.Format(time.RFC3339),
		"scheduled_exit_time":    entry.Add(2 * time.Hour).Format(time.RFC3339),
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	res := call(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, true, res.Body["success"])
	assert.NotEmpty(t, res.Header.Get(requestIDHeader))

	res = call(t, s, http.MethodGet, "/health", nil, requestIDHeader, "req-42")
	assert.Equal(t, "req-42", res.Header.Get(requestIDHeader))
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t)

	res := call(t, s, http.MethodGet, "/v1/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, false, res.Body["success"])
	assert.Equal(t, "unauthorized", res.errorCode())

	res = call(t, s, http.MethodGet, "/v1/dashboard", nil, bearer("not-a-token")...)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = call(t, s, http.MethodGet, "/v1/dashboard", nil, "X-Api-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	assert.Equal(t, http.StatusOK, admin(t, s, http.MethodGet, "/v1/dashboard", nil).Code)
	assert.Equal(t, http.StatusOK, call(t, s, http.MethodGet, "/v1/dashboard", nil, bearer(testAPIToken)...).Code)
	assert.Equal(t, http.StatusOK, call(t, s, http.MethodGet, "/v1/dashboard?token="+testAPIToken, nil).Code)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)
	creds := map[string]any{"username": "frontdesk", "password": "Secret!1"}

	res := call(t, s, http.MethodPost, "/v1/auth/register", creds)
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	token, _ := res.Body["token"].(string)
	require.NotEmpty(t, token)
	user := res.Body["user"].(map[string]any)
	assert.Equal(t, "frontdesk", user["username"])
	assert.NotContains(t, user, "password_hash")

	res = call(t, s, http.MethodGet, "/v1/dashboard", nil, bearer(token)...)
	assert.Equal(t, http.StatusOK, res.Code)

	res = call(t, s, http.MethodPost, "/v1/auth/register", creds)
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, "already_exists", res.errorCode())

	res = call(t, s, http.MethodPost, "/v1/auth/register", map[string]any{"username": "weak", "password": "secret"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "invalid_format", res.errorCode())

	res = call(t, s, http.MethodPost, "/v1/auth/login", creds)
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.NotEmpty(t, res.Body["token"])
	assert.NotContains(t, res.Body, "require_2fa")

	res = call(t, s, http.MethodPost, "/v1/auth/login", map[string]any{"username": "frontdesk", "password": "Wrong!1"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "invalid_credentials", res.errorCode())

	res = call(t, s, http.MethodPost, "/v1/auth/login", map[string]any{"username": "nobody", "password": "Wrong!1"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "invalid_credentials", res.errorCode())
}

func TestLoginThrottled(t *testing.T) {
	s := newTestServer(t)
	creds := map[string]any{"username": "frontdesk", "password": "Wrong!1"}

	for i := 0; i < 3; i++ {
		res := call(t, s, http.MethodPost, "/v1/auth/login", creds)
		require.Equal(t, http.StatusUnauthorized, res.Code)
	}
	res := call(t, s, http.MethodPost, "/v1/auth/login", creds)
	assert.Equal(t, http.StatusTooManyRequests, res.Code)
	assert.Equal(t, "too_many_attempts", res.errorCode())

	// Other usernames keep their own budget.
	res = call(t, s, http.MethodPost, "/v1/auth/login", map[string]any{"username": "other", "password": "Wrong!1"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestTwoFactorEnrollmentAndLogin(t *testing.T) {
	s := newTestServer(t)
	creds := map[string]any{"username": "guard", "password": "Secret!1"}

	res := call(t, s, http.MethodPost, "/v1/auth/register", creds)
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	session := res.Body["token"].(string)

	res = call(t, s, http.MethodPost, "/v1/auth/2fa/setup", nil, bearer(session)...)
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	secret := res.Body["manual_code"].(string)
	assert.True(t, strings.HasPrefix(res.Body["qr_code_image"].(string), "data:image/png;base64,"))

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	res = call(t, s, http.MethodPost, "/v1/auth/2fa/verify-temp", map[string]any{"secret": secret, "code": code}, bearer(session)...)
	assert.Equal(t, http.StatusOK, res.Code, res.Body)

	res = call(t, s, http.MethodPost, "/v1/auth/2fa/enable", map[string]any{"secret": secret, "code": "000000x"}, bearer(session)...)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "invalid_code", res.errorCode())

	res = call(t, s, http.MethodPost, "/v1/auth/2fa/enable", map[string]any{"secret": secret, "code": code}, bearer(session)...)
	require.Equal(t, http.StatusOK, res.Code, res.Body)

	res = call(t, s, http.MethodPost, "/v1/auth/2fa/enable", map[string]any{"secret": secret, "code": code}, bearer(session)...)
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, "already_enrolled", res.errorCode())

	res = call(t, s, http.MethodPost, "/v1/auth/login", creds)
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.Equal(t, true, res.Body["require_2fa"])
	assert.NotContains(t, res.Body, "token")
	challenge := res.Body["challenge_token"].(string)

	res = call(t, s, http.MethodGet, "/v1/dashboard", nil, bearer(challenge)...)
	assert.Equal(t, http.StatusUnauthorized, res.Code, "challenge token must not open a session")

	res = call(t, s, http.MethodPost, "/v1/auth/2fa/login", map[string]any{"challenge_token": session, "code": code})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "invalid_challenge", res.errorCode())

	res = call(t, s, http.MethodPost, "/v1/auth/2fa/login", map[string]any{"challenge_token": challenge, "code": code})
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.NotEmpty(t, res.Body["token"])

	res = call(t, s, http.MethodPost, "/v1/auth/2fa/verify", map[string]any{"username": "guard", "code": code})
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, true, res.Body["verified"])

	res = call(t, s, http.MethodPost, "/v1/auth/2fa/verify", map[string]any{"username": "ghost", "code": code})
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "user_not_found", res.errorCode())
}

func TestTwoFactorVerifyNotEnrolled(t *testing.T) {
	s := newTestServer(t)
	res := call(t, s, http.MethodPost, "/v1/auth/register", map[string]any{"username": "guard", "password": "Secret!1"})
	require.Equal(t, http.StatusCreated, res.Code)

	res = call(t, s, http.MethodPost, "/v1/auth/2fa/verify", map[string]any{"username": "guard", "code": "123456"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "not_enrolled", res.errorCode())

	res = admin(t, s, http.MethodPost, "/v1/auth/2fa/verify-temp", map[string]any{"code": "123456"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "missing_secret", res.errorCode())
}

func TestVisitLifecycle(t *testing.T) {
	s := newTestServer(t)
	d := seedDirectory(t, s)
	entry := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Minute)

	res := admin(t, s, http.MethodPost, "/v1/visits", visitBody(d, entry))
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	id := int64(res.Body["id"].(float64))
	path := fmt.Sprintf("/v1/visits/%d", id)

	res = admin(t, s, http.MethodPost, "/v1/visits", visitBody(d, entry))
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, "duplicate_visit", res.errorCode())

	res = admin(t, s, http.MethodPost, path+"/exit", nil)
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, "not_yet_entered", res.errorCode())

	res = admin(t, s, http.MethodPost, path+"/entry", nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.Equal(t, "entered", res.Body["state"])

	res = admin(t, s, http.MethodPost, path+"/entry", nil)
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, "already_entered", res.errorCode())

	res = admin(t, s, http.MethodGet, "/v1/dashboard", nil)
	assert.Equal(t, float64(1), res.Body["on_premises"])

	res = admin(t, s, http.MethodPost, path+"/exit", nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.Equal(t, "exited", res.Body["state"])

	res = admin(t, s, http.MethodPost, path+"/exit", nil)
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, "already_exited", res.errorCode())

	res = admin(t, s, http.MethodPost, path+"/report", map[string]any{"description": "Left badge behind"})
	require.Equal(t, http.StatusOK, res.Code, res.Body)

	res = admin(t, s, http.MethodPost, path+"/report", map[string]any{"description": "again"})
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, "already_reported", res.errorCode())

	res = admin(t, s, http.MethodGet, path+"/report", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, true, res.Body["report_flag"])
	assert.Equal(t, "Left badge behind", res.Body["report_description"])

	res = admin(t, s, http.MethodPost, path+"/report/toggle", nil)
	require.Equal(t, http.StatusOK, res.Code)
	res = admin(t, s, http.MethodGet, path+"/report", nil)
	assert.Equal(t, false, res.Body["report_flag"])
	assert.Equal(t, "", res.Body["report_description"])

	res = admin(t, s, http.MethodGet, "/v1/dashboard", nil)
	assert.Equal(t, float64(0), res.Body["on_premises"])
	assert.Equal(t, float64(1), res.Body["total"])

	res = admin(t, s, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, res.Code)
	res = admin(t, s, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "not_found", res.errorCode())
}

func TestVisitCreateValidation(t *testing.T) {
	s := newTestServer(t)
	d := seedDirectory(t, s)

	past := visitBody(d, time.Now().UTC().Add(-time.Hour))
	res := admin(t, s, http.MethodPost, "/v1/visits", past)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "invalid_schedule", res.errorCode())

	past["is_immediate_visit"] = true
	res = admin(t, s, http.MethodPost, "/v1/visits", past)
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	assert.Equal(t, true, res.Body["visit"].(map[string]any)["has_entered"])

	bad := visitBody(d, time.Now().UTC().Add(time.Hour))
	bad["scheduled_entry_time"] = "tomorrow"
	res = admin(t, s, http.MethodPost, "/v1/visits", bad)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "invalid_format", res.errorCode())

	missing := visitBody(d, time.Now().UTC().Add(time.Hour))
	missing["visitor_id"] = 999
	res = admin(t, s, http.MethodPost, "/v1/visits", missing)
	assert.Equal(t, http.StatusNotFound, res.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/visits", strings.NewReader("{"))
	req.Header.Set("X-Api-Key", testAPIToken)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVisitSearch(t *testing.T) {
	s := newTestServer(t)
	d := seedDirectory(t, s)
	base := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Minute)

	for i := 0; i < 3; i++ {
		res := admin(t, s, http.MethodPost, "/v1/visits", visitBody(d, base.Add(time.Duration(i)*time.Hour)))
		require.Equal(t, http.StatusCreated, res.Code, res.Body)
	}

	res := admin(t, s, http.MethodPost, "/v1/visits/search", nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.Equal(t, float64(3), res.Body["total"])
	rows := res.Body["rows"].([]any)
	require.Len(t, rows, 3)
	first := rows[0].(map[string]any)
	assert.Equal(t, float64(3), first["id"], "default order is newest first")
	assert.Equal(t, "Ana Gomez", first["visitor_full_name"])
	assert.Equal(t, "Main Lobby", first["location_name"])

	res = admin(t, s, http.MethodPost, "/v1/visits/search", map[string]any{
		"limit":  2,
		"offset": 0,
		"sort":   "scheduled_entry_time",
		"order":  "asc",
		"filter": map[string]any{"visitor_full_name": "ana"},
	})
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.Equal(t, float64(3), res.Body["total"])
	rows = res.Body["rows"].([]any)
	require.Len(t, rows, 2)
	assert.Equal(t, float64(1), rows[0].(map[string]any)["id"])

	res = admin(t, s, http.MethodPost, "/v1/visits/search", map[string]any{"sort": "color"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "invalid_format", res.errorCode())
}

func TestVisitBadID(t *testing.T) {
	s := newTestServer(t)
	res := admin(t, s, http.MethodGet, "/v1/visits/abc", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	res = admin(t, s, http.MethodPost, "/v1/visits/0/entry", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	res = admin(t, s, http.MethodPost, "/v1/visits/42/entry", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestDirectory(t *testing.T) {
	s := newTestServer(t)
	d := seedDirectory(t, s)

	res := admin(t, s, http.MethodGet, fmt.Sprintf("/v1/visitors/%d", d.visitorID), nil)
	require.Equal(t, http.StatusOK, res.Code)
	v := res.Body["visitor"].(map[string]any)
	assert.Equal(t, "CC-100", v["identification"])
	assert.True(t, strings.HasPrefix(v["date_of_birth"].(string), "1990-05-01"))

	res = admin(t, s, http.MethodPost, "/v1/visitors", map[string]any{
		"first_name": "Ana", "last_name": "Gomez", "identification": "CC-100",
	})
	assert.Equal(t, http.StatusConflict, res.Code)

	res = admin(t, s, http.MethodPost, "/v1/locations", map[string]any{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "invalid_format", res.errorCode())

	res = admin(t, s, http.MethodPost, "/v1/visitors", map[string]any{
		"first_name": "Eva", "last_name": "Diaz", "identification": "CC-200", "date_of_birth": "01/02/1990",
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	admin(t, s, http.MethodPost, "/v1/locations", map[string]any{"name": "Warehouse"})
	res = admin(t, s, http.MethodGet, "/v1/locations?query=ware", nil)
	require.Equal(t, http.StatusOK, res.Code)
	locs := res.Body["locations"].([]any)
	require.Len(t, locs, 1)
	assert.Equal(t, "Warehouse", locs[0].(map[string]any)["name"])

	res = admin(t, s, http.MethodGet, "/v1/employees?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = admin(t, s, http.MethodGet, "/v1/companies/99", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestDirectoryUpdateAndDelete(t *testing.T) {
	s := newTestServer(t)
	d := seedDirectory(t, s)
	visitorPath := fmt.Sprintf("/v1/visitors/%d", d.visitorID)

	res := admin(t, s, http.MethodGet, "/v1/companies", nil)
	require.Equal(t, http.StatusOK, res.Code)
	companyID := int64(res.Body["companies"].([]any)[0].(map[string]any)["id"].(float64))
	companyPath := fmt.Sprintf("/v1/companies/%d", companyID)

	res = admin(t, s, http.MethodPut, visitorPath, map[string]any{
		"first_name":     "Ana Maria",
		"last_name":      "Gomez",
		"identification": "CC-100",
		"company_id":     companyID,
		"phone_number":   "555-0100",
	})
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	v := res.Body["visitor"].(map[string]any)
	assert.Equal(t, "Ana Maria", v["first_name"])
	assert.Equal(t, "555-0100", v["phone_number"])

	res = admin(t, s, http.MethodPut, "/v1/visitors/99", map[string]any{
		"first_name": "X", "last_name": "Y", "identification": "CC-999",
	})
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = admin(t, s, http.MethodPost, "/v1/visitors", map[string]any{
		"first_name": "Bea", "last_name": "Ruiz", "identification": "CC-200",
	})
	require.Equal(t, http.StatusCreated, res.Code)
	res = admin(t, s, http.MethodGet, "/v1/visitors?limit=1", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.Body["visitors"].([]any), 1)
	assert.Equal(t, float64(2), res.Body["total"])

	res = admin(t, s, http.MethodPut, companyPath, map[string]any{"name": "Acme Corp"})
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.Equal(t, "Acme Corp", res.Body["company"].(map[string]any)["name"])

	res = admin(t, s, http.MethodDelete, companyPath, nil)
	require.Equal(t, http.StatusOK, res.Code)
	res = admin(t, s, http.MethodGet, visitorPath, nil)
	require.Equal(t, http.StatusOK, res.Code)
	_, hasCompany := res.Body["visitor"].(map[string]any)["company_id"]
	assert.False(t, hasCompany)

	entry := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Minute)
	res = admin(t, s, http.MethodPost, "/v1/visits", visitBody(d, entry))
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	visitPath := fmt.Sprintf("/v1/visits/%d", int64(res.Body["id"].(float64)))

	res = admin(t, s, http.MethodDelete, visitorPath, nil)
	require.Equal(t, http.StatusOK, res.Code)
	res = admin(t, s, http.MethodGet, visitPath, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	res = admin(t, s, http.MethodDelete, visitorPath, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestReportToggleEvents(t *testing.T) {
	s := newTestServer(t)
	d := seedDirectory(t, s)
	entry := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Minute)

	res := admin(t, s, http.MethodPost, "/v1/visits", visitBody(d, entry))
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	path := fmt.Sprintf("/v1/visits/%d/report/toggle", int64(res.Body["id"].(float64)))

	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)

	require.Equal(t, http.StatusOK, admin(t, s, http.MethodPost, path, nil).Code)
	require.Equal(t, http.StatusOK, admin(t, s, http.MethodPost, path, nil).Code)

	assert.Equal(t, EventVisitReported, (<-ch).Type)
	assert.Equal(t, EventVisitReportCleared, (<-ch).Type)
}

func TestStream(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/stream?token="+testAPIToken, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: hello", lines.Text())

	s.bus.Publish(EventVisitEntered, 7)

	for lines.Scan() {
		if lines.Text() == "event: "+EventVisitEntered {
			require.True(t, lines.Scan())
			assert.Contains(t, lines.Text(), `"visit_id":7`)
			return
		}
	}
	t.Fatal("stream closed before the visit event arrived")
}
