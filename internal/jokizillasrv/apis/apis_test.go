package apis

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/auth"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/config"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

type testServer struct {
	t   *testing.T
	srv *httptest.Server
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	db.SetPool(dbtest.NewPool(t))
	t.Cleanup(func() { db.SetPool(nil) })

	if opts.RoutePrefix == "" {
		opts.RoutePrefix = "api"
	}
	if opts.MaxTop == 0 {
		opts.MaxTop = 50
	}
	if opts.PageSize == 0 {
		opts.PageSize = 50
	}
	api := New(opts)
	validator := auth.NewValidator(config.AuthConfig{
		SigningKey: testSigningKey,
		Audience:   "jokizilla",
		RoleClaim:  "role",
		ClockSkew:  "1m",
	}, nil)

	r := chi.NewRouter()
	r.Use(db.LoadScopedDBMiddleware)
	r.Use(auth.Authenticate(validator))
	r.Route("/"+opts.RoutePrefix, func(r chi.Router) {
		api.Router(r)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{t: t, srv: srv}
}

func token(t *testing.T, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "tester",
		"aud":  "jokizilla",
		"exp":  time.Now().Add(time.Hour).Unix(),
		"role": role,
	}).SignedString([]byte(testSigningKey))
	require.NoError(t, err)
	return s
}

// do sends a request as role; an empty role sends no token.
func (ts *testServer) do(method, path, role, body string) (*http.Response, []byte) {
	ts.t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rd)
	require.NoError(ts.t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+token(ts.t, role))
	}
	rsp, err := http.DefaultClient.Do(req)
	require.NoError(ts.t, err)
	defer rsp.Body.Close()
	b, err := io.ReadAll(rsp.Body)
	require.NoError(ts.t, err)
	return rsp, b
}

func (ts *testServer) mustCreate(path, body string) map[string]any {
	ts.t.Helper()
	rsp, b := ts.do(http.MethodPost, path, "JokizillaAdmin", body)
	require.Equal(ts.t, http.StatusCreated, rsp.StatusCode, string(b))
	return decode(ts.t, b)
}

func decode(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m), string(b))
	return m
}

func values(t *testing.T, b []byte) []map[string]any {
	t.Helper()
	var body struct {
		Value []map[string]any `json:"value"`
	}
	require.NoError(t, json.Unmarshal(b, &body), string(b))
	return body.Value
}

func names(items []map[string]any) []string {
	var s []string
	for _, item := range items {
		s = append(s, item["Name"].(string))
	}
	return s
}

func TestCountryLifecycle(t *testing.T) {
	ts := newTestServer(t, Options{})

	rsp, b := ts.do(http.MethodPost, "/api/Country", "JokizillaAdmin", `{"Name":"Germany","Code":"DE"}`)
	require.Equal(t, http.StatusCreated, rsp.StatusCode, string(b))
	created := decode(t, b)
	assert.Equal(t, float64(1), created["Id"])
	assert.Equal(t, "Germany", created["Name"])
	assert.Nil(t, created["PhoneCode"])
	assert.Equal(t, ts.srv.URL+"/api/$metadata#Country/$entity", created["@odata.context"])
	assert.Equal(t, ts.srv.URL+"/api/Country(1)", rsp.Header.Get("Location"))

	for _, path := range []string{"/api/Country(1)", "/api/Country/1"} {
		rsp, b = ts.do(http.MethodGet, path, "", "")
		require.Equal(t, http.StatusOK, rsp.StatusCode, path)
		assert.Equal(t, "DE", decode(t, b)["Code"])
	}

	rsp, b = ts.do(http.MethodPatch, "/api/Country(1)", "JokizillaAdmin", `{"PhoneCode":"+49"}`)
	require.Equal(t, http.StatusOK, rsp.StatusCode, string(b))
	patched := decode(t, b)
	assert.Equal(t, "+49", patched["PhoneCode"])
	assert.Equal(t, "Germany", patched["Name"])
	assert.Equal(t, "DE", patched["Code"])

	rsp, b = ts.do(http.MethodGet, "/api/Country(1)", "", "")
	require.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Equal(t, "+49", decode(t, b)["PhoneCode"])

	rsp, _ = ts.do(http.MethodDelete, "/api/Country(1)", "JokizillaAdmin", "")
	assert.Equal(t, http.StatusNoContent, rsp.StatusCode)
	rsp, _ = ts.do(http.MethodGet, "/api/Country(1)", "", "")
	assert.Equal(t, http.StatusNotFound, rsp.StatusCode)
	rsp, _ = ts.do(http.MethodDelete, "/api/Country(1)", "JokizillaAdmin", "")
	assert.Equal(t, http.StatusNotFound, rsp.StatusCode)
}

func TestCreateWithUsedKeyConflicts(t *testing.T) {
	ts := newTestServer(t, Options{})

	created := ts.mustCreate("/api/ApplicantStatus", `{"Id":7,"Name":"New"}`)
	assert.Equal(t, float64(7), created["Id"])

	rsp, b := ts.do(http.MethodPost, "/api/ApplicantStatus", "JokizillaAdmin", `{"Id":7,"Name":"Other"}`)
	assert.Equal(t, http.StatusConflict, rsp.StatusCode, string(b))

	// the database continues after the explicit key
	created = ts.mustCreate("/api/ApplicantStatus", `{"Name":"Next"}`)
	assert.Equal(t, float64(8), created["Id"])

	rsp, b = ts.do(http.MethodGet, "/api/ApplicantStatus(7)", "", "")
	require.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Equal(t, "New", decode(t, b)["Name"])
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	ts := newTestServer(t, Options{})

	tests := []struct {
		name    string
		path    string
		body    string
		details []string
	}{
		{"missing required", "/api/Country", `{"Code":"DE"}`, []string{"Name"}},
		{"bad country code", "/api/Country", `{"Name":"Nowhere","Code":"XX1"}`, []string{"Code"}},
		{"too long", "/api/ApplicantStatus", `{"Name":"` + strings.Repeat("a", 65) + `"}`, []string{"Name"}},
		{"non-positive multiplier", "/api/Urgency", `{"Name":"Rush","PriceMultiplier":0}`, []string{"PriceMultiplier"}},
		{"unknown property", "/api/Country", `{"Name":"Germany","Code":"DE","Capital":"Berlin"}`, nil},
		{"malformed body", "/api/Country", `{"Name":`, nil},
		{"key out of range", "/api/ApplicantStatus", `{"Id":300,"Name":"New"}`, nil},
		{"key not a number", "/api/ApplicantStatus", `{"Id":"7","Name":"New"}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsp, b := ts.do(http.MethodPost, tt.path, "JokizillaAdmin", tt.body)
			require.Equal(t, http.StatusBadRequest, rsp.StatusCode, string(b))
			var body struct {
				Details map[string][]string `json:"details"`
			}
			require.NoError(t, json.Unmarshal(b, &body))
			for _, field := range tt.details {
				assert.NotEmpty(t, body.Details[field], string(b))
			}
		})
	}
}

func TestPatch(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.mustCreate("/api/Urgency", `{"Name":"Rush","Description":"fast","PriceMultiplier":1.5}`)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"missing entity", "/api/Urgency(9)", `{"Name":"Other"}`, http.StatusNotFound},
		{"unknown property", "/api/Urgency(1)", `{"Speed":3}`, http.StatusBadRequest},
		{"key in delta", "/api/Urgency(1)", `{"Id":2}`, http.StatusBadRequest},
		{"invalid merged value", "/api/Urgency(1)", `{"PriceMultiplier":-1}`, http.StatusBadRequest},
		{"malformed key", "/api/Urgency(x)", `{"Name":"Other"}`, http.StatusBadRequest},
		{"null number", "/api/Urgency(1)", `{"PriceMultiplier":null}`, http.StatusBadRequest},
		{"null string", "/api/Urgency(1)", `{"Name":null}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsp, b := ts.do(http.MethodPatch, tt.path, "JokizillaAdmin", tt.body)
			assert.Equal(t, tt.status, rsp.StatusCode, string(b))
		})
	}

	// failed patches left the entity alone
	rsp, b := ts.do(http.MethodGet, "/api/Urgency(1)", "", "")
	require.Equal(t, http.StatusOK, rsp.StatusCode)
	u := decode(t, b)
	assert.Equal(t, "Rush", u["Name"])
	assert.Equal(t, 1.5, u["PriceMultiplier"])

	rsp, b = ts.do(http.MethodPatch, "/api/Urgency(1)", "JokizillaAdmin", `{"Description":null}`)
	require.Equal(t, http.StatusOK, rsp.StatusCode, string(b))
	u = decode(t, b)
	assert.Nil(t, u["Description"])
	assert.Equal(t, "Rush", u["Name"])
	assert.Equal(t, 1.5, u["PriceMultiplier"])
}

func TestMalformedKeys(t *testing.T) {
	ts := newTestServer(t, Options{})
	for _, path := range []string{"/api/Country(abc)", "/api/Country/-1", "/api/ApplicantStatus(256)", "/api/Country(70000)"} {
		rsp, b := ts.do(http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusBadRequest, rsp.StatusCode, path+": "+string(b))
	}
}

func TestAuthorization(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.mustCreate("/api/Country", `{"Name":"Germany","Code":"DE"}`)
	ts.mustCreate("/api/ApplicantStatus", `{"Name":"New"}`)

	applicant := `{"FirstName":"Ada","LastName":"Lovelace","Email":"ada@example.com","CountryId":1,"ApplicantStatusId":1}`
	tests := []struct {
		name   string
		method string
		path   string
		role   string
		body   string
		status int
	}{
		{"anonymous read", http.MethodGet, "/api/Country", "", "", http.StatusOK},
		{"anonymous write", http.MethodPost, "/api/Country", "", `{"Name":"France","Code":"FR"}`, http.StatusUnauthorized},
		{"writer on admin set", http.MethodPost, "/api/Country", "JokizillaWriter", `{"Name":"France","Code":"FR"}`, http.StatusForbidden},
		{"writer deletes admin set", http.MethodDelete, "/api/Country(1)", "JokizillaWriter", "", http.StatusForbidden},
		{"unknown role", http.MethodPost, "/api/Applicant", "Guest", applicant, http.StatusForbidden},
		{"writer creates applicant", http.MethodPost, "/api/Applicant", "JokizillaWriter", applicant, http.StatusCreated},
		{"admin creates applicant", http.MethodPost, "/api/Applicant", "JokizillaAdmin", applicant, http.StatusCreated},
		{"writer patches applicant", http.MethodPatch, "/api/Applicant(1)", "JokizillaWriter", `{"Notes":"called back"}`, http.StatusOK},
		{"admin writes admin set", http.MethodPost, "/api/Country", "JokizillaAdmin", `{"Name":"France","Code":"FR"}`, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsp, b := ts.do(tt.method, tt.path, tt.role, tt.body)
			assert.Equal(t, tt.status, rsp.StatusCode, string(b))
		})
	}

	req, err := http.NewRequest(http.MethodGet, ts.srv.URL+"/api/Country", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rsp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	rsp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, rsp.StatusCode)
}

func seedCountries(ts *testServer) {
	for _, c := range []string{
		`{"Name":"Germany","Code":"DE","PhoneCode":"+49"}`,
		`{"Name":"France","Code":"FR","PhoneCode":"+33"}`,
		`{"Name":"Greece","Code":"GR","PhoneCode":"+30"}`,
		`{"Name":"Austria","Code":"AT"}`,
		`{"Name":"Spain","Code":"ES","PhoneCode":"+34"}`,
	} {
		ts.mustCreate("/api/Country", c)
	}
}

func TestListQueryOptions(t *testing.T) {
	ts := newTestServer(t, Options{})
	seedCountries(ts)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"ordered by key", "", []string{"Germany", "France", "Greece", "Austria", "Spain"}},
		{"filter", "$filter=startswith(Name,'G')", []string{"Germany", "Greece"}},
		{"filter null", "$filter=PhoneCode eq null", []string{"Austria"}},
		{"filter and or", "$filter=Id gt 1 and (Code eq 'ES' or Code eq 'FR')", []string{"France", "Spain"}},
		{"filter function", "$filter=length(Name) eq 6", []string{"France", "Greece"}},
		{"order desc", "$orderby=Name desc", []string{"Spain", "Greece", "Germany", "France", "Austria"}},
		{"top and skip", "$orderby=Name&$top=2&$skip=1", []string{"France", "Germany"}},
		{"top zero", "$top=0", nil},
		{"skip past end", "$skip=10", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsp, b := ts.do(http.MethodGet, "/api/Country?"+strings.ReplaceAll(tt.query, " ", "%20"), "", "")
			require.Equal(t, http.StatusOK, rsp.StatusCode, string(b))
			assert.Equal(t, tt.want, names(values(t, b)))
		})
	}

	t.Run("select and count", func(t *testing.T) {
		rsp, b := ts.do(http.MethodGet, "/api/Country?$select=Name&$count=true&$top=1", "", "")
		require.Equal(t, http.StatusOK, rsp.StatusCode, string(b))
		body := decode(t, b)
		assert.Equal(t, float64(5), body["@odata.count"])
		assert.Equal(t, ts.srv.URL+"/api/$metadata#Country(Name)", body["@odata.context"])
		assert.Nil(t, body["@odata.nextLink"])
		assert.Equal(t, []map[string]any{{"Name": "Germany"}}, values(t, b))
	})

	t.Run("count endpoint", func(t *testing.T) {
		rsp, b := ts.do(http.MethodGet, "/api/Country/$count?$filter=startswith(Name,'G')", "", "")
		require.Equal(t, http.StatusOK, rsp.StatusCode, string(b))
		assert.Equal(t, "text/plain", rsp.Header.Get("Content-Type"))
		assert.Equal(t, "2", string(b))
	})

	rejected := []string{
		"$top=51",
		"$top=-1",
		"$skip=x",
		"$filter=Name eq 1",
		"$filter=Capital eq 'Berlin'",
		"$filter=contains(Name,",
		"$orderby=Capital",
		"$select=Capital",
		"$expand=Applicants",
		"$search=Germany",
		"$count=maybe",
	}
	for _, q := range rejected {
		t.Run("rejects "+q, func(t *testing.T) {
			rsp, b := ts.do(http.MethodGet, "/api/Country?"+strings.ReplaceAll(q, " ", "%20"), "", "")
			assert.Equal(t, http.StatusBadRequest, rsp.StatusCode, string(b))
		})
	}

	// reads leave the data alone
	rsp, b := ts.do(http.MethodGet, "/api/Country/$count", "", "")
	require.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Equal(t, "5", string(b))
}

func TestServerDrivenPaging(t *testing.T) {
	ts := newTestServer(t, Options{MaxTop: 4, PageSize: 2})
	seedCountries(ts)

	var got []string
	path := "/api/Country?$orderby=Name"
	for pages := 0; path != ""; pages++ {
		require.Less(t, pages, 5)
		rsp, b := ts.do(http.MethodGet, path, "", "")
		require.Equal(t, http.StatusOK, rsp.StatusCode, string(b))
		got = append(got, names(values(t, b))...)
		path = ""
		if next, ok := decode(t, b)["@odata.nextLink"].(string); ok {
			path = strings.TrimPrefix(next, ts.srv.URL)
		}
	}
	assert.Equal(t, []string{"Austria", "France", "Germany", "Greece", "Spain"}, got)

	// $top above the page size is served in pages too
	rsp, b := ts.do(http.MethodGet, "/api/Country?$top=3", "", "")
	require.Equal(t, http.StatusOK, rsp.StatusCode, string(b))
	body := decode(t, b)
	assert.Len(t, values(t, b), 2)
	assert.Equal(t, ts.srv.URL+"/api/Country?$skip=2&$top=1", body["@odata.nextLink"])

	rsp, _ = ts.do(http.MethodGet, "/api/Country?$top=5", "", "")
	assert.Equal(t, http.StatusBadRequest, rsp.StatusCode)
}

func TestServiceAdditionalServices(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.mustCreate("/api/PriceType", `{"Name":"Fixed"}`)
	ts.mustCreate("/api/AdditionalService", `{"Name":"Express","Price":10}`)
	ts.mustCreate("/api/AdditionalService", `{"Name":"Proofreading","Price":5}`)
	ts.mustCreate("/api/AdditionalService", `{"Name":"Plagiarism check","Price":3}`)

	created := ts.mustCreate("/api/Service", `{"Name":"Essay","Price":50,"PriceTypeId":1,"AdditionalServiceIds":[3,1]}`)
	assert.Nil(t, created["AdditionalServices"])

	expanded := func(path string) []string {
		t.Helper()
		rsp, b := ts.do(http.MethodGet, path, "", "")
		require.Equal(t, http.StatusOK, rsp.StatusCode, string(b))
		var body struct {
			AdditionalServices []map[string]any `json:"AdditionalServices"`
		}
		require.NoError(t, json.Unmarshal(b, &body))
		return names(body.AdditionalServices)
	}
	assert.Equal(t, []string{"Express", "Plagiarism check"}, expanded("/api/Service(1)?$expand=AdditionalServices"))

	rsp, b := ts.do(http.MethodGet, "/api/Service?$expand=AdditionalServices&$select=Name", "", "")
	require.Equal(t, http.StatusOK, rsp.StatusCode, string(b))
	list := values(t, b)
	require.Len(t, list, 1)
	assert.Equal(t, "Essay", list[0]["Name"])
	assert.Nil(t, list[0]["Price"])
	assert.Len(t, list[0]["AdditionalServices"], 2)
	assert.Equal(t, ts.srv.URL+"/api/$metadata#Service(Name,AdditionalServices())", decode(t, b)["@odata.context"])

	// a patch without ids keeps the links
	rsp, b = ts.do(http.MethodPatch, "/api/Service(1)", "JokizillaAdmin", `{"Price":60}`)
	require.Equal(t, http.StatusOK, rsp.StatusCode, string(b))
	assert.Equal(t, []string{"Express", "Plagiarism check"}, expanded("/api/Service(1)?$expand=AdditionalServices"))

	rsp, b = ts.do(http.MethodPatch, "/api/Service(1)", "JokizillaAdmin", `{"AdditionalServiceIds":[2]}`)
	require.Equal(t, http.StatusOK, rsp.StatusCode, string(b))
	assert.Equal(t, []string{"Proofreading"}, expanded("/api/Service(1)?$expand=AdditionalServices"))

	// an unknown additional service rolls the whole write back
	rsp, _ = ts.do(http.MethodPatch, "/api/Service(1)", "JokizillaAdmin", `{"Price":70,"AdditionalServiceIds":[2,99]}`)
	assert.Equal(t, http.StatusInternalServerError, rsp.StatusCode)
	rsp, b = ts.do(http.MethodGet, "/api/Service(1)", "", "")
	require.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Equal(t, float64(60), decode(t, b)["Price"])
	assert.Equal(t, []string{"Proofreading"}, expanded("/api/Service(1)?$expand=AdditionalServices"))

	rsp, _ = ts.do(http.MethodGet, "/api/AdditionalService?$expand=AdditionalServices", "", "")
	assert.Equal(t, http.StatusBadRequest, rsp.StatusCode)
}

func TestTestCount(t *testing.T) {
	ts := newTestServer(t, Options{})

	rsp, b := ts.do(http.MethodGet, "/api/TestCount()", "", "")
	require.Equal(t, http.StatusOK, rsp.StatusCode, string(b))
	body := decode(t, b)
	assert.Equal(t, float64(0), body["value"])
	assert.Equal(t, ts.srv.URL+"/api/$metadata#Edm.Int64", body["@odata.context"])

	ts.mustCreate("/api/Country", `{"Name":"Germany","Code":"DE"}`)
	ts.mustCreate("/api/ApplicantStatus", `{"Name":"New"}`)
	ts.mustCreate("/api/Applicant", `{"FirstName":"Ada","LastName":"Lovelace","Email":"ada@example.com","CountryId":1,"ApplicantStatusId":1}`)

	_, b = ts.do(http.MethodGet, "/api/TestCount()", "", "")
	assert.Equal(t, float64(1), decode(t, b)["value"])
}

func TestServiceAndMetadataDocuments(t *testing.T) {
	ts := newTestServer(t, Options{BaseURL: "https://jokizilla.example/api/"})

	rsp, b := ts.do(http.MethodGet, "/api/", "", "")
	require.Equal(t, http.StatusOK, rsp.StatusCode, string(b))
	doc := decode(t, b)
	assert.Equal(t, "https://jokizilla.example/api/$metadata", doc["@odata.context"])
	entries := values(t, b)
	require.Len(t, entries, 10)
	assert.Equal(t, map[string]any{"name": "TestCount", "kind": "FunctionImport", "url": "TestCount"}, entries[9])

	rsp, b = ts.do(http.MethodGet, "/api/$metadata", "", "")
	require.Equal(t, http.StatusOK, rsp.StatusCode, string(b))
	assert.True(t, bytes.Contains(b, []byte(`"$Version":"4.0"`)), string(b))
	md := decode(t, b)
	ns := md[Namespace].(map[string]any)
	service := ns["Service"].(map[string]any)
	assert.Equal(t, []any{"Id"}, service["$Key"])
	assert.Equal(t, "NavigationProperty", service["AdditionalServices"].(map[string]any)["$Kind"])
	container := ns["Container"].(map[string]any)
	assert.Contains(t, container, "Applicant")
	assert.Contains(t, container, "TestCount")
}
