package roster

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newTestServer(src Source) *echo.Echo {
	svc := NewService(src)
	svc.SetClock(func() time.Time { return testNow })
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))
	return e
}

func get(e *echo.Echo, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_KPIs(t *testing.T) {
	e := newTestServer(fixture())

	rec := get(e, "/api/v1/roster/kpis")
	require.Equal(t, http.StatusOK, rec.Code)

	var sum Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 5, sum.ActiveCount)
	assert.Equal(t, 2, sum.RedFlagCount)
	assert.Equal(t, 1, sum.NewCount)
	assert.Equal(t, 1, sum.NearingStopCount)
}

func TestHandler_List(t *testing.T) {
	e := newTestServer(fixture())

	tests := []struct {
		query string
		code  int
		total int
		page  int
	}{
		{"", http.StatusOK, 5, 5},
		{"?filter=red_flag", http.StatusOK, 2, 2},
		{"?filter=new", http.StatusOK, 1, 1},
		{"?filter=nearing_stop", http.StatusOK, 1, 1},
		{"?filter=active&limit=2&offset=4", http.StatusOK, 5, 1},
		{"?filter=unknown", http.StatusBadRequest, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := get(e, "/api/v1/roster"+tt.query)
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.code != http.StatusOK {
				return
			}
			var body struct {
				Filter  string  `json:"filter"`
				Total   int     `json:"total"`
				HasMore bool    `json:"has_more"`
				Entries []Entry `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.total, body.Total)
			assert.Len(t, body.Entries, tt.page)
			assert.False(t, body.HasMore)
			assert.NotEmpty(t, body.Filter)
		})
	}
}

func TestHandler_Export(t *testing.T) {
	e := newTestServer(fixture())

	rec := get(e, "/api/v1/roster/export?filter=new")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxMIME, rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "attachment; filename=ams-roster-new.xlsx", rec.Header().Get(echo.HeaderContentDisposition))

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(rosterSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Fresh", rows[1][1])

	rec = get(e, "/api/v1/roster/export?filter=nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_SourceFailure(t *testing.T) {
	e := newTestServer(&fakeSource{err: errors.New("connection refused")})

	for _, path := range []string{"/api/v1/roster", "/api/v1/roster/kpis", "/api/v1/roster/export"} {
		rec := get(e, path)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
		assert.NotContains(t, rec.Body.String(), "connection refused", path)
	}
}
