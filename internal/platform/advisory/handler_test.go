package advisory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(SessionHeader, "sess-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Check(t *testing.T) {
	var gotKey Kind
	c := NewChecker(evalFunc(func(_ context.Context, kind Kind, req Request) (*Finding, error) {
		gotKey = kind
		if req.Drug == "Broken" {
			return nil, ErrMalformed
		}
		return &Finding{IsSafe: flag(false), Message: "Exceeds 15mg/kg"}, nil
	}), time.Millisecond, zerolog.Nop())

	e := echo.New()
	NewHandler(c).RegisterRoutes(e.Group("/api/v1"))

	rec := post(e, "/api/v1/advisory/weight", `{"drug":"Gentamicin","dose":"400mg","patient_metric":"20"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, KindWeight, gotKey)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	finding := body["finding"].(map[string]interface{})
	assert.Equal(t, false, finding["is_safe"])
	assert.Equal(t, "Exceeds 15mg/kg", finding["message"])

	rec = post(e, "/api/v1/advisory/weight", `{"drug":"Broken"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"finding":null`)

	rec = post(e, "/api/v1/advisory/hepatic", `{"drug":"Gentamicin"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(e, "/api/v1/advisory/renal", `{"dose":"1g"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
