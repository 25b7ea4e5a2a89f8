package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newCtx(query string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients"+query, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(newCtx(""))
	if p.Limit != DefaultLimit {
		t.Errorf("expected limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := FromContext(newCtx("?limit=10&offset=30"))
	if p.Limit != 10 {
		t.Errorf("expected limit 10, got %d", p.Limit)
	}
	if p.Offset != 30 {
		t.Errorf("expected offset 30, got %d", p.Offset)
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	p := FromContext(newCtx("?limit=100000"))
	if p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_NegativeOffset(t *testing.T) {
	p := FromContext(newCtx("?offset=-5"))
	if p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestParams_Bounds(t *testing.T) {
	tests := []struct {
		name               string
		p                  Params
		total              int
		wantStart, wantEnd int
	}{
		{"first page", Params{Limit: 2, Offset: 0}, 5, 0, 2},
		{"last partial page", Params{Limit: 2, Offset: 4}, 5, 4, 5},
		{"offset past end", Params{Limit: 2, Offset: 9}, 5, 5, 5},
		{"empty", Params{Limit: 2, Offset: 0}, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := tt.p.Bounds(tt.total)
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("Bounds(%d) = [%d,%d), want [%d,%d)", tt.total, start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestPage(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	resp := Page(items, Params{Limit: 2, Offset: 2})
	data, ok := resp.Data.([]string)
	if !ok {
		t.Fatalf("expected []string data, got %T", resp.Data)
	}
	if len(data) != 2 || data[0] != "c" || data[1] != "d" {
		t.Errorf("unexpected page %v", data)
	}
	if resp.Total != 5 {
		t.Errorf("expected total 5, got %d", resp.Total)
	}
	if !resp.HasMore {
		t.Error("expected has_more to be true")
	}

	resp = Page(items, Params{Limit: 2, Offset: 4})
	if resp.HasMore {
		t.Error("expected has_more to be false on the last page")
	}
}
