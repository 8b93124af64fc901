package req

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mentormatch/internal/pkg/errs"
)

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func newJSONRequest(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestBindJSON(t *testing.T) {
	var in loginInput
	if err := BindJSON(httptest.NewRecorder(), newJSONRequest(`{"email":"a@b.co","password":"secret"}`), &in); err != nil {
		t.Fatalf("BindJSON() error = %v", err)
	}
	if in.Email != "a@b.co" || in.Password != "secret" {
		t.Fatalf("unexpected input %+v", in)
	}
}

func TestBindJSONErrors(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantCode    int
	}{
		{"wrong content type", "text/plain", `{}`, errs.ErrUnsupportedMediaType},
		{"syntax error", "application/json", `{"email":`, errs.ErrInvalidJSONFormat},
		{"unknown field", "application/json", `{"username":"x"}`, errs.ErrInvalidJSONFormat},
		{"trailing document", "application/json", `{"email":"a"} {"email":"b"}`, errs.ErrExtraContentInBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", tt.contentType)

			var in loginInput
			err := BindJSON(httptest.NewRecorder(), r, &in)
			if err == nil {
				t.Fatal("expected error")
			}
			if err.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", err.Code, tt.wantCode)
			}
		})
	}
}
