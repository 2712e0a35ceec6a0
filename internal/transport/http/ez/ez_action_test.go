package ez

import (
	"testing"

	"go-markethub/internal/domain"
	resp "go-markethub/internal/transport/http/response"
)

func TestMapDomainErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"validation", domain.Validationf("rating out of range"), resp.CodeBadRequest},
		{"not found", domain.ErrNotFound, resp.CodeNotFound},
		{"conflict", domain.Conflictf("email taken"), resp.CodeConflict},
		{"stock limit", domain.ErrStockLimit, resp.CodeConflict},
		{"storage down", domain.ErrStorageUnavailable, resp.CodeUnavailable},
		{"unknown", errFake, resp.CodeServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, msg := mapDomainErr(tc.err)
			if code != tc.code {
				t.Fatalf("code = %d, want %d", code, tc.code)
			}
			if msg == "" {
				t.Fatal("empty message")
			}
		})
	}
}

type fakeErr struct{}

func (fakeErr) Error() string { return "boom" }

var errFake = fakeErr{}

func TestAErrMessage(t *testing.T) {
	if got := BadRequest("missing id").Error(); got != "missing id" {
		t.Fatalf("got %q", got)
	}
	e := Internal("", errFake)
	if got := e.Error(); got != "boom" {
		t.Fatalf("got %q", got)
	}
}
