package response

import "testing"

func TestEnvelope(t *testing.T) {
	if r := OK(nil); r.Code != CodeOK || r.Data == nil {
		t.Fatalf("OK(nil) = %+v", r)
	}
	if r := Error(CodeConflict, ""); r.Msg != "Conflict" {
		t.Fatalf("default msg = %q", r.Msg)
	}
	if r := Error(CodeNotFound, "job j1 gone"); r.Msg != "job j1 gone" {
		t.Fatalf("custom msg lost: %q", r.Msg)
	}
}

func TestMsgFallback(t *testing.T) {
	if got := Msg(418); got != "Internal Server Error" {
		t.Fatalf("unknown code msg = %q", got)
	}
}
