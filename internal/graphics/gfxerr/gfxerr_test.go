package gfxerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeTableOrder(t *testing.T) {
	cases := []struct {
		code Code
		num  uint32
		want string
	}{
		{OK, 0, "OK"},
		{PreferredAdapterNotFound, 1, "PreferredAdapterNotFound"},
		{SetExclusiveMode, 11, "DD_SetExclusiveMode"},
		{CreateScreenBuffers, 14, "CreateScreenBuffers"},
		{CreateZBuffer, 23, "CreateZBuffer"},
		{CreateD3D, 27, "D3D_Create"},
		{GoFullScreen, 36, "GoFullScreen"},
		{GetDisplayMode, 40, "GetDisplayMode"},
		{CreateCaptureBuffer, 41, "CreateCaptureBuffer"},
	}
	for _, c := range cases {
		if uint32(c.code) != c.num {
			t.Errorf("%s: got number %d, want %d", c.want, uint32(c.code), c.num)
		}
		if got := Decode(c.num); got != c.want {
			t.Errorf("Decode(%d): got %q, want %q", c.num, got, c.want)
		}
	}
	if got := Code(999).String(); got != "Code(999)" {
		t.Errorf("unknown code: got %q", got)
	}
}

func TestErrorMatching(t *testing.T) {
	base := errors.New("out of video memory")
	err := fmt.Errorf("build: %w", Wrap(CreateZBuffer, base))

	if !errors.Is(err, New(CreateZBuffer)) {
		t.Fatalf("errors.Is did not match by code")
	}
	if errors.Is(err, New(AttachZBuffer)) {
		t.Fatalf("errors.Is matched a different code")
	}
	if !errors.Is(err, base) {
		t.Fatalf("underlying error not reachable")
	}
	if got := CodeOf(err); got != CreateZBuffer {
		t.Fatalf("CodeOf: got %v, want %v", got, CreateZBuffer)
	}
	if got := CodeOf(base); got != OK {
		t.Fatalf("CodeOf plain error: got %v, want OK", got)
	}
	if !IsFatal(fmt.Errorf("x: %w", &FatalError{Reason: "gone"})) {
		t.Fatalf("IsFatal did not see wrapped fatal error")
	}
}
