// Package gfxerr holds the failure-reason table shared by the graphics
// packages. Code values are written to diagnostics, so existing entries must
// never be reordered; new reasons are appended at the end.
package gfxerr

import (
	"errors"
	"fmt"
)

type Code uint32

const (
	OK Code = iota
	PreferredAdapterNotFound
	CantCreateWindow
	CantCreateDirectDraw
	CantInitRenderer
	CantCreateDirectInput
	CantCreateKeyboardDevice
	CantSetKBCooperativeLevel
	CantSetKBDataFormat
	CantAcquireKeyboard
	CantSetDSCooperativeLevel
	SetExclusiveMode
	ClearExclusiveMode
	SetDisplayMode
	CreateScreenBuffers
	GetBackBuffer
	CreatePalette
	SetPalette
	CreatePrimarySurface
	CreateBackBuffer
	CreateClipper
	SetClipperHWnd
	SetClipper
	CreateZBuffer
	AttachZBuffer
	CreateRenderBuffer
	CreatePictureBuffer
	CreateD3D
	CreateDevice
	CreateViewport
	AddViewport
	SetViewport2
	SetCurrentViewport
	ClearRenderBuffer
	UpdateRenderInfo
	GetThirdBuffer
	GoFullScreen
	GoWindowed
	WrongBitDepth
	GetPixelFormat
	GetDisplayMode

	// appended after the legacy table
	CreateCaptureBuffer
	CreateEnvmapBuffer
	EnumTextureFormats
	LockSurface

	codeCount
)

var codeStrings = [codeCount]string{
	"OK",
	"PreferredAdapterNotFound",
	"CantCreateWindow",
	"CantCreateDirectDraw",
	"CantInitRenderer",
	"CantCreateDirectInput",
	"CantCreateKeyboardDevice",
	"CantSetKBCooperativeLevel",
	"CantSetKBDataFormat",
	"CantAcquireKeyboard",
	"CantSetDSCooperativeLevel",
	"DD_SetExclusiveMode",
	"DD_ClearExclusiveMode",
	"SetDisplayMode",
	"CreateScreenBuffers",
	"GetBackBuffer",
	"CreatePalette",
	"SetPalette",
	"CreatePrimarySurface",
	"CreateBackBuffer",
	"CreateClipper",
	"SetClipperHWnd",
	"SetClipper",
	"CreateZBuffer",
	"AttachZBuffer",
	"CreateRenderBuffer",
	"CreatePictureBuffer",
	"D3D_Create",
	"CreateDevice",
	"CreateViewport",
	"AddViewport",
	"SetViewport2",
	"SetCurrentViewport",
	"ClearRenderBuffer",
	"UpdateRenderInfo",
	"GetThirdBuffer",
	"GoFullScreen",
	"GoWindowed",
	"WrongBitDepth",
	"GetPixelFormat",
	"GetDisplayMode",
	"CreateCaptureBuffer",
	"CreateEnvmapBuffer",
	"EnumTextureFormats",
	"LockSurface",
}

func (c Code) String() string {
	if c < codeCount {
		return codeStrings[c]
	}
	return fmt.Sprintf("Code(%d)", uint32(c))
}

// Decode maps a persisted numeric code back to its table string.
func Decode(code uint32) string {
	return Code(code).String()
}

// Error is a resource-creation failure tagged with the step that failed.
type Error struct {
	Code Code
	Err  error
}

func New(code Code) error {
	return &Error{Code: code}
}

func Wrap(code Code, err error) error {
	return &Error{Code: code, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same code, so callers can test
// errors.Is(err, gfxerr.New(gfxerr.CreateZBuffer)).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// CodeOf extracts the failure code from an error chain, or OK when there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return OK
}

// ErrNoFreeSlot is returned when a fixed slot table is exhausted. It is a
// content or configuration problem, never a crash.
var ErrNoFreeSlot = errors.New("no free slot")

// FatalError reports that no usable graphics configuration is left.
type FatalError struct {
	Reason string
}

func (e *FatalError) Error() string { return "fatal: " + e.Reason }

// IsFatal reports whether err carries a *FatalError.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}
