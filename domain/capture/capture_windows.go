//go:build windows

package capture

// GDI capture. Every call creates a temporary top-down DIB section, BitBlts
// the source DC into it and converts BGRA to a heap-owned *image.RGBA.

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	smCxScreen   = 0
	smCyScreen   = 1
	srccopy      = 0x00CC0020
	dibRGBColors = 0
	biRGB        = 0
)

var (
	user32                 = windows.NewLazySystemDLL("user32.dll")
	gdi32                  = windows.NewLazySystemDLL("gdi32.dll")
	procGetDC              = user32.NewProc("GetDC")
	procReleaseDC          = user32.NewProc("ReleaseDC")
	procGetSystemMetrics   = user32.NewProc("GetSystemMetrics")
	procFindWindowW        = user32.NewProc("FindWindowW")
	procGetClientRect      = user32.NewProc("GetClientRect")
	procClientToScreen     = user32.NewProc("ClientToScreen")
	procCreateCompatibleDC = gdi32.NewProc("CreateCompatibleDC")
	procDeleteDC           = gdi32.NewProc("DeleteDC")
	procSelectObject       = gdi32.NewProc("SelectObject")
	procBitBlt             = gdi32.NewProc("BitBlt")
	procCreateDIBSection   = gdi32.NewProc("CreateDIBSection")
	procDeleteObject       = gdi32.NewProc("DeleteObject")
)

type bitmapInfoHeader struct {
	BiSize          uint32
	BiWidth         int32
	BiHeight        int32
	BiPlanes        uint16
	BiBitCount      uint16
	BiCompression   uint32
	BiSizeImage     uint32
	BiXPelsPerMeter int32
	BiYPelsPerMeter int32
	BiClrUsed       uint32
	BiClrImportant  uint32
}

type bitmapInfo struct {
	Header bitmapInfoHeader
	_      [4]byte // one RGBQUAD, unused for 32-bit
}

type point struct{ X, Y int32 }

func grabScreen(region image.Rectangle) (*image.RGBA, error) {
	w := int(getSystemMetric(smCxScreen))
	h := int(getSystemMetric(smCyScreen))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid screen size %dx%d", w, h)
	}
	r := image.Rect(0, 0, w, h)
	if !region.Empty() {
		r = region.Intersect(r)
		if r.Empty() {
			return nil, ErrEmptyRegion
		}
	}
	return bitBlt(0, r)
}

// Window captures the client area of a top-level window found by title, or
// the desktop when Title is empty.
type Window struct {
	Title string
	// Region crops the capture, in client coordinates.
	Region image.Rectangle

	hwnd   uintptr
	mu     sync.Mutex
	origin image.Point // screen position of the captured region
}

// NewWindow resolves the window handle once. The window must exist.
func NewWindow(title string, region image.Rectangle) (*Window, error) {
	w := &Window{Title: title, Region: region}
	if title == "" {
		return w, nil
	}
	if err := w.resolve(); err != nil {
		return nil, &CaptureError{Source: w.name(), Err: err}
	}
	return w, nil
}

func (w *Window) name() string {
	if w.Title == "" {
		return "desktop"
	}
	return "window " + w.Title
}

func (w *Window) resolve() error {
	title, err := windows.UTF16PtrFromString(w.Title)
	if err != nil {
		return err
	}
	hwnd, _, callErr := procFindWindowW.Call(0, uintptr(unsafe.Pointer(title)))
	if hwnd == 0 {
		return fmt.Errorf("window not found: %v", callErr)
	}
	w.hwnd = hwnd
	return nil
}

func (w *Window) CaptureFrame(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if w.hwnd == 0 {
		img, err := grabScreen(w.Region)
		if err != nil {
			return nil, &CaptureError{Source: w.name(), Err: err}
		}
		w.setOrigin(w.Region.Min)
		return img, nil
	}
	var rc windows.Rect
	ok, _, callErr := procGetClientRect.Call(w.hwnd, uintptr(unsafe.Pointer(&rc)))
	if ok == 0 {
		// The window may have been recreated; look it up again next time.
		w.hwnd = 0
		_ = w.resolve()
		return nil, &CaptureError{Source: w.name(), Err: fmt.Errorf("GetClientRect: %v", callErr)}
	}
	r := image.Rect(0, 0, int(rc.Right-rc.Left), int(rc.Bottom-rc.Top))
	if !w.Region.Empty() {
		r = w.Region.Intersect(r)
	}
	if r.Empty() {
		return nil, &CaptureError{Source: w.name(), Err: ErrEmptyRegion}
	}
	img, err := bitBlt(w.hwnd, r)
	if err != nil {
		return nil, &CaptureError{Source: w.name(), Err: err}
	}
	p := point{X: int32(r.Min.X), Y: int32(r.Min.Y)}
	procClientToScreen.Call(w.hwnd, uintptr(unsafe.Pointer(&p)))
	w.setOrigin(image.Pt(int(p.X), int(p.Y)))
	return img, nil
}

func (w *Window) setOrigin(p image.Point) {
	w.mu.Lock()
	w.origin = p
	w.mu.Unlock()
}

// ScreenPosition translates a point of the last captured frame to screen
// coordinates.
func (w *Window) ScreenPosition(p image.Point) image.Point {
	w.mu.Lock()
	defer w.mu.Unlock()
	return p.Add(w.origin)
}

// bitBlt copies r of the DC owned by hwnd (0 = screen) into a new RGBA image.
func bitBlt(hwnd uintptr, r image.Rectangle) (*image.RGBA, error) {
	w, h := r.Dx(), r.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid rect %v", r)
	}

	srcDC, _, err := procGetDC.Call(hwnd)
	if srcDC == 0 {
		return nil, fmt.Errorf("GetDC: %w", err)
	}
	defer procReleaseDC.Call(hwnd, srcDC)

	memDC, _, err := procCreateCompatibleDC.Call(srcDC)
	if memDC == 0 {
		return nil, fmt.Errorf("CreateCompatibleDC: %w", err)
	}
	defer procDeleteDC.Call(memDC)

	var bi bitmapInfo
	bi.Header.BiSize = uint32(unsafe.Sizeof(bi.Header))
	bi.Header.BiWidth = int32(w)
	bi.Header.BiHeight = -int32(h) // top-down
	bi.Header.BiPlanes = 1
	bi.Header.BiBitCount = 32
	bi.Header.BiCompression = biRGB
	bi.Header.BiSizeImage = uint32(w * h * 4)

	var bits unsafe.Pointer
	bmp, _, err := procCreateDIBSection.Call(memDC, uintptr(unsafe.Pointer(&bi)), dibRGBColors, uintptr(unsafe.Pointer(&bits)), 0, 0)
	if bmp == 0 {
		return nil, fmt.Errorf("CreateDIBSection: %w", err)
	}
	defer procDeleteObject.Call(bmp)

	prev, _, err := procSelectObject.Call(memDC, bmp)
	if prev == 0 || prev == ^uintptr(0) {
		return nil, fmt.Errorf("SelectObject: %w", err)
	}
	// Deselect before DeleteObject runs; a selected bitmap is never freed.
	defer procSelectObject.Call(memDC, prev)

	ok, _, err := procBitBlt.Call(memDC, 0, 0, uintptr(w), uintptr(h), srcDC, uintptr(r.Min.X), uintptr(r.Min.Y), srccopy)
	if ok == 0 {
		return nil, fmt.Errorf("BitBlt %v: %w", r, err)
	}
	if bits == nil {
		return nil, errors.New("CreateDIBSection returned no pixels")
	}

	n := w * h * 4
	src := unsafe.Slice((*byte)(bits), n)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < n; i += 4 {
		dst.Pix[i+0] = src[i+2]
		dst.Pix[i+1] = src[i+1]
		dst.Pix[i+2] = src[i+0]
		dst.Pix[i+3] = 0xff
	}
	return dst, nil
}

func getSystemMetric(idx int) int32 {
	v, _, _ := procGetSystemMetrics.Call(uintptr(idx))
	return int32(v)
}
