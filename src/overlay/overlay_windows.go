//go:build windows

package overlay

import (
	"context"
	"fmt"
	"image"
	"log"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/lxn/win"

	"snapmark/src/geometry"
	"snapmark/src/screenshot"
)

const (
	minDragSpanPx      = 5
	keyPollTimerID     = 1
	keyPollIntervalMs  = 25
	selectionRectPenPx = 3
	selectionRectBGR   = 0x0000FF
	hintTextBGR        = 0x00FFFF
	wmDismiss          = win.WM_APP + 1
)

var (
	user32DLL            = syscall.NewLazyDLL("user32.dll")
	procAllowSetFgWindow = user32DLL.NewProc("AllowSetForegroundWindow")
	procGetAsyncKeyState = user32DLL.NewProc("GetAsyncKeyState")

	gdi32DLL      = syscall.NewLazyDLL("gdi32.dll")
	procCreatePen = gdi32DLL.NewProc("CreatePen")
	procRectangle = gdi32DLL.NewProc("Rectangle")
)

// dragOutcome is what the wndproc posts back to the message loop. A
// cancelled outcome has a zero rect.
type dragOutcome struct {
	rect      image.Rectangle
	cancelled bool
}

// Window-callback state. The Selector contract serializes Select calls
// on the event-loop goroutine, so at most one overlay is live; hwnd is
// additionally mutex-guarded because Dismiss may arrive from another
// goroutine.
var (
	ovHwndMu sync.Mutex
	ovHwnd   win.HWND

	ovSelecting            bool
	ovStartX, ovStartY     int32
	ovEndX, ovEndY         int32
	ovVirtualX, ovVirtualY int32
	ovEscapeWasDown        bool
	ovBackground           *image.RGBA
	ovOutcome              chan dragOutcome
)

// One callback for the process lifetime; syscall.NewCallback slots are
// never released.
var overlayWndProc = syscall.NewCallback(wndProc)

type windowsSelector struct {
	backend screenshot.Backend
}

func newPlatformSelector() Selector {
	return &windowsSelector{backend: screenshot.KbinaniBackend{}}
}

// Select shows a frozen full-virtual-screen snapshot under a topmost
// popup window and lets the user drag a rectangle over it. The drag is
// measured in physical pixels, so the returned display carries unit
// scale and the point coordinates round-trip exactly.
func (s *windowsSelector) Select(ctx context.Context) (Selection, bool, error) {
	// Win32 requires the message loop to run on the window's creating
	// thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	displays, err := screenshot.Displays(1)
	if err != nil {
		return Selection{}, false, err
	}

	vx := win.GetSystemMetrics(win.SM_XVIRTUALSCREEN)
	vy := win.GetSystemMetrics(win.SM_YVIRTUALSCREEN)
	vw := win.GetSystemMetrics(win.SM_CXVIRTUALSCREEN)
	vh := win.GetSystemMetrics(win.SM_CYVIRTUALSCREEN)
	log.Printf("overlay: virtual screen x=%d y=%d w=%d h=%d", vx, vy, vw, vh)

	ovVirtualX, ovVirtualY = vx, vy
	virtual := image.Rect(int(vx), int(vy), int(vx)+int(vw), int(vy)+int(vh))
	ovBackground, err = s.backend.CaptureRect(virtual)
	if err != nil {
		return Selection{}, false, fmt.Errorf("overlay background capture failed: %w", err)
	}

	ovSelecting = false
	ovEscapeWasDown = false
	ovOutcome = make(chan dragOutcome, 1)

	crossCursor := win.LoadCursor(0, win.MAKEINTRESOURCE(win.IDC_CROSS))

	// Unique class name per invocation so a failed UnregisterClass from
	// a previous run cannot block this one.
	classNameStr := fmt.Sprintf("SnapmarkOverlay_%d", time.Now().UnixNano())
	className := syscall.StringToUTF16Ptr(classNameStr)
	wndClass := win.WNDCLASSEX{
		CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
		Style:         win.CS_HREDRAW | win.CS_VREDRAW,
		LpfnWndProc:   overlayWndProc,
		HInstance:     win.GetModuleHandle(nil),
		HCursor:       crossCursor,
		HbrBackground: 0,
		LpszClassName: className,
	}
	if win.RegisterClassEx(&wndClass) == 0 {
		return Selection{}, false, fmt.Errorf("overlay window class registration failed")
	}
	defer win.UnregisterClass(className)

	hwnd := win.CreateWindowEx(
		win.WS_EX_TOPMOST,
		className,
		syscall.StringToUTF16Ptr("Drag to select a region"),
		win.WS_POPUP|win.WS_VISIBLE,
		vx, vy, vw, vh,
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if hwnd == 0 {
		return Selection{}, false, fmt.Errorf("overlay window creation failed")
	}
	setOverlayHwnd(hwnd)
	defer setOverlayHwnd(0)

	win.ShowWindow(hwnd, win.SW_SHOW)
	procAllowSetFgWindow.Call(uintptr(syscall.Getpid()))
	win.SetForegroundWindow(hwnd)
	win.BringWindowToTop(hwnd)
	win.SetFocus(hwnd)
	win.UpdateWindow(hwnd)

	// The popup does not always hold keyboard focus, so ESC is also
	// polled on a timer.
	if win.SetTimer(hwnd, keyPollTimerID, keyPollIntervalMs, 0) == 0 {
		log.Printf("overlay: key poll timer failed to start")
	}

	var msg win.MSG
	for {
		ret := win.GetMessage(&msg, 0, 0, 0)
		if ret == 0 || ret == -1 {
			// WM_QUIT or a GetMessage error. Either way the drag is
			// over with no selection.
			win.DestroyWindow(hwnd)
			return Selection{}, true, nil
		}

		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)

		select {
		case out := <-ovOutcome:
			win.DestroyWindow(hwnd)
			if out.cancelled {
				return Selection{}, true, nil
			}
			return selectionFromPixels(out.rect, displays)
		default:
		}
	}
}

// Dismiss closes a live overlay from any goroutine. PostMessage is
// thread-safe; the wndproc turns it into a cancel on the window thread.
func (s *windowsSelector) Dismiss() {
	ovHwndMu.Lock()
	hwnd := ovHwnd
	ovHwndMu.Unlock()
	if hwnd != 0 {
		win.PostMessage(hwnd, wmDismiss, 0, 0)
	}
}

func setOverlayHwnd(hwnd win.HWND) {
	ovHwndMu.Lock()
	ovHwnd = hwnd
	ovHwndMu.Unlock()
}

// selectionFromPixels maps a completed virtual-screen pixel rect onto
// the display containing its center.
func selectionFromPixels(rectPx image.Rectangle, displays []screenshot.Display) (Selection, bool, error) {
	center := image.Pt((rectPx.Min.X+rectPx.Max.X)/2, (rectPx.Min.Y+rectPx.Max.Y)/2)
	d, err := screenshot.DisplayAt(displays, center)
	if err != nil {
		return Selection{}, false, err
	}

	rel := rectPx.Sub(d.Bounds.Min)
	pts := geometry.PointsFromPixels(rel, d.Geometry())
	return Selection{
		Rect: geometry.Selection{
			A:      geometry.Point{X: pts.X, Y: pts.Y},
			B:      geometry.Point{X: pts.X + pts.Width, Y: pts.Y + pts.Height},
			Origin: geometry.OriginTopLeft,
		},
		Display: d,
	}, false, nil
}

func deliverOutcome(out dragOutcome) {
	select {
	case ovOutcome <- out:
	default:
	}
}

func wndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	switch msg {
	case win.WM_LBUTTONDOWN:
		x := int32(win.LOWORD(uint32(lParam)))
		y := int32(win.HIWORD(uint32(lParam)))
		win.SetCapture(hwnd)
		ovSelecting = true
		ovStartX, ovStartY = x, y
		ovEndX, ovEndY = x, y
		win.InvalidateRect(hwnd, nil, false)
		win.UpdateWindow(hwnd)
		return 0

	case win.WM_MOUSEMOVE:
		if ovSelecting {
			ovEndX = int32(win.LOWORD(uint32(lParam)))
			ovEndY = int32(win.HIWORD(uint32(lParam)))
			win.InvalidateRect(hwnd, nil, false)
			win.UpdateWindow(hwnd)
		}
		return 0

	case win.WM_LBUTTONUP:
		if ovSelecting {
			win.ReleaseCapture()
			ovSelecting = false
			ovEndX = int32(win.LOWORD(uint32(lParam)))
			ovEndY = int32(win.HIWORD(uint32(lParam)))

			left := minInt32(ovStartX, ovEndX)
			top := minInt32(ovStartY, ovEndY)
			width := absInt32(ovEndX - ovStartX)
			height := absInt32(ovEndY - ovStartY)
			if width <= minDragSpanPx || height <= minDragSpanPx {
				log.Printf("overlay: drag span %dx%d below minimum, treated as cancel", width, height)
				deliverOutcome(dragOutcome{cancelled: true})
				return 0
			}

			rect := image.Rect(
				int(left)+int(ovVirtualX),
				int(top)+int(ovVirtualY),
				int(left+width)+int(ovVirtualX),
				int(top+height)+int(ovVirtualY),
			)
			log.Printf("overlay: selection completed %v", rect)
			deliverOutcome(dragOutcome{rect: rect})
		}
		return 0

	case win.WM_RBUTTONDOWN, wmDismiss:
		deliverOutcome(dragOutcome{cancelled: true})
		// A posted dismiss arrives with no follow-up input, so wake the
		// message loop explicitly.
		win.PostQuitMessage(0)
		return 0

	case win.WM_PAINT:
		var ps win.PAINTSTRUCT
		hdc := win.BeginPaint(hwnd, &ps)
		if ovBackground != nil {
			drawFrozenScreen(hdc, ovBackground)
		}
		drawHintText(hdc)
		if ovSelecting {
			drawDragRect(hdc, ovStartX, ovStartY, ovEndX, ovEndY)
		}
		win.EndPaint(hwnd, &ps)
		return 0

	case win.WM_SETCURSOR:
		return 1

	case win.WM_TIMER:
		if wParam == keyPollTimerID {
			pollEscape()
		}
		return 0

	case win.WM_KEYDOWN:
		if wParam == win.VK_ESCAPE {
			ovEscapeWasDown = true
			win.PostQuitMessage(0)
		}
		return 0

	case win.WM_KEYUP, win.WM_SYSKEYUP:
		if wParam == win.VK_ESCAPE {
			ovEscapeWasDown = false
		}
		return 0

	case win.WM_NCHITTEST:
		// Everything is client area so the window sees all mouse input.
		return uintptr(win.HTCLIENT)

	case win.WM_DESTROY:
		win.KillTimer(hwnd, keyPollTimerID)
		// No PostQuitMessage here. The success path returns from Select
		// as soon as the outcome channel fires, and a WM_QUIT posted now
		// would sit in the thread queue and instantly cancel the next
		// invocation.
		return 0
	}

	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}

func pollEscape() {
	state, _, _ := procGetAsyncKeyState.Call(uintptr(win.VK_ESCAPE))
	s := uint16(state)
	down := s&0x8000 != 0
	pressed := s&0x0001 != 0
	if !ovEscapeWasDown && (down || pressed) {
		log.Printf("overlay: escape detected via async poll")
		win.PostQuitMessage(0)
	}
	ovEscapeWasDown = down
}

func drawDragRect(hdc win.HDC, startX, startY, endX, endY int32) {
	pen, _, _ := procCreatePen.Call(0, selectionRectPenPx, selectionRectBGR)
	oldPen := win.SelectObject(hdc, win.HGDIOBJ(pen))
	oldBrush := win.SelectObject(hdc, win.GetStockObject(win.NULL_BRUSH))

	left := minInt32(startX, endX)
	top := minInt32(startY, endY)
	right := maxInt32(startX, endX)
	bottom := maxInt32(startY, endY)
	procRectangle.Call(uintptr(hdc), uintptr(left), uintptr(top), uintptr(right), uintptr(bottom))

	win.SelectObject(hdc, oldPen)
	win.SelectObject(hdc, oldBrush)
	win.DeleteObject(win.HGDIOBJ(pen))
}

func drawHintText(hdc win.HDC) {
	line := "Drag to select   ESC or right-click cancels"
	win.SetBkMode(hdc, win.TRANSPARENT)
	win.SetTextColor(hdc, win.COLORREF(hintTextBGR))
	win.TextOut(hdc, 16, 16, syscall.StringToUTF16Ptr(line), int32(len(line)))
}

// drawFrozenScreen blits the captured snapshot as the window background
// through a top-down 32-bit DIB section.
func drawFrozenScreen(hdc win.HDC, img *image.RGBA) {
	memDC := win.CreateCompatibleDC(hdc)
	defer win.DeleteDC(memDC)

	width := img.Bounds().Dx()
	height := img.Bounds().Dy()

	bitmapInfo := win.BITMAPINFO{
		BmiHeader: win.BITMAPINFOHEADER{
			BiSize:        uint32(unsafe.Sizeof(win.BITMAPINFOHEADER{})),
			BiWidth:       int32(width),
			BiHeight:      -int32(height), // top-down
			BiPlanes:      1,
			BiBitCount:    32,
			BiCompression: win.BI_RGB,
		},
	}

	var pBits unsafe.Pointer
	hBitmap := win.CreateDIBSection(memDC, &bitmapInfo.BmiHeader, win.DIB_RGB_COLORS, &pBits, 0, 0)
	if hBitmap == 0 {
		return
	}
	defer win.DeleteObject(win.HGDIOBJ(hBitmap))

	oldBitmap := win.SelectObject(memDC, win.HGDIOBJ(hBitmap))
	defer win.SelectObject(memDC, oldBitmap)

	// RGBA to BGRA, rows DWORD-aligned.
	stride := (((int32(width)*32 + 31) &^ 31) / 8)
	for y := 0; y < height; y++ {
		rowPtr := (*[1 << 29]byte)(unsafe.Pointer(uintptr(pBits) + uintptr(y)*uintptr(stride)))
		src := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for x := 0; x < width; x++ {
			rowPtr[x*4] = src[x*4+2]
			rowPtr[x*4+1] = src[x*4+1]
			rowPtr[x*4+2] = src[x*4]
			rowPtr[x*4+3] = src[x*4+3]
		}
	}

	win.BitBlt(hdc, 0, 0, int32(width), int32(height), memDC, 0, 0, win.SRCCOPY)
}

func minInt32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func maxInt32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func absInt32(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}
