package output

import (
	"fmt"
	"image"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/bryanchriswhite/FlexiView/internal/logger"
	"github.com/bryanchriswhite/FlexiView/internal/monitor"
)

// putImageHeader is the fixed size of a PutImage request in bytes.
const putImageHeader = 24

// X11Window is a borderless override-redirect window covering one monitor.
type X11Window struct {
	display string
	mon     monitor.Descriptor

	mu      sync.RWMutex
	conn    *xgb.Conn
	screen  *xproto.ScreenInfo
	window  xproto.Window
	gc      xproto.Gcontext
	running bool

	// pixel format for the root depth
	bytesPerPixel int
	scanlinePad   int
	maxRequest    int
	buf           []byte
}

// NewX11Window prepares a window for mon on the given X display ("" uses $DISPLAY).
func NewX11Window(display string, mon monitor.Descriptor) *X11Window {
	return &X11Window{display: display, mon: mon}
}

// Start creates and maps the window at the monitor's geometry
func (w *X11Window) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("window already running")
	}

	conn, err := xgb.NewConnDisplay(w.display)
	if err != nil {
		return fmt.Errorf("failed to connect to X server: %w", err)
	}
	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	for _, format := range setup.PixmapFormats {
		if format.Depth == screen.RootDepth {
			w.bytesPerPixel = int(format.BitsPerPixel) / 8
			w.scanlinePad = int(format.ScanlinePad) / 8
			break
		}
	}
	if w.bytesPerPixel != 3 && w.bytesPerPixel != 4 {
		conn.Close()
		return fmt.Errorf("unsupported pixel format for depth %d", screen.RootDepth)
	}
	w.maxRequest = int(setup.MaximumRequestLength) * 4

	wid, err := xproto.NewWindowId(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create window ID: %w", err)
	}

	// Values are ordered by mask bit: BackPixel, OverrideRedirect, EventMask.
	mask := uint32(xproto.CwBackPixel | xproto.CwOverrideRedirect | xproto.CwEventMask)
	values := []uint32{
		0x000000,
		1,
		xproto.EventMaskExposure | xproto.EventMaskStructureNotify,
	}
	err = xproto.CreateWindowChecked(
		conn,
		screen.RootDepth,
		wid,
		screen.Root,
		int16(w.mon.X), int16(w.mon.Y),
		uint16(w.mon.Width), uint16(w.mon.Height),
		0,
		xproto.WindowClassInputOutput,
		screen.RootVisual,
		mask,
		values,
	).Check()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create window: %w", err)
	}

	w.conn = conn
	w.screen = screen
	w.window = wid

	if err := w.setWindowTitle("FlexiView - " + w.mon.Name); err != nil {
		logger.WithComponent("display").Warn().Err(err).Msg("Failed to set window title")
	}
	if err := w.setWindowClass("flexiview", "FlexiView"); err != nil {
		logger.WithComponent("display").Warn().Err(err).Msg("Failed to set window class")
	}

	if err := xproto.MapWindowChecked(conn, wid).Check(); err != nil {
		w.destroy()
		return fmt.Errorf("failed to map window: %w", err)
	}

	gc, err := xproto.NewGcontextId(conn)
	if err != nil {
		w.destroy()
		return fmt.Errorf("failed to create graphics context: %w", err)
	}
	if err := xproto.CreateGCChecked(conn, gc, xproto.Drawable(wid), 0, nil).Check(); err != nil {
		w.destroy()
		return fmt.Errorf("failed to create GC: %w", err)
	}
	w.gc = gc
	conn.Sync()

	w.running = true
	logger.WithComponent("display").Info().
		Str("monitor", w.mon.String()).
		Uint32("window_id", uint32(wid)).
		Msg("Presentation window created")
	return nil
}

// Stop destroys the window and closes the connection
func (w *X11Window) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.destroy()
	w.running = false
	logger.WithComponent("display").Info().Str("monitor", w.mon.String()).Msg("Presentation window closed")
	return nil
}

func (w *X11Window) destroy() {
	if w.conn == nil {
		return
	}
	if w.gc != 0 {
		xproto.FreeGC(w.conn, w.gc)
		w.gc = 0
	}
	if w.window != 0 {
		xproto.DestroyWindow(w.conn, w.window)
		w.window = 0
	}
	w.conn.Sync()
	w.conn.Close()
	w.conn = nil
}

// WriteFrame converts frame to the server's pixel layout and uploads it in
// row bands that each fit in one request.
func (w *X11Window) WriteFrame(frame *image.RGBA) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return fmt.Errorf("window not running")
	}

	b := frame.Bounds()
	width, height := b.Dx(), b.Dy()
	if width != w.mon.Width || height != w.mon.Height {
		return fmt.Errorf("frame size mismatch: got %dx%d, expected %dx%d",
			width, height, w.mon.Width, w.mon.Height)
	}

	stride := padTo(width*w.bytesPerPixel, w.scanlinePad)
	if need := stride * height; cap(w.buf) < need {
		w.buf = make([]byte, need)
	}
	data := w.buf[:stride*height]
	packBGR(data, frame, stride, w.bytesPerPixel)

	rows := bandRows(w.maxRequest, stride, height)
	for y := 0; y < height; y += rows {
		n := rows
		if y+n > height {
			n = height - y
		}
		err := xproto.PutImageChecked(
			w.conn,
			xproto.ImageFormatZPixmap,
			xproto.Drawable(w.window),
			w.gc,
			uint16(width), uint16(n),
			0, int16(y),
			0,
			w.screen.RootDepth,
			data[y*stride:(y+n)*stride],
		).Check()
		if err != nil {
			return fmt.Errorf("failed to put image: %w", err)
		}
	}
	return nil
}

// Name returns the output type name
func (w *X11Window) Name() string {
	return "X11 Window"
}

// IsRunning returns true if the window is mapped
func (w *X11Window) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *X11Window) setWindowTitle(title string) error {
	titleAtom, err := w.getAtom("_NET_WM_NAME")
	if err != nil {
		return err
	}
	utf8Atom, err := w.getAtom("UTF8_STRING")
	if err != nil {
		return err
	}
	return xproto.ChangePropertyChecked(
		w.conn,
		xproto.PropModeReplace,
		w.window,
		titleAtom,
		utf8Atom,
		8,
		uint32(len(title)),
		[]byte(title),
	).Check()
}

func (w *X11Window) setWindowClass(instance, class string) error {
	classAtom, err := w.getAtom("WM_CLASS")
	if err != nil {
		return err
	}
	// WM_CLASS format: instance\0class\0
	classStr := instance + "\x00" + class + "\x00"
	return xproto.ChangePropertyChecked(
		w.conn,
		xproto.PropModeReplace,
		w.window,
		classAtom,
		xproto.AtomString,
		8,
		uint32(len(classStr)),
		[]byte(classStr),
	).Check()
}

func (w *X11Window) getAtom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(w.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}

// packBGR writes frame into dst as BGRx (4 bytes) or BGR (3 bytes) rows.
func packBGR(dst []byte, frame *image.RGBA, stride, bpp int) {
	b := frame.Bounds()
	for y := 0; y < b.Dy(); y++ {
		src := frame.Pix[y*frame.Stride : y*frame.Stride+b.Dx()*4]
		row := dst[y*stride:]
		for x := 0; x < b.Dx(); x++ {
			s := src[x*4:]
			d := row[x*bpp:]
			d[0], d[1], d[2] = s[2], s[1], s[0]
			if bpp == 4 {
				d[3] = 0
			}
		}
	}
}

func padTo(n, pad int) int {
	if pad <= 1 {
		return n
	}
	return (n + pad - 1) / pad * pad
}

// bandRows is how many rows of stride bytes fit in one request, at least 1.
func bandRows(maxRequest, stride, height int) int {
	if stride <= 0 {
		return height
	}
	rows := (maxRequest - putImageHeader) / stride
	if rows < 1 {
		rows = 1
	}
	if rows > height {
		rows = height
	}
	return rows
}
