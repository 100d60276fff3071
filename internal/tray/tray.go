// Package tray provides a system tray indicator for the signcam live view.
package tray

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"runtime"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/signcam/internal/status"
)

// Tray mirrors the detection status in the system tray.
type Tray struct {
	url    string
	cell   *status.Cell
	onOpen func()
	onQuit func()
	mu     sync.RWMutex

	menuStatus *systray.MenuItem
}

// New creates a Tray for the live view served at url.
func New(url string, cell *status.Cell) *Tray {
	t := &Tray{url: url, cell: cell}
	t.onOpen = func() {
		if err := OpenBrowser(url); err != nil {
			log.Printf("Error opening browser: %v", err)
		}
	}
	return t
}

// OnOpen replaces the "Open live view" action.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray and blocks until Quit is chosen or ctx is done.
// It must be called from the main goroutine.
func (t *Tray) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		systray.Quit()
	}()
	systray.Run(func() { t.onReady(ctx) }, func() {})
}

// onReady is called when the system tray is ready.
func (t *Tray) onReady(ctx context.Context) {
	systray.SetTitle(Title(t.cell.Get()))
	systray.SetTooltip("Sign language detection")

	t.menuStatus = systray.AddMenuItem(t.cell.Get(), "Current detection status")
	t.menuStatus.Disable()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open live view", "Open "+t.url+" in the browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit signcam")

	updates, unsubscribe := t.cell.Subscribe()

	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-updates:
				if !ok {
					return
				}
				t.setStatus(snap.Text)
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) setStatus(text string) {
	systray.SetTitle(Title(text))
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(text)
	}
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit runs the quit callback and tears down the tray.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Title formats the tray title for a status message.
func Title(text string) string {
	if text == "" {
		return "signcam"
	}
	return "signcam · " + text
}

// BrowserCommand returns the command that opens url on goos.
func BrowserCommand(goos, url string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "open", []string{url}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{url}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
	default:
		return "", nil, fmt.Errorf("opening a browser is not supported on %s", goos)
	}
}

// OpenBrowser opens url in the default browser without waiting for it.
func OpenBrowser(url string) error {
	name, args, err := BrowserCommand(runtime.GOOS, url)
	if err != nil {
		return err
	}
	return exec.Command(name, args...).Start()
}
