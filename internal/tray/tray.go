// Package tray provides system tray functionality using getlantern/systray.
package tray

import (
	"encoding/binary"

	"github.com/getlantern/systray"
)

// MenuItem represents a menu item
type MenuItem struct {
	ID       int
	Title    string
	Disabled bool
	Checked  bool
	Callback func()
	item     *systray.MenuItem
}

// Tray manages the system tray icon and menu
type Tray struct {
	items   []*MenuItem
	onReady func()
	onExit  func()
	readyCh chan struct{}
	quitCh  chan struct{}
}

// New creates a new system tray
func New(tooltip string) *Tray {
	t := &Tray{
		items:   make([]*MenuItem, 0),
		readyCh: make(chan struct{}),
		quitCh:  make(chan struct{}),
	}

	t.onReady = func() {
		systray.SetTitle("GK")
		systray.SetTooltip(tooltip)
		systray.SetIcon(getIcon())
		close(t.readyCh)
	}

	t.onExit = func() {
		close(t.quitCh)
	}

	return t
}

// AddMenuItem adds a menu item to the tray
func (t *Tray) AddMenuItem(title string, callback func()) int {
	id := len(t.items)
	menuItem := &MenuItem{
		ID:       id,
		Title:    title,
		Callback: callback,
	}
	t.items = append(t.items, menuItem)
	return id
}

// AddDisabledItem adds a non-clickable item, used for the status line and
// section headers.
func (t *Tray) AddDisabledItem(title string) int {
	id := t.AddMenuItem(title, nil)
	t.items[id].Disabled = true
	return id
}

// AddCheckItem adds a toggleable item with an initial checked state.
func (t *Tray) AddCheckItem(title string, checked bool, callback func()) int {
	id := t.AddMenuItem(title, callback)
	t.items[id].Checked = checked
	return id
}

// AddSeparator adds a separator to the menu
func (t *Tray) AddSeparator() {
	t.items = append(t.items, nil) // nil indicates separator
}

// SetItemTitle updates a menu item's text. Safe to call after Run; the
// status line uses this to mirror the engine state.
func (t *Tray) SetItemTitle(id int, title string) {
	if id >= 0 && id < len(t.items) && t.items[id] != nil {
		t.items[id].Title = title
		if t.items[id].item != nil {
			t.items[id].item.SetTitle(title)
		}
	}
}

// SetItemChecked sets the checked state of a menu item
func (t *Tray) SetItemChecked(id int, checked bool) {
	if id >= 0 && id < len(t.items) && t.items[id] != nil {
		if t.items[id].item != nil {
			if checked {
				t.items[id].item.Check()
			} else {
				t.items[id].item.Uncheck()
			}
		}
	}
}

// Run starts the tray event loop (blocks)
func (t *Tray) Run() {
	systray.Run(t.setupMenu, t.onExit)
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	t.onReady()

	// Wait for ready signal
	<-t.readyCh

	// Create menu items
	for _, menuItem := range t.items {
		if menuItem == nil {
			// Separator
			systray.AddSeparator()
		} else {
			item := systray.AddMenuItem(menuItem.Title, "")
			menuItem.item = item

			if menuItem.Checked {
				item.Check()
			}
			if menuItem.Disabled {
				item.Disable()
				continue
			}

			// Handle clicks in goroutine
			if menuItem.Callback != nil {
				go func(mi *MenuItem) {
					for {
						select {
						case <-mi.item.ClickedCh:
							mi.Callback()
						case <-t.quitCh:
							return
						}
					}
				}(menuItem)
			}
		}
	}
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}

// getIcon builds a 16x16 32-bit ICO at startup: a keycap outline with a
// space-bar line, white with full alpha so it reads on dark and light trays.
func getIcon() []byte {
	const (
		w, h      = 16, 16
		pixBytes  = w * h * 4
		maskBytes = h * 4 // 1bpp mask rows padded to 32 bits
		dibBytes  = 40 + pixBytes + maskBytes
	)

	icon := make([]byte, 22+dibBytes)

	// ICO header: one 16x16 32bpp image
	copy(icon[0:6], []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00})
	icon[6] = w
	icon[7] = h
	icon[10] = 0x01 // planes
	icon[12] = 0x20 // bits per pixel
	binary.LittleEndian.PutUint32(icon[14:18], dibBytes)
	binary.LittleEndian.PutUint32(icon[18:22], 22)

	// DIB header; height is doubled to cover the AND mask
	binary.LittleEndian.PutUint32(icon[22:26], 40)
	binary.LittleEndian.PutUint32(icon[26:30], w)
	binary.LittleEndian.PutUint32(icon[30:34], h*2)
	icon[34] = 0x01 // planes
	icon[36] = 0x20 // bits per pixel
	binary.LittleEndian.PutUint32(icon[42:46], pixBytes)

	set := func(x, y int) {
		// pixel rows are stored bottom-up
		off := 62 + ((h-1-y)*w+x)*4
		icon[off] = 0xF2   // B
		icon[off+1] = 0xF2 // G
		icon[off+2] = 0xF2 // R
		icon[off+3] = 0xFF // A
	}

	// keycap outline
	for x := 2; x <= 13; x++ {
		set(x, 3)
		set(x, 12)
	}
	for y := 4; y <= 11; y++ {
		set(2, y)
		set(13, y)
	}
	// space-bar line inside the cap
	for x := 5; x <= 10; x++ {
		set(x, 9)
	}

	return icon
}
