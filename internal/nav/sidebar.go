package nav

import (
	"net/http"
	"sync"
)

// ScrollLocker freezes and restores background scrolling.
type ScrollLocker interface {
	Lock()
	Unlock()
}

// Sidebar tracks the slide-in menu and guarantees the scroll lock it takes
// is released exactly once, whichever way the menu goes away.
type Sidebar struct {
	mu       sync.Mutex
	locker   ScrollLocker
	open     bool
	locked   bool
	disposed bool
}

func NewSidebar(locker ScrollLocker) *Sidebar {
	return &Sidebar{locker: locker}
}

// RestoreSidebar rebuilds the state of a sidebar that the browser reports as
// already open, and therefore already holding the scroll lock.
func RestoreSidebar(locker ScrollLocker, open bool) *Sidebar {
	return &Sidebar{locker: locker, open: open, locked: open}
}

func (s *Sidebar) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || s.open {
		return
	}
	s.open = true
	if !s.locked {
		s.locked = true
		s.locker.Lock()
	}
}

// Close handles the close button and overlay clicks alike.
func (s *Sidebar) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	s.release()
}

// Dispose tears the sidebar down. Safe to defer and to call repeatedly.
func (s *Sidebar) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	s.disposed = true
	s.release()
}

func (s *Sidebar) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Sidebar) release() {
	if s.locked {
		s.locked = false
		s.locker.Unlock()
	}
}

// TriggerLocker relays lock changes to the browser as HX-Trigger events
// (scroll-lock, scroll-unlock) handled by app.js.
type TriggerLocker struct {
	w http.ResponseWriter
}

func NewTriggerLocker(w http.ResponseWriter) *TriggerLocker {
	return &TriggerLocker{w: w}
}

func (l *TriggerLocker) Lock()   { l.w.Header().Set("HX-Trigger", "scroll-lock") }
func (l *TriggerLocker) Unlock() { l.w.Header().Set("HX-Trigger", "scroll-unlock") }
