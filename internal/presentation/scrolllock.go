package presentation

import "sync"

// ScrollLock freezes the background while overlays are open. It stays locked
// as long as any handle is held.
type ScrollLock struct {
	mu   sync.Mutex
	held map[*ScrollHandle]struct{}
}

func NewScrollLock() *ScrollLock {
	return &ScrollLock{held: make(map[*ScrollHandle]struct{})}
}

// ScrollHandle is one acquisition of a ScrollLock.
type ScrollHandle struct {
	lock *ScrollLock
}

func (l *ScrollLock) Acquire() *ScrollHandle {
	h := &ScrollHandle{lock: l}
	l.mu.Lock()
	l.held[h] = struct{}{}
	l.mu.Unlock()
	return h
}

// Release gives the handle back. Releasing twice is a no-op.
func (h *ScrollHandle) Release() {
	if h == nil {
		return
	}
	h.lock.mu.Lock()
	delete(h.lock.held, h)
	h.lock.mu.Unlock()
}

func (l *ScrollLock) Locked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held) > 0
}

// ReleaseAll drops every outstanding handle, for teardown paths that never
// reach Close. It returns how many were held.
func (l *ScrollLock) ReleaseAll() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.held)
	l.held = make(map[*ScrollHandle]struct{})
	return n
}

// Overlay shows one scheme card above the chat and holds the scroll lock
// while open.
type Overlay struct {
	lock   *ScrollLock
	handle *ScrollHandle
	card   SchemeCard
}

func NewOverlay(lock *ScrollLock) *Overlay {
	return &Overlay{lock: lock}
}

// Open shows card, replacing any card already shown.
func (o *Overlay) Open(card SchemeCard) {
	if o.handle == nil {
		o.handle = o.lock.Acquire()
	}
	o.card = card
}

func (o *Overlay) Close() {
	o.handle.Release()
	o.handle = nil
	o.card = SchemeCard{}
}

func (o *Overlay) IsOpen() bool {
	return o.handle != nil
}

func (o *Overlay) Card() (SchemeCard, bool) {
	return o.card, o.handle != nil
}
