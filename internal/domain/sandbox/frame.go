package sandbox

import (
	"sync"
)

// Frame owns the RunGeneration of one preview. Every Remount tears down the
// previous mount and mounts a fresh one under a new generation.
type Frame struct {
	mu         sync.Mutex
	sandbox    Sandbox
	generation Generation
	current    *Handle
	document   string
	mounted    bool
	onMount    func(Handle)
}

// NewFrame creates a frame over sb. onMount, when set, is called after each
// successful mount with the frame lock released.
func NewFrame(sb Sandbox, onMount func(Handle)) *Frame {
	return &Frame{sandbox: sb, onMount: onMount}
}

// Remount unmounts the current document and mounts document under the next
// generation. The generation advances even if the mount fails.
func (f *Frame) Remount(document string) (Handle, error) {
	f.mu.Lock()
	h, err := f.remountLocked(document)
	f.mu.Unlock()

	if err == nil && f.onMount != nil {
		f.onMount(h)
	}
	return h, err
}

// Refresh remounts the most recently mounted document.
func (f *Frame) Refresh() (Handle, error) {
	f.mu.Lock()
	if !f.mounted {
		f.mu.Unlock()
		return Handle{}, ErrNothingMounted
	}
	h, err := f.remountLocked(f.document)
	f.mu.Unlock()

	if err == nil && f.onMount != nil {
		f.onMount(h)
	}
	return h, err
}

func (f *Frame) remountLocked(document string) (Handle, error) {
	if f.current != nil {
		f.sandbox.Unmount(*f.current)
		f.current = nil
	}

	f.generation++
	f.document = document
	f.mounted = true

	h, err := f.sandbox.Mount(document)
	if err != nil {
		return Handle{}, err
	}
	h.Generation = f.generation
	f.current = &h
	return h, nil
}

// Current returns the live mount.
func (f *Frame) Current() (Handle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return Handle{}, false
	}
	return *f.current, true
}

// Document returns the most recently mounted document.
func (f *Frame) Document() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.document, f.mounted
}

// Generation returns the latest generation.
func (f *Frame) Generation() Generation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generation
}

// Close unmounts the live document.
func (f *Frame) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current != nil {
		f.sandbox.Unmount(*f.current)
		f.current = nil
	}
}
