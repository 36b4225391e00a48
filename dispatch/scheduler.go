package dispatch

import (
	"sync"
)

// Viewport is the drawable area.
type Viewport struct {
	Width  int
	Height int
}

// Renderer draws an instruction into a viewport.
type Renderer interface {
	Render(instr *Instruction, vp Viewport) error
}

// ResizeSource notifies about viewport changes. The returned function
// removes the subscription.
type ResizeSource interface {
	OnResize(fn func(Viewport)) (cancel func())
}

// Scheduler keeps the last successful result on screen and redraws it on
// resize. It holds at most one resize subscription at a time.
type Scheduler struct {
	mu       sync.Mutex
	renderer Renderer
	source   ResizeSource
	viewport Viewport
	current  *Instruction
	cancel   func()
}

func NewScheduler(renderer Renderer, source ResizeSource, vp Viewport) *Scheduler {
	return &Scheduler{renderer: renderer, source: source, viewport: vp}
}

// Show renders instr. Failures only report status and leave the previous
// result (and its subscription) in place; an empty result clears it.
func (s *Scheduler) Show(instr *Instruction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if instr.Kind == KindFailed {
		return s.renderer.Render(instr, s.viewport)
	}

	s.unsubscribe()
	s.current = nil
	if err := s.renderer.Render(instr, s.viewport); err != nil {
		return err
	}
	if instr.Kind == KindEmpty {
		return nil
	}

	s.current = instr
	if s.source != nil {
		s.cancel = s.source.OnResize(s.resize)
	}
	return nil
}

// Current returns the instruction on screen, if any.
func (s *Scheduler) Current() *Instruction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Close drops the resize subscription.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribe()
}

func (s *Scheduler) resize(vp Viewport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport = vp
	if s.current == nil {
		return
	}
	// rows are already decoded; redraw without refetching
	_ = s.renderer.Render(s.current, vp)
}

func (s *Scheduler) unsubscribe() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Broadcaster is an in-process ResizeSource.
type Broadcaster struct {
	mu        sync.Mutex
	next      int
	listeners map[int]func(Viewport)
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{listeners: map[int]func(Viewport){}}
}

func (b *Broadcaster) OnResize(fn func(Viewport)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.listeners[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

// Resize notifies every listener.
func (b *Broadcaster) Resize(vp Viewport) {
	b.mu.Lock()
	fns := make([]func(Viewport), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(vp)
	}
}

// Listeners reports the number of active subscriptions.
func (b *Broadcaster) Listeners() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}
