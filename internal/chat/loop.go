package chat

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

var ErrLoopStopped = errors.New("event loop stopped")

// Renderer consumes the intent produced by each processed event before the
// loop takes the next one.
type Renderer interface {
	Render(intent ViewIntent, layout LayoutMode)
}

type RenderFunc func(intent ViewIntent, layout LayoutMode)

func (f RenderFunc) Render(intent ViewIntent, layout LayoutMode) { f(intent, layout) }

// Result is what Post reports back for an event.
type Result struct {
	Intent ViewIntent
	Layout LayoutMode
	Err    error
}

type job struct {
	ev    Event
	fn    func(*Dispatcher)
	reply chan Result
}

// Loop is the single event-processing goroutine. Everything that touches
// the registry goes through it.
type Loop struct {
	dispatcher *Dispatcher
	renderer   Renderer
	log        *zap.Logger

	jobs chan job
	done chan struct{}
}

func NewLoop(d *Dispatcher, r Renderer, queue int, log *zap.Logger) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	if queue <= 0 {
		queue = 128
	}
	return &Loop{
		dispatcher: d,
		renderer:   r,
		log:        log,
		jobs:       make(chan job, queue),
		done:       make(chan struct{}),
	}
}

// Run processes events until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-l.jobs:
			if j.fn != nil {
				j.fn(l.dispatcher)
				close(j.reply)
				continue
			}
			res := l.process(j.ev)
			if j.reply != nil {
				j.reply <- res
			}
		}
	}
}

func (l *Loop) process(ev Event) Result {
	intent, err := l.dispatcher.Dispatch(ev)
	res := Result{Intent: intent, Layout: l.dispatcher.registry.Layout(), Err: err}
	switch {
	case errors.Is(err, ErrDeferred):
		l.log.Debug("event deferred", zap.String("event", ev.eventName()))
		return res
	case err != nil:
		l.log.Warn("event failed", zap.String("event", ev.eventName()), zap.Error(err))
		return res
	}
	if l.renderer != nil {
		l.renderer.Render(intent, res.Layout)
	}
	return res
}

func (l *Loop) enqueue(ctx context.Context, j job) error {
	select {
	case l.jobs <- j:
		return nil
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post enqueues ev without waiting for it to be processed.
func (l *Loop) Post(ctx context.Context, ev Event) error {
	return l.enqueue(ctx, job{ev: ev})
}

// Send enqueues ev and waits for its result.
func (l *Loop) Send(ctx context.Context, ev Event) (Result, error) {
	reply := make(chan Result, 1)
	if err := l.enqueue(ctx, job{ev: ev, reply: reply}); err != nil {
		return Result{}, err
	}
	select {
	case res := <-reply:
		return res, nil
	case <-l.done:
		return Result{}, ErrLoopStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Do runs fn on the loop goroutine and waits for it. fn must copy out
// whatever it reads.
func (l *Loop) Do(ctx context.Context, fn func(*Dispatcher)) error {
	reply := make(chan Result)
	if err := l.enqueue(ctx, job{fn: fn, reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
