package location

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/vedran77/orbit/internal/domain"
)

const (
	DefaultInterval = 60 * time.Second
	DefaultTimeout  = 10 * time.Second
)

// Publisher stores a sampled location, usually on the server.
type Publisher interface {
	PublishLocation(ctx context.Context, loc domain.Location) error
}

// Ticker is the part of time.Ticker the sampler uses.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type TickerFactory func(d time.Duration) Ticker

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) Chan() <-chan time.Time {
	return t.C
}

func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

type Options struct {
	Interval  time.Duration
	Timeout   time.Duration
	NewTicker TickerFactory
	// OnSample is called with every successful fix.
	OnSample func(domain.Location)
	// OnError receives sampling and publishing failures. None of them stop the ticker.
	OnError func(error)
}

type Sampler struct {
	positioner Positioner
	publisher  Publisher
	opts       Options

	mu      sync.Mutex
	current *domain.Location
	running bool
	ticker  Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewSampler returns a stopped sampler. A nil positioner makes every sample fail with
// ErrUnsupported; a nil publisher keeps fixes local.
func NewSampler(positioner Positioner, publisher Publisher, opts Options) *Sampler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.NewTicker == nil {
		opts.NewTicker = NewTimeTicker
	}
	return &Sampler{positioner: positioner, publisher: publisher, opts: opts}
}

// Current returns the last successful fix, or nil.
func (s *Sampler) Current() *domain.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	loc := *s.current
	return &loc
}

func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SampleOnce waits at most the configured timeout for one fix. A failed publish is
// reported through OnError and does not fail the sample.
func (s *Sampler) SampleOnce(ctx context.Context) (domain.Location, error) {
	if s.positioner == nil {
		return domain.Location{}, ErrUnsupported
	}

	loc, err := s.position(ctx)
	if err != nil {
		return domain.Location{}, err
	}
	if !loc.Valid() {
		return domain.Location{}, ErrInvalidFix
	}

	s.mu.Lock()
	s.current = &loc
	s.mu.Unlock()

	if s.opts.OnSample != nil {
		s.opts.OnSample(loc)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishLocation(ctx, loc); err != nil {
			s.report(fmt.Errorf("%w: %w", ErrPublishFailed, err))
		}
	}
	return loc, nil
}

type fix struct {
	loc domain.Location
	err error
}

func (s *Sampler) position(ctx context.Context) (domain.Location, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	result := make(chan fix, 1)
	go func() {
		loc, err := s.positioner.Position(ctx)
		result <- fix{loc: loc, err: err}
	}()

	select {
	case r := <-result:
		if errors.Is(r.err, context.DeadlineExceeded) {
			return domain.Location{}, ErrTimeout
		}
		return r.loc, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.Location{}, ErrTimeout
		}
		return domain.Location{}, ctx.Err()
	}
}

// Start samples once right away and then on every tick until Stop or until ctx is
// done. Calling Start while running does nothing.
func (s *Sampler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	s.running = true
	s.ticker = s.opts.NewTicker(s.opts.Interval)
	s.stop = make(chan struct{})

	s.wg.Add(1)
	go s.loop(ctx, s.ticker, s.stop)
	glog.Infof("[sampler]started, every %s", s.opts.Interval)
}

// Stop disarms the ticker and waits for an in-flight sample. Calling Stop while
// stopped does nothing.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.halt(s.stop)
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	glog.Infof("[sampler]stopped")
}

// halt must be called with mu held.
func (s *Sampler) halt(stop chan struct{}) {
	if s.stop != stop || !s.running {
		return
	}
	s.running = false
	s.ticker.Stop()
}

func (s *Sampler) loop(ctx context.Context, ticker Ticker, stop chan struct{}) {
	defer s.wg.Done()

	s.tick(ctx)
	for {
		select {
		case <-ticker.Chan():
			s.tick(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			s.mu.Lock()
			s.halt(stop)
			s.mu.Unlock()
			return
		}
	}
}

func (s *Sampler) tick(ctx context.Context) {
	if _, err := s.SampleOnce(ctx); err != nil {
		s.report(err)
	}
}

func (s *Sampler) report(err error) {
	glog.Warningf("[sampler]%s", err)
	if s.opts.OnError != nil {
		s.opts.OnError(err)
	}
}
