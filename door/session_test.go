package door

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/skx/amidoor/hunk"
	"github.com/skx/amidoor/m68k"
	"github.com/skx/amidoor/trap"
)

// code converts instruction words, and any trailing bytes, into a
// segment payload padded to a whole number of longs.
func code(words []uint16, tail ...byte) []byte {
	var out []byte
	for _, w := range words {
		out = append(out, byte(w>>8), byte(w))
	}
	out = append(out, tail...)
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	return out
}

// executable builds a hunk file with a single code segment, and any
// extra segments.
func executable(t *testing.T, body []byte, relocs []hunk.Reloc, extra ...*hunk.Segment) []byte {
	t.Helper()

	f := &hunk.File{
		Segments: append([]*hunk.Segment{{
			Kind:   hunk.Code,
			Size:   uint32(len(body)),
			Data:   body,
			Relocs: relocs,
		}}, extra...),
	}
	raw, err := f.MarshalBinary()
	if err != nil {
		t.Fatalf("failed to build executable: %s", err)
	}
	return raw
}

// hello writes "Hello" and exits.
func hello(t *testing.T) []byte {
	return executable(t, code([]uint16{
		0x4EB9, 0x00FF, 0xFF00, // jsr Output
		0x2200,                 // move.l d0,d1
		0x243C, 0x0000, 0x001E, // move.l #msg,d2
		0x7605,                 // moveq #5,d3
		0x4EB9, 0x00FF, 0xFF10, // jsr Write
		0x7200,                 // moveq #0,d1
		0x4EB9, 0x00FF, 0xFF38, // jsr Exit
	}, []byte("Hello")...), []hunk.Reloc{{Offset: 10, Target: 0}})
}

// echo reads up to 80 bytes into a bss buffer, writes them back, and
// exits.
func echo(t *testing.T) []byte {
	return executable(t, code([]uint16{
		0x4EB9, 0x00FF, 0xFF08, // jsr Input
		0x2200,                 // move.l d0,d1
		0x243C, 0x0000, 0x0000, // move.l #buf,d2
		0x7650,                 // moveq #80,d3
		0x4EB9, 0x00FF, 0xFF18, // jsr Read
		0x2600,                 // move.l d0,d3
		0x4EB9, 0x00FF, 0xFF00, // jsr Output
		0x2200,                 // move.l d0,d1
		0x243C, 0x0000, 0x0000, // move.l #buf,d2
		0x4EB9, 0x00FF, 0xFF10, // jsr Write
		0x7200,                 // moveq #0,d1
		0x4EB9, 0x00FF, 0xFF38, // jsr Exit
	}), []hunk.Reloc{{Offset: 10, Target: 1}, {Offset: 34, Target: 1}},
		&hunk.Segment{Kind: hunk.BSS, Size: 80})
}

// spin loops forever.
func spin(t *testing.T) []byte {
	return executable(t, code([]uint16{0x60FE}), nil)
}

// recorder collects events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// output returns everything written.
func (r *recorder) output() string {
	var out string
	for _, ev := range r.all() {
		if ev.Kind == EventOutput {
			out += string(ev.Data)
		}
	}
	return out
}

// terminated returns the termination events.
func (r *recorder) terminated() []Event {
	var out []Event
	for _, ev := range r.all() {
		if ev.Kind == EventTerminated {
			out = append(out, ev)
		}
	}
	return out
}

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newSession creates and starts a session.
func newSession(t *testing.T, exe []byte, opts ...Option) (*Session, *recorder) {
	t.Helper()

	rec := &recorder{}
	opts = append([]Option{WithEventHandler(rec.handle)}, opts...)
	s, err := New(exe, opts...)
	if err != nil {
		t.Fatalf("failed to create session: %s", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("failed to start session: %s", err)
	}
	return s, rec
}

// TestHello runs a program which writes a message and exits.
func TestHello(t *testing.T) {
	rec := &recorder{}
	s, err := New(hello(t), WithEventHandler(rec.handle), WithContext("user-1"))
	if err != nil {
		t.Fatalf("failed to create session: %s", err)
	}

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if s.State() != TerminatedNormal || s.IsActive() {
		t.Fatalf("unexpected state %s", s.State())
	}

	var chunks []string
	for _, ev := range rec.all() {
		if ev.Context != "user-1" {
			t.Fatalf("event lacks context: %v", ev)
		}
		if ev.Kind == EventOutput {
			chunks = append(chunks, string(ev.Data))
		}
	}
	if len(chunks) != 1 || chunks[0] != "Hello" {
		t.Fatalf("unexpected output %q", chunks)
	}

	events := rec.all()
	if events[0].Kind != EventStarted {
		t.Fatalf("first event was %v", events[0])
	}
	last := events[len(events)-1]
	if last.Kind != EventTerminated || last.Reason != ReasonNormal || last.Err != nil {
		t.Fatalf("last event was %v", last)
	}
	if len(rec.terminated()) != 1 {
		t.Fatalf("expected exactly one termination")
	}
}

// TestReadWaits ensures a read with no input parks the session.
func TestReadWaits(t *testing.T) {
	s, rec := newSession(t, echo(t))

	if st := s.Tick(); st != WaitingForInput {
		t.Fatalf("expected to wait, got %s", st)
	}

	// Further ticks change nothing.
	for i := 0; i < 3; i++ {
		if st := s.Tick(); st != WaitingForInput {
			t.Fatalf("expected to keep waiting, got %s", st)
		}
	}
	if rec.output() != "" {
		t.Fatalf("unexpected output %q", rec.output())
	}

	s.Input([]byte("Y\r\n"))
	if st := s.Tick(); st != TerminatedNormal {
		t.Fatalf("expected to finish, got %s", st)
	}
	if rec.output() != "Y\r\n" {
		t.Fatalf("unexpected output %q", rec.output())
	}

	// We saw running, waiting, running and then terminated.
	var states []State
	for _, ev := range rec.all() {
		if ev.Kind == EventState {
			states = append(states, ev.State)
		}
	}
	want := []State{Running, WaitingForInput, Running, TerminatedNormal}
	if len(states) != len(want) {
		t.Fatalf("unexpected states %v", states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("unexpected states %v", states)
		}
	}
}

// TestReadPartial ensures a read returns what is available.
func TestReadPartial(t *testing.T) {
	s, rec := newSession(t, echo(t))

	// Input before the read is buffered.
	s.Input([]byte("ab"))
	s.Input(nil)
	s.Input([]byte("c"))

	if st := s.Tick(); st != TerminatedNormal {
		t.Fatalf("expected to finish, got %s", st)
	}
	if rec.output() != "abc" {
		t.Fatalf("unexpected output %q", rec.output())
	}
}

// TestRunWaitsForInput drives the session from another goroutine.
func TestRunWaitsForInput(t *testing.T) {
	rec := &recorder{}
	s, err := New(echo(t), WithEventHandler(rec.handle))
	if err != nil {
		t.Fatalf("failed to create session: %s", err)
	}

	errs := make(chan error, 1)
	go func() {
		errs <- s.Run(context.Background())
	}()

	deadline := time.Now().Add(5 * time.Second)
	for s.State() != WaitingForInput {
		if time.Now().After(deadline) {
			t.Fatalf("session never waited, state %s", s.State())
		}
		time.Sleep(time.Millisecond)
	}

	s.Input([]byte("hi\n"))

	select {
	case err := <-errs:
		if err != nil {
			t.Fatalf("unexpected error %s", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("session didn't resume")
	}
	if rec.output() != "hi\n" {
		t.Fatalf("unexpected output %q", rec.output())
	}
}

// TestRunCanceled ensures canceling Run terminates the session.
func TestRunCanceled(t *testing.T) {
	s, err := New(echo(t))
	if err != nil {
		t.Fatalf("failed to create session: %s", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		errs <- s.Run(ctx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for s.State() != WaitingForInput {
		if time.Now().After(deadline) {
			t.Fatalf("session never waited, state %s", s.State())
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-errs:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("unexpected error %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("session didn't stop")
	}
	if s.State() != TerminatedNormal {
		t.Fatalf("unexpected state %s", s.State())
	}
}

// TestIdleTimeout uses a fake clock to expire a waiting session.
func TestIdleTimeout(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s, rec := newSession(t, echo(t), WithIdleTimeout(time.Minute), WithClock(c.Now))

	if st := s.Tick(); st != WaitingForInput {
		t.Fatalf("expected to wait, got %s", st)
	}

	c.Advance(59 * time.Second)
	if st := s.Tick(); st != WaitingForInput {
		t.Fatalf("expired too soon: %s", st)
	}

	c.Advance(time.Second)
	if st := s.Tick(); st != TerminatedTimeout {
		t.Fatalf("expected timeout, got %s", st)
	}
	if !errors.Is(s.Err(), ErrTimeout) {
		t.Fatalf("unexpected error %v", s.Err())
	}

	term := rec.terminated()
	if len(term) != 1 || term[0].Reason != ReasonTimeout {
		t.Fatalf("unexpected termination %v", term)
	}

	// Nothing further happens.
	count := len(rec.all())
	s.Input([]byte("late\n"))
	s.Tick()
	s.Terminate()
	if len(rec.all()) != count {
		t.Fatalf("events after timeout: %v", rec.all()[count:])
	}
	if s.State() != TerminatedTimeout {
		t.Fatalf("state changed after timeout: %s", s.State())
	}
}

// TestIdleTimeoutReset ensures activity postpones the timeout.
func TestIdleTimeoutReset(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s, _ := newSession(t, spin(t), WithIdleTimeout(time.Minute), WithClock(c.Now))

	// A busy program with no I/O times out too.
	if st := s.Tick(); st != Running {
		t.Fatalf("unexpected state %s", st)
	}
	c.Advance(time.Minute)
	if st := s.Tick(); st != TerminatedTimeout {
		t.Fatalf("expected timeout, got %s", st)
	}

	// Input consumed by a read counts as activity.
	s, _ = newSession(t, echo(t), WithIdleTimeout(time.Minute), WithClock(c.Now))
	s.Tick()
	c.Advance(50 * time.Second)
	s.Input([]byte("x"))
	if st := s.Tick(); st != TerminatedNormal {
		t.Fatalf("expected normal exit, got %s", st)
	}
}

// TestMaxDuration caps the total run time.
func TestMaxDuration(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s, rec := newSession(t, spin(t), WithIdleTimeout(0), WithMaxDuration(time.Hour), WithClock(c.Now))

	c.Advance(59 * time.Minute)
	if st := s.Tick(); st != Running {
		t.Fatalf("unexpected state %s", st)
	}
	c.Advance(time.Minute)
	if st := s.Tick(); st != TerminatedTimeout {
		t.Fatalf("expected timeout, got %s", st)
	}
	if term := rec.terminated(); len(term) != 1 || term[0].Reason != ReasonTimeout {
		t.Fatalf("unexpected termination %v", term)
	}
}

// TestTerminate stops a running session.
func TestTerminate(t *testing.T) {
	s, rec := newSession(t, spin(t))

	if st := s.Tick(); st != Running {
		t.Fatalf("unexpected state %s", st)
	}

	s.Terminate()
	if s.State() != TerminatedNormal {
		t.Fatalf("unexpected state %s", s.State())
	}
	count := len(rec.all())

	// Idempotent, and inert.
	s.Terminate()
	s.Tick()
	s.Input([]byte("x"))
	if len(rec.all()) != count {
		t.Fatalf("events after terminate: %v", rec.all()[count:])
	}
	if len(rec.terminated()) != 1 {
		t.Fatalf("expected exactly one termination")
	}
	if s.Err() != nil {
		t.Fatalf("unexpected error %s", s.Err())
	}
}

// TestTerminateBeforeStart ensures a created session can be ended.
func TestTerminateBeforeStart(t *testing.T) {
	s, err := New(hello(t))
	if err != nil {
		t.Fatalf("failed to create session: %s", err)
	}
	s.Terminate()
	if s.State() != TerminatedNormal {
		t.Fatalf("unexpected state %s", s.State())
	}
	if err := s.Start(); !errors.Is(err, ErrStarted) {
		t.Fatalf("expected ErrStarted, got %v", err)
	}
}

// TestTerminateFromHandler ends a session from within its own output.
func TestTerminateFromHandler(t *testing.T) {
	var (
		s      *Session
		events []Event
	)
	handler := func(ev Event) {
		events = append(events, ev)
		if ev.Kind == EventOutput {
			s.Terminate()
		}
	}

	var err error
	s, err = New(hello(t), WithEventHandler(handler))
	if err != nil {
		t.Fatalf("failed to create session: %s", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("failed to start: %s", err)
	}

	if st := s.Tick(); st != TerminatedNormal {
		t.Fatalf("unexpected state %s", st)
	}

	last := events[len(events)-1]
	if last.Kind != EventTerminated {
		t.Fatalf("last event was %v", last)
	}
	if events[len(events)-3].Kind != EventOutput {
		t.Fatalf("unexpected events %v", events)
	}
}

// TestTerminateWhileWaiting ends a session from the handler as it starts
// to wait for input.
func TestTerminateWhileWaiting(t *testing.T) {
	var s *Session
	rec := &recorder{}
	handler := func(ev Event) {
		rec.handle(ev)
		if ev.Kind == EventState && ev.State == WaitingForInput {
			s.Terminate()
		}
	}

	var err error
	s, err = New(echo(t), WithEventHandler(handler))
	if err != nil {
		t.Fatalf("failed to create session: %s", err)
	}

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if s.State() != TerminatedNormal {
		t.Fatalf("unexpected state %s", s.State())
	}
	if len(rec.terminated()) != 1 {
		t.Fatalf("expected exactly one termination, got %v", rec.all())
	}
	events := rec.all()
	if last := events[len(events)-1]; last.Kind != EventTerminated {
		t.Fatalf("last event was %v", last)
	}
	if s.cpu != nil || s.mem != nil {
		t.Fatalf("session wasn't released")
	}
}

// TestTerminateOnResume ensures nothing runs once the handler terminates
// a session which is resuming.
func TestTerminateOnResume(t *testing.T) {
	var (
		s       *Session
		stopped bool
		reads   int
	)
	rec := &recorder{}
	handler := func(ev Event) {
		rec.handle(ev)
		if ev.Kind == EventState && ev.State == Running && s.Buffered() > 0 {
			s.Terminate()
			stopped = true
		}
	}

	var err error
	s, err = New(echo(t), WithEventHandler(handler))
	if err != nil {
		t.Fatalf("failed to create session: %s", err)
	}
	read := s.Traps[trap.Read]
	s.Traps[trap.Read] = TrapHandler{
		Desc: read.Desc,
		Handler: func(s *Session) error {
			if stopped {
				reads++
			}
			return read.Handler(s)
		},
	}
	if err := s.Start(); err != nil {
		t.Fatalf("failed to start session: %s", err)
	}

	if st := s.Tick(); st != WaitingForInput {
		t.Fatalf("expected to wait, got %s", st)
	}
	s.Input([]byte("Y"))
	if st := s.Tick(); st != TerminatedNormal {
		t.Fatalf("expected termination, got %s", st)
	}

	if !stopped {
		t.Fatalf("handler never saw the session resume")
	}
	if reads != 0 {
		t.Fatalf("%d reads after terminate", reads)
	}
	if rec.output() != "" {
		t.Fatalf("unexpected output %q", rec.output())
	}
	if len(rec.terminated()) != 1 {
		t.Fatalf("expected exactly one termination")
	}
}

// TestTerminateOnStart ends a session as soon as it starts.
func TestTerminateOnStart(t *testing.T) {
	var s *Session
	rec := &recorder{}
	handler := func(ev Event) {
		rec.handle(ev)
		if ev.Kind == EventStarted {
			s.Terminate()
		}
	}

	var err error
	s, err = New(hello(t), WithEventHandler(handler))
	if err != nil {
		t.Fatalf("failed to create session: %s", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("failed to start session: %s", err)
	}

	if s.State() != TerminatedNormal || s.cpu != nil {
		t.Fatalf("unexpected state %s", s.State())
	}
	events := rec.all()
	if len(events) != 3 || events[1].Kind != EventState || events[2].Kind != EventTerminated {
		t.Fatalf("unexpected events %v", events)
	}
	if st := s.Tick(); st != TerminatedNormal {
		t.Fatalf("unexpected state %s", st)
	}
	if rec.output() != "" {
		t.Fatalf("unexpected output %q", rec.output())
	}
}

// TestTerminateConcurrent races Terminate against Tick.
func TestTerminateConcurrent(t *testing.T) {
	s, rec := newSession(t, spin(t), WithCycleBudget(1000))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for s.IsActive() {
			s.Tick()
		}
	}()

	time.Sleep(5 * time.Millisecond)
	s.Terminate()
	<-done

	count := len(rec.all())
	s.Tick()
	if len(rec.all()) != count || len(rec.terminated()) != 1 {
		t.Fatalf("unexpected events %v", rec.all())
	}
}

// TestFaults ensures runtime faults end the session.
func TestFaults(t *testing.T) {

	type TestCase struct {
		name string
		code []uint16
		want error
	}

	tests := []TestCase{
		{"illegal", []uint16{0x4AFC}, m68k.ErrIllegalOpcode},
		{"misaligned", []uint16{0x4EF9, 0x0000, 0x1001}, m68k.ErrMisalignedFetch},
		{"bounds", []uint16{0x2039, 0x00F0, 0x0000}, m68k.ErrMemoryOutOfBounds},
		{"write bounds", []uint16{
			0x7202,                 // moveq #2,d1
			0x243C, 0x00F0, 0x0000, // move.l #$F00000,d2
			0x7605,                 // moveq #5,d3
			0x4EB9, 0x00FF, 0xFF10, // jsr Write
		}, m68k.ErrMemoryOutOfBounds},
	}

	for _, tc := range tests {
		s, rec := newSession(t, executable(t, code(tc.code), nil))
		if st := s.Tick(); st != TerminatedFault {
			t.Fatalf("%s: unexpected state %s", tc.name, st)
		}
		if !errors.Is(s.Err(), tc.want) {
			t.Fatalf("%s: unexpected error %v", tc.name, s.Err())
		}
		term := rec.terminated()
		if len(term) != 1 || term[0].Reason != ReasonFault || !errors.Is(term[0].Err, tc.want) {
			t.Fatalf("%s: unexpected termination %v", tc.name, term)
		}
	}
}

// TestHalt ensures STOP is a normal exit.
func TestHalt(t *testing.T) {
	s, rec := newSession(t, executable(t, code([]uint16{0x4E72, 0x2700}), nil))
	if st := s.Tick(); st != TerminatedNormal {
		t.Fatalf("unexpected state %s", st)
	}
	if term := rec.terminated(); len(term) != 1 || term[0].Reason != ReasonNormal {
		t.Fatalf("unexpected termination %v", term)
	}
}

// TestLibraryCalls uses the jump table, and exits by returning.
func TestLibraryCalls(t *testing.T) {
	exe := executable(t, code([]uint16{
		0x4EAE, 0xFFFA, // jsr -6(a6)
		0x2200,                 // move.l d0,d1
		0x243C, 0x0000, 0x0016, // move.l #msg,d2
		0x7602,         // moveq #2,d3
		0x4EAE, 0xFFEE, // jsr -18(a6)
		0x7007, // moveq #7,d0
		0x4E75, // rts
	}, []byte("OK")...), []hunk.Reloc{{Offset: 8, Target: 0}})

	s, rec := newSession(t, exe)
	if st := s.Tick(); st != TerminatedNormal {
		t.Fatalf("unexpected state %s: %v", st, s.Err())
	}
	if rec.output() != "OK" {
		t.Fatalf("unexpected output %q", rec.output())
	}
	if s.ExitCode() != 7 {
		t.Fatalf("unexpected exit code %d", s.ExitCode())
	}
}

// TestBadHandle ensures unknown handles are refused.
func TestBadHandle(t *testing.T) {
	s, rec := newSession(t, hello(t))

	s.cpu.D[1] = 99
	s.cpu.D[2] = 0x1000
	s.cpu.D[3] = 4
	if err := TrapWrite(s); err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if s.cpu.D[0] != 0xFFFFFFFF {
		t.Fatalf("unexpected result %08X", s.cpu.D[0])
	}
	if err := TrapRead(s); err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if s.cpu.D[0] != 0xFFFFFFFF {
		t.Fatalf("unexpected result %08X", s.cpu.D[0])
	}
	if rec.output() != "" {
		t.Fatalf("unexpected output %q", rec.output())
	}

	// Both handles work in both directions.
	s.cpu.D[1] = InputHandle
	if err := TrapWrite(s); err != nil || s.cpu.D[0] != 4 {
		t.Fatalf("write to input handle failed: %v %d", err, s.cpu.D[0])
	}
}

// TestAllocMem exercises the bump allocator.
func TestAllocMem(t *testing.T) {
	s, _ := newSession(t, hello(t), WithMemorySize(0x20000), WithStackSize(0x8000))

	alloc := func(size uint32) uint32 {
		s.cpu.D[1] = size
		if err := TrapAllocMem(s); err != nil {
			t.Fatalf("unexpected error %s", err)
		}
		return s.cpu.D[0]
	}

	a := alloc(10)
	b := alloc(1)
	if a == 0 || b == 0 {
		t.Fatalf("allocation failed")
	}
	if a%8 != 0 || b%8 != 0 || b != a+16 {
		t.Fatalf("unexpected addresses 0x%X 0x%X", a, b)
	}
	if a < s.Image().End {
		t.Fatalf("allocation 0x%X overlaps the program", a)
	}

	// Memory is zeroed, even if the program used it before.
	if err := s.mem.FillRange(b+8, 16, 0xAA); err != nil {
		t.Fatalf("failed to dirty memory: %s", err)
	}
	c := alloc(16)
	data, _ := s.mem.GetRange(c, 16)
	for _, v := range data {
		if v != 0 {
			t.Fatalf("allocation wasn't cleared")
		}
	}

	if alloc(0) != 0 {
		t.Fatalf("zero sized allocation succeeded")
	}
	if alloc(0x100000) != 0 {
		t.Fatalf("huge allocation succeeded")
	}
	if alloc(0xFFFFFFFF) != 0 {
		t.Fatalf("wrapping allocation succeeded")
	}

	// The stack is never handed out.
	for {
		p := alloc(0x1000)
		if p == 0 {
			break
		}
		if p+0x1000 > 0x20000-0x8000 {
			t.Fatalf("allocation 0x%X reaches the stack", p)
		}
	}

	if err := TrapFreeMem(s); err != nil {
		t.Fatalf("unexpected error %s", err)
	}
}

// TestStartErrors covers load failures.
func TestStartErrors(t *testing.T) {
	s, err := New([]byte("not an executable"))
	if err != nil {
		t.Fatalf("failed to create session: %s", err)
	}
	if err := s.Start(); !errors.Is(err, hunk.ErrUnsupportedFormat) {
		t.Fatalf("unexpected error %v", err)
	}
	if s.State() != Created {
		t.Fatalf("failed start changed state to %s", s.State())
	}
	if err := s.Run(context.Background()); !errors.Is(err, hunk.ErrUnsupportedFormat) {
		t.Fatalf("unexpected error %v", err)
	}

	// Too big to fit below the stack.
	big := executable(t, make([]byte, 0x8000), nil)
	s, err = New(big, WithMemorySize(0x10000), WithStackSize(0x8000))
	if err != nil {
		t.Fatalf("failed to create session: %s", err)
	}
	if err := s.Start(); !errors.Is(err, ErrNoRoom) {
		t.Fatalf("unexpected error %v", err)
	}

	// Too big for memory at all.
	s, err = New(big, WithMemorySize(0x4000), WithStackSize(0x1000))
	if err != nil {
		t.Fatalf("failed to create session: %s", err)
	}
	if err := s.Start(); !errors.Is(err, hunk.ErrRelocationOutOfRange) {
		t.Fatalf("unexpected error %v", err)
	}
}

// TestOptions covers option validation.
func TestOptions(t *testing.T) {
	exe := hello(t)

	if _, err := New(exe, WithMemorySize(int(0x01000000))); !errors.Is(err, ErrMemorySize) {
		t.Fatalf("expected memory size error, got %v", err)
	}
	if _, err := New(exe, WithMemorySize(0x8000), WithStackSize(0x8000)); !errors.Is(err, ErrMemorySize) {
		t.Fatalf("expected memory size error, got %v", err)
	}
	if _, err := New(exe, WithCycleBudget(0)); err == nil {
		t.Fatalf("expected budget error")
	}
	if _, err := New(exe, WithIdleTimeout(-time.Second)); err == nil {
		t.Fatalf("expected timeout error")
	}
	if _, err := New(exe, WithMaxDuration(-time.Second)); err == nil {
		t.Fatalf("expected duration error")
	}

	s, err := New(exe, WithWorkDir("/tmp/door"))
	if err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if s.WorkDir() != "/tmp/door" {
		t.Fatalf("unexpected workdir %q", s.WorkDir())
	}
	if s.Image() != nil {
		t.Fatalf("image before start")
	}
}

// TestDeterministic loads the same program twice.
func TestDeterministic(t *testing.T) {
	exe := echo(t)

	a, _ := newSession(t, exe)
	b, _ := newSession(t, exe)

	img := a.Image()
	for _, p := range img.Segments {
		x, err := a.mem.GetRange(p.Addr, int(p.Size))
		if err != nil {
			t.Fatalf("failed to read: %s", err)
		}
		y, err := b.mem.GetRange(p.Addr, int(p.Size))
		if err != nil {
			t.Fatalf("failed to read: %s", err)
		}
		if string(x) != string(y) {
			t.Fatalf("segment at 0x%X differs", p.Addr)
		}
	}
}

// TestStateNames covers the String methods.
func TestStateNames(t *testing.T) {
	if TerminatedTimeout.String() != "terminated-timeout" || State(42).String() != "State(42)" {
		t.Fatalf("unexpected state names")
	}
	if ReasonFault.String() != "fault" || Reason(9).String() != "Reason(9)" {
		t.Fatalf("unexpected reason names")
	}
	if !TerminatedFault.Terminal() || WaitingForInput.Terminal() {
		t.Fatalf("unexpected terminal states")
	}
}
