// Package door runs a single Amiga door program on behalf of one user.
//
// A Session owns its own memory and CPU.  It is driven cooperatively:
// each call to Tick runs a bounded slice of the program, dispatches any
// host routines the program calls, and returns.  When the program wants
// input which hasn't arrived the session parks in WaitingForInput until
// Input is called; nothing ever blocks the calling goroutine.
//
// Everything the program does which is visible from the outside (its
// output, and changes in its lifecycle) is reported through an event
// handler.
package door

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skx/amidoor/hunk"
	"github.com/skx/amidoor/m68k"
	"github.com/skx/amidoor/memory"
	"github.com/skx/amidoor/trap"
)

const (
	// DefaultCycleBudget is the number of cycles a single Tick runs.
	DefaultCycleBudget = 20000

	// DefaultStackSize is the size of the stack, at the top of memory.
	DefaultStackSize = 64 * 1024

	// DefaultIdleTimeout is how long a session may sit without reading
	// or writing before it is terminated.
	DefaultIdleTimeout = 5 * time.Minute

	// trapCost is the cycle charge for dispatching a host routine.
	trapCost = 40
)

var (
	// ErrStarted is returned when Start is called more than once.
	ErrStarted = errors.New("session already started")

	// ErrTimeout is reported when a session is terminated for being
	// idle, or running too long.
	ErrTimeout = errors.New("session timed out")

	// ErrMemorySize is returned when the requested memory cannot hold
	// a program and its stack, or would overlap the trap area.
	ErrMemorySize = errors.New("invalid memory size")

	// ErrNoRoom is returned by Start when the loaded image overlaps
	// the stack.
	ErrNoRoom = errors.New("program does not fit in memory")

	// ErrExit is returned by the Exit routine, to end the program.
	//
	// It should be handled and expected by callers.
	ErrExit = errors.New("EXIT")

	// errWaiting is returned by the Read routine when there is no
	// input to satisfy it.
	errWaiting = errors.New("WAITING")
)

// State is the lifecycle state of a session.
type State int32

// Session states.
const (
	Created State = iota
	Running
	WaitingForInput
	TerminatedNormal
	TerminatedFault
	TerminatedTimeout
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case WaitingForInput:
		return "waiting-for-input"
	case TerminatedNormal:
		return "terminated-normal"
	case TerminatedFault:
		return "terminated-fault"
	case TerminatedTimeout:
		return "terminated-timeout"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Terminal returns true for the three terminated states.
func (s State) Terminal() bool {
	return s >= TerminatedNormal
}

// Reason explains why a session terminated.
type Reason int

// Termination reasons.
const (
	ReasonNormal Reason = iota
	ReasonFault
	ReasonTimeout
)

// String returns the name of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonNormal:
		return "normal"
	case ReasonFault:
		return "fault"
	case ReasonTimeout:
		return "timeout"
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

// EventKind is the type of an Event.
type EventKind int

// Event kinds.
const (
	// EventStarted is sent once, when the program has been loaded.
	EventStarted EventKind = iota

	// EventOutput carries bytes the program wrote.
	EventOutput

	// EventState is sent on every change of state.
	EventState

	// EventTerminated is sent once, as the last event.
	EventTerminated
)

// Event is something the outside world may want to know about.
type Event struct {
	// Kind is the type of the event.
	Kind EventKind

	// Context is the value given to WithContext.
	Context any

	// Data holds the bytes written, for EventOutput.  It is owned by
	// the receiver.
	Data []byte

	// State is the new state, for EventState.
	State State

	// Reason is set for EventTerminated.
	Reason Reason

	// Err is the fault, or ErrTimeout, for EventTerminated.
	Err error
}

// Option configures a Session.
type Option func(s *Session) error

// WithMemorySize sets the size of the emulated memory, in bytes.
func WithMemorySize(n int) Option {
	return func(s *Session) error {
		s.memorySize = n
		return nil
	}
}

// WithStackSize sets the amount of memory reserved for the stack.
func WithStackSize(n uint32) Option {
	return func(s *Session) error {
		s.stackSize = n
		return nil
	}
}

// WithIdleTimeout sets how long the program may go without reading or
// writing.  Zero disables the timeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Session) error {
		if d < 0 {
			return fmt.Errorf("negative idle timeout %s", d)
		}
		s.idleTimeout = d
		return nil
	}
}

// WithMaxDuration caps the total running time of the program.  Zero,
// the default, means no limit.
func WithMaxDuration(d time.Duration) Option {
	return func(s *Session) error {
		if d < 0 {
			return fmt.Errorf("negative duration %s", d)
		}
		s.maxDuration = d
		return nil
	}
}

// WithCycleBudget sets the number of cycles each Tick runs.
func WithCycleBudget(n int) Option {
	return func(s *Session) error {
		if n <= 0 {
			return fmt.Errorf("cycle budget must be positive, not %d", n)
		}
		s.budget = n
		return nil
	}
}

// WithLogger sets the logger to use.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) error {
		s.logger = l
		return nil
	}
}

// WithContext sets an opaque value which is attached to every event.
func WithContext(v any) Option {
	return func(s *Session) error {
		s.context = v
		return nil
	}
}

// WithWorkDir records the directory the door was unpacked into.
func WithWorkDir(dir string) Option {
	return func(s *Session) error {
		s.workDir = dir
		return nil
	}
}

// WithEventHandler sets the function events are delivered to.
//
// The handler is called synchronously, from whichever goroutine is
// calling Tick.  It may call Input and Terminate, but not Tick.
func WithEventHandler(fn func(Event)) Option {
	return func(s *Session) error {
		s.handler = fn
		return nil
	}
}

// WithClock replaces time.Now, for testing timeouts.
func WithClock(now func() time.Time) Option {
	return func(s *Session) error {
		s.now = now
		return nil
	}
}

// Session is one running door program.
type Session struct {
	// Traps holds the host routines, indexed by trap.
	Traps map[trap.ID]TrapHandler

	// configuration
	exe         []byte
	memorySize  int
	stackSize   uint32
	idleTimeout time.Duration
	maxDuration time.Duration
	budget      int
	logger      *slog.Logger
	context     any
	workDir     string
	handler     func(Event)
	now         func() time.Time

	// mu guards the emulation state below.
	mu       sync.Mutex
	mem      *memory.Memory
	cpu      *m68k.CPU
	heap     uint32
	heapEnd  uint32
	started  time.Time
	activity time.Time

	// The results may be read from within the event handler, while
	// mu is held, so they are kept separately.
	image    atomic.Pointer[hunk.Image]
	exitCode atomic.Int32
	errMu    sync.Mutex
	err      error

	// state is read without the lock, by State and IsActive.
	state atomic.Int32

	// killed is set by Terminate, done once the final events are sent.
	killed atomic.Bool
	done   atomic.Bool

	// emitting is true while the event handler is running.
	emitting atomic.Bool

	// inMu guards the input buffer, which is filled by the transport.
	inMu  sync.Mutex
	input []byte

	// wake is signalled when input arrives, or on termination.
	wake chan struct{}
}

// New creates a session for the given executable.  The program isn't
// loaded until Start is called.
func New(exe []byte, opts ...Option) (*Session, error) {
	s := &Session{
		Traps:       defaultTraps(),
		exe:         exe,
		memorySize:  memory.DefaultSize,
		stackSize:   DefaultStackSize,
		idleTimeout: DefaultIdleTimeout,
		budget:      DefaultCycleBudget,
		now:         time.Now,
		wake:        make(chan struct{}, 1),
	}

	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}

	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// The stack, the reserved low page and at least one page of
	// program must fit, and the trap area must lie outside memory.
	if s.memorySize <= 0 || uint64(s.memorySize) > uint64(trap.Base) {
		return nil, fmt.Errorf("%w: %d bytes", ErrMemorySize, s.memorySize)
	}
	if uint64(s.stackSize)+hunk.DefaultBase+hunk.Alignment > uint64(s.memorySize) {
		return nil, fmt.Errorf("%w: %d bytes of stack in %d bytes of memory", ErrMemorySize, s.stackSize, s.memorySize)
	}

	s.state.Store(int32(Created))
	return s, nil
}

// State returns the current state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// IsActive returns true until the session has terminated.
func (s *Session) IsActive() bool {
	return !s.State().Terminal()
}

// ExitCode returns the value the program passed to Exit.
func (s *Session) ExitCode() int {
	return int(s.exitCode.Load())
}

// Err returns the reason for an abnormal termination: the fault, or
// ErrTimeout.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// WorkDir returns the directory given to WithWorkDir.
func (s *Session) WorkDir() string {
	return s.workDir
}

// Image returns the placement of the loaded program, or nil before
// Start.
func (s *Session) Image() *hunk.Image {
	return s.image.Load()
}

// transition moves to a new state, unless already terminated.
func (s *Session) transition(to State) bool {
	for {
		cur := s.state.Load()
		if State(cur).Terminal() {
			return false
		}
		if cur == int32(to) {
			return false
		}
		if s.state.CompareAndSwap(cur, int32(to)) {
			return true
		}
	}
}

// setState transitions, and tells the outside world.
func (s *Session) setState(to State) {
	if s.transition(to) {
		s.logger.Debug("State", slog.String("state", to.String()))
		s.emit(Event{Kind: EventState, State: to})
	}
}

// emit delivers an event.  Once Terminate has been called only the final
// events get through.
func (s *Session) emit(ev Event) {
	if s.handler == nil {
		return
	}
	if s.killed.Load() && !s.done.Load() {
		return
	}
	ev.Context = s.context

	s.emitting.Store(true)
	defer s.emitting.Store(false)
	s.handler(ev)
}

// signal wakes Run, without blocking.
func (s *Session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Start loads the program and prepares the CPU.
//
// Load errors are returned, and leave the session in the Created state.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != Created || s.killed.Load() {
		return ErrStarted
	}

	f, err := hunk.Parse(s.exe)
	if err != nil {
		return err
	}

	mem := memory.New(s.memorySize)
	img, err := hunk.Load(mem, f, hunk.DefaultBase)
	if err != nil {
		return err
	}

	top := uint32(mem.Size()) &^ 3
	floor := top - s.stackSize
	if img.End > floor {
		return fmt.Errorf("%w: image ends at 0x%X, stack starts at 0x%X", ErrNoRoom, img.End, floor)
	}

	// Reset vectors, then the library jump table and exit stub.
	if err := mem.SetU32(0, top); err != nil {
		return err
	}
	if err := mem.SetU32(4, img.Entry); err != nil {
		return err
	}
	if err := installLibrary(mem); err != nil {
		return err
	}

	cpu := m68k.New(mem)
	if err := cpu.Reset(); err != nil {
		return err
	}
	for _, addr := range trap.Addresses() {
		cpu.BreakPoints[addr] = struct{}{}
	}

	// As AmigaDOS: A6 is the library base, A0/D0 the command line,
	// and returning from the program exits with D0.
	cpu.A[6] = trap.LibraryBase
	cpu.A[0] = commandLine
	cpu.D[0] = 1
	if err := cpu.Push32(exitStub); err != nil {
		return err
	}

	s.mem = mem
	s.cpu = cpu
	s.image.Store(img)
	s.heap = (img.End + 7) &^ 7
	s.heapEnd = floor
	s.started = s.now()
	s.activity = s.started

	s.logger.Debug("Loaded",
		slog.String("entry", fmt.Sprintf("0x%08X", img.Entry)),
		slog.String("end", fmt.Sprintf("0x%08X", img.End)),
		slog.Int("segments", len(img.Segments)),
		slog.String("workdir", s.workDir))

	s.transition(Running)
	s.emit(Event{Kind: EventStarted})
	s.emit(Event{Kind: EventState, State: Running})
	s.reap()
	return nil
}

// Tick runs one slice of the program, and returns the resulting state.
//
// It returns without running anything if the session hasn't started,
// has terminated, or is waiting for input which hasn't arrived.
func (s *Session) Tick() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The handler may have called Terminate during any event sent
	// from this slice.
	defer s.reap()

	st := s.State()
	switch {
	case st == Created && !s.killed.Load():
		return st
	case s.killed.Load():
		s.finish(TerminatedNormal, nil)
		return s.State()
	case st.Terminal():
		return st
	}

	if s.expired() {
		s.finish(TerminatedTimeout, ErrTimeout)
		return s.State()
	}

	if st == WaitingForInput {
		if s.Buffered() == 0 {
			return st
		}
		s.setState(Running)
	}

	for used := 0; used < s.budget; {
		if s.reap() {
			return s.State()
		}

		n, err := s.cpu.Execute(s.budget - used)
		used += n

		if err == nil {
			break
		}

		if err != m68k.ErrBreakPoint {
			if errors.Is(err, m68k.ErrHalt) {
				s.finish(TerminatedNormal, nil)
			} else {
				s.logger.Error("Fault", slog.String("error", err.Error()), slog.String("registers", s.cpu.String()))
				s.finish(TerminatedFault, err)
			}
			return s.State()
		}

		used += trapCost
		if stop := s.dispatch(); stop {
			return s.State()
		}
	}

	if s.expired() {
		s.finish(TerminatedTimeout, ErrTimeout)
	}
	return s.State()
}

// dispatch runs the host routine at the current PC, and returns true if
// the slice should end.
func (s *Session) dispatch() bool {
	pc := s.cpu.PC

	id, ok := trap.Lookup(pc)
	if !ok {
		s.finish(TerminatedFault, &m68k.Fault{Kind: m68k.IllegalOpcode, PC: pc, Addr: pc})
		return true
	}
	handler, ok := s.Traps[id]
	if !ok {
		s.logger.Error("Unimplemented Trap",
			slog.String("name", id.String()),
			slog.Int("trap", int(id)),
			slog.String("trapHex", fmt.Sprintf("0x%08X", pc)))
		s.finish(TerminatedFault, &m68k.Fault{Kind: m68k.IllegalOpcode, PC: pc, Addr: pc})
		return true
	}

	s.logger.Debug("Trap",
		slog.String("name", handler.Desc),
		slog.Int("trap", int(id)),
		slog.String("trapHex", fmt.Sprintf("0x%08X", pc)))

	err := handler.Handler(s)
	switch {
	case err == nil:
	case err == errWaiting:
		s.setState(WaitingForInput)
		return true
	case err == ErrExit:
		s.finish(TerminatedNormal, nil)
		return true
	default:
		s.logger.Error("Trap failed", slog.String("name", handler.Desc), slog.String("error", err.Error()))
		s.finish(TerminatedFault, err)
		return true
	}

	if s.reap() {
		return true
	}

	// Return to the caller.
	ret, err := s.cpu.Pop32()
	if err != nil {
		s.finish(TerminatedFault, err)
		return true
	}
	s.cpu.PC = ret
	return false
}

// expired returns true if a timeout has passed.
func (s *Session) expired() bool {
	now := s.now()
	if s.idleTimeout > 0 && now.Sub(s.activity) >= s.idleTimeout {
		return true
	}
	if s.maxDuration > 0 && now.Sub(s.started) >= s.maxDuration {
		return true
	}
	return false
}

// deadline returns the time the next timeout would fire, and false if
// there is none.
func (s *Session) deadline() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var t time.Time
	if s.idleTimeout > 0 {
		t = s.activity.Add(s.idleTimeout)
	}
	if s.maxDuration > 0 {
		end := s.started.Add(s.maxDuration)
		if t.IsZero() || end.Before(t) {
			t = end
		}
	}
	return t, !t.IsZero()
}

// reap finishes the session if Terminate has been called, and returns
// true if so.  It must be called with the lock held.
func (s *Session) reap() bool {
	if !s.killed.Load() {
		return false
	}
	s.finish(TerminatedNormal, nil)
	return true
}

// finish terminates the session, releasing its memory, and sends the
// final events.  It must be called with the lock held.
func (s *Session) finish(st State, err error) {
	s.transition(st)
	if !s.done.CompareAndSwap(false, true) {
		return
	}

	// Terminate may have won the race to set the final state.
	st = s.State()
	reason := ReasonNormal
	switch st {
	case TerminatedFault:
		reason = ReasonFault
	case TerminatedTimeout:
		reason = ReasonTimeout
		err = ErrTimeout
	default:
		err = nil
	}
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()

	s.cpu = nil
	s.mem = nil
	s.inMu.Lock()
	s.input = nil
	s.inMu.Unlock()

	s.logger.Debug("Terminated", slog.String("state", st.String()), slog.Int("exit", s.ExitCode()))

	s.emit(Event{Kind: EventState, State: st})
	s.emit(Event{Kind: EventTerminated, Reason: reason, Err: err})
	s.signal()
}

// Input queues bytes for the program to read, waking it if it is waiting.
func (s *Session) Input(p []byte) {
	if len(p) == 0 || s.killed.Load() || !s.IsActive() {
		return
	}
	s.inMu.Lock()
	s.input = append(s.input, p...)
	s.inMu.Unlock()
	s.signal()
}

// Buffered returns the number of bytes of input the program hasn't yet
// read.
func (s *Session) Buffered() int {
	s.inMu.Lock()
	defer s.inMu.Unlock()
	return len(s.input)
}

// Terminate ends the session, whatever it is doing.  Once it returns no
// further output is produced, and memory is not touched again.
//
// Terminate is idempotent and may be called from any goroutine,
// including from within the event handler; in that case the final
// events are delivered once the handler returns.
func (s *Session) Terminate() {
	if !s.killed.CompareAndSwap(false, true) {
		return
	}

	if s.mu.TryLock() {
		s.finish(TerminatedNormal, nil)
		s.mu.Unlock()
		return
	}

	if s.emitting.Load() {
		// The lock is held by the goroutine running the handler,
		// which checks killed as soon as the handler returns.
		s.transition(TerminatedNormal)
		s.signal()
		return
	}

	s.mu.Lock()
	s.finish(TerminatedNormal, nil)
	s.mu.Unlock()
}

// Run starts the session if necessary, and drives it until it
// terminates or ctx is canceled.  It sleeps while waiting for input.
//
// The error is nil for normal termination, the fault or ErrTimeout
// otherwise, or the context's error.
func (s *Session) Run(ctx context.Context) error {
	if s.State() == Created {
		if err := s.Start(); err != nil {
			return err
		}
	}

	for {
		st := s.Tick()
		if st.Terminal() {
			return s.Err()
		}

		if st != WaitingForInput {
			select {
			case <-ctx.Done():
				s.Terminate()
				return ctx.Err()
			default:
			}
			continue
		}

		var timer *time.Timer
		var timeout <-chan time.Time
		if at, ok := s.deadline(); ok {
			timer = time.NewTimer(time.Until(at))
			timeout = timer.C
		}

		select {
		case <-ctx.Done():
			s.Terminate()
			return ctx.Err()
		case <-s.wake:
		case <-timeout:
		}

		if timer != nil {
			timer.Stop()
		}
	}
}
