package door

import (
	"fmt"
	"log/slog"

	"github.com/skx/amidoor/m68k"
	"github.com/skx/amidoor/memory"
	"github.com/skx/amidoor/trap"
)

// The handles returned by the Input and Output routines.  The console is
// a single bidirectional stream, so either may be used in either
// direction.
const (
	InputHandle  = 1
	OutputHandle = 2
)

const (
	// exitStub is the return address of the program: it copies D0 to
	// D1 and calls Exit.
	exitStub = trap.LibraryBase

	// commandLine holds the (empty) arguments, a lone newline.
	commandLine = trap.LibraryBase + 0x10
)

// TrapHandlerType contains the signature of a host routine.
//
// Arguments are found in D1, D2 and D3, and the result is placed in D0.
// Returning ErrExit ends the program; any other error is a fault.
type TrapHandlerType func(s *Session) error

// TrapHandler contains details of a specific routine we implement.
type TrapHandler struct {
	// Desc contains the human-readable name of the routine.
	Desc string

	// Handler contains the function which implements it.
	Handler TrapHandlerType
}

// defaultTraps returns the routines every session provides.
func defaultTraps() map[trap.ID]TrapHandler {
	sys := make(map[trap.ID]TrapHandler)
	sys[trap.GetOutputHandle] = TrapHandler{
		Desc:    "Output",
		Handler: TrapOutput,
	}
	sys[trap.GetInputHandle] = TrapHandler{
		Desc:    "Input",
		Handler: TrapInput,
	}
	sys[trap.Write] = TrapHandler{
		Desc:    "Write",
		Handler: TrapWrite,
	}
	sys[trap.Read] = TrapHandler{
		Desc:    "Read",
		Handler: TrapRead,
	}
	sys[trap.Close] = TrapHandler{
		Desc:    "Close",
		Handler: TrapClose,
	}
	sys[trap.AllocMem] = TrapHandler{
		Desc:    "AllocMem",
		Handler: TrapAllocMem,
	}
	sys[trap.FreeMem] = TrapHandler{
		Desc:    "FreeMem",
		Handler: TrapFreeMem,
	}
	sys[trap.Exit] = TrapHandler{
		Desc:    "Exit",
		Handler: TrapExit,
	}
	return sys
}

// installLibrary writes the jump table which lets programs call us via
// "jsr -offset(a6)", along with the exit stub and command line.
func installLibrary(mem *memory.Memory) error {
	for _, id := range trap.All() {
		addr := uint32(int64(trap.LibraryBase) + int64(id.Offset()))

		// JMP (xxx).L
		if err := mem.SetU16(addr, 0x4EF9); err != nil {
			return err
		}
		if err := mem.SetU32(addr+2, id.Address()); err != nil {
			return err
		}
	}

	stub := []uint8{
		0x22, 0x00, // move.l d0,d1
		0x4E, 0xB9, // jsr (xxx).L
	}
	if err := mem.SetRange(exitStub, stub...); err != nil {
		return err
	}
	if err := mem.SetU32(exitStub+4, trap.Exit.Address()); err != nil {
		return err
	}
	return mem.SetRange(commandLine, '\n', 0x00)
}

// validHandle returns true for the handles we hand out.
func validHandle(h uint32) bool {
	return h == InputHandle || h == OutputHandle
}

// busFault converts a failed memory access by a routine into the same
// fault the CPU would have raised.
func (s *Session) busFault(addr uint32, err error) error {
	return &m68k.Fault{
		Kind: m68k.MemoryOutOfBounds,
		PC:   s.cpu.PC,
		Addr: addr,
		Err:  err,
	}
}

// TrapOutput returns the handle of the console, for writing.
func TrapOutput(s *Session) error {
	s.cpu.D[0] = OutputHandle
	return nil
}

// TrapInput returns the handle of the console, for reading.
func TrapInput(s *Session) error {
	s.cpu.D[0] = InputHandle
	return nil
}

// TrapWrite sends D3 bytes from the buffer at D2 to the console.
//
// The bytes are passed on untouched, any escape sequences are for the
// remote terminal to interpret.
func TrapWrite(s *Session) error {
	handle := s.cpu.D[1]
	addr := s.cpu.D[2]
	length := int32(s.cpu.D[3])

	if !validHandle(handle) || length < 0 {
		s.logger.Warn("Write to bad handle",
			slog.Int("handle", int(handle)),
			slog.Int("length", int(length)))
		s.cpu.D[0] = 0xFFFFFFFF
		return nil
	}
	if length == 0 {
		s.cpu.D[0] = 0
		return nil
	}

	data, err := s.mem.GetRange(addr, int(length))
	if err != nil {
		return s.busFault(addr, err)
	}

	s.activity = s.now()
	s.emit(Event{Kind: EventOutput, Data: data})
	s.cpu.D[0] = uint32(length)
	return nil
}

// TrapRead copies up to D3 bytes of input to the buffer at D2.
//
// If there is no input the session waits, with the program counter left
// on the routine so that it runs again once input arrives.
func TrapRead(s *Session) error {
	handle := s.cpu.D[1]
	addr := s.cpu.D[2]
	length := int32(s.cpu.D[3])

	if !validHandle(handle) || length < 0 {
		s.logger.Warn("Read from bad handle",
			slog.Int("handle", int(handle)),
			slog.Int("length", int(length)))
		s.cpu.D[0] = 0xFFFFFFFF
		return nil
	}
	if length == 0 {
		s.cpu.D[0] = 0
		return nil
	}

	s.inMu.Lock()
	defer s.inMu.Unlock()

	if len(s.input) == 0 {
		return errWaiting
	}

	n := min(int(length), len(s.input))
	if err := s.mem.SetRange(addr, s.input[:n]...); err != nil {
		return s.busFault(addr, err)
	}
	s.input = s.input[n:]

	s.activity = s.now()
	s.cpu.D[0] = uint32(n)
	return nil
}

// TrapClose closes a handle, which does nothing.
func TrapClose(s *Session) error {
	if !validHandle(s.cpu.D[1]) {
		s.cpu.D[0] = 0xFFFFFFFF
		return nil
	}
	s.cpu.D[0] = 0
	return nil
}

// TrapAllocMem returns D1 bytes of zeroed memory, or zero if there is
// no room left.
//
// Memory comes from the space between the end of the program and the
// stack.  It is never reused, as it only lives as long as the session.
func TrapAllocMem(s *Session) error {
	size := uint64(s.cpu.D[1])
	s.cpu.D[0] = 0

	if size == 0 {
		return nil
	}

	size = (size + 7) &^ 7
	if uint64(s.heap)+size > uint64(s.heapEnd) {
		s.logger.Warn("AllocMem failed",
			slog.Int("size", int(size)),
			slog.String("free", fmt.Sprintf("%d", s.heapEnd-s.heap)))
		return nil
	}

	addr := s.heap
	if err := s.mem.FillRange(addr, int(size), 0x00); err != nil {
		return s.busFault(addr, err)
	}
	s.heap += uint32(size)
	s.cpu.D[0] = addr
	return nil
}

// TrapFreeMem does nothing, memory is released with the session.
func TrapFreeMem(s *Session) error {
	s.cpu.D[0] = 0
	return nil
}

// TrapExit ends the program, with the exit code in D1.
func TrapExit(s *Session) error {
	s.exitCode.Store(int32(s.cpu.D[1]))
	return ErrExit
}
