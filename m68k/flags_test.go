package m68k

import (
	"testing"
)

// TestArithmeticFlags runs ADD, SUB and CMP of D0 into D1 and compares
// the result and condition codes against values worked out by hand from
// the M68000 truth tables.
func TestArithmeticFlags(t *testing.T) {

	type TestCase struct {
		name  string
		op    uint16
		d0    uint32
		d1    uint32
		pre   uint16
		want  uint32
		flags uint16
	}

	const (
		X = FlagX
		N = FlagN
		Z = FlagZ
		V = FlagV
		C = FlagC
	)

	tests := []TestCase{
		// ADD.B
		{"add.b plain", 0xD200, 0x10, 0x20, 0, 0x30, 0},
		{"add.b overflow", 0xD200, 0x01, 0x7F, 0, 0x80, N | V},
		{"add.b carry", 0xD200, 0x01, 0xFF, 0, 0x00, X | Z | C},
		{"add.b both", 0xD200, 0x80, 0x80, 0, 0x00, X | Z | V | C},
		{"add.b keeps upper", 0xD200, 0x80, 0x12345680, 0, 0x12345600, X | Z | V | C},

		// ADD.W
		{"add.w overflow", 0xD240, 0x0001, 0x7FFF, 0, 0x8000, N | V},
		{"add.w carry", 0xD240, 0x0001, 0xFFFF, 0, 0x0000, X | Z | C},

		// ADD.L
		{"add.l overflow", 0xD280, 1, 0x7FFFFFFF, 0, 0x80000000, N | V},
		{"add.l carry", 0xD280, 2, 0xFFFFFFFF, 0, 0x00000001, X | C},
		{"add.l both", 0xD280, 0x80000000, 0x80000000, 0, 0, X | Z | V | C},
		{"add.l clears X", 0xD280, 1, 1, X, 2, 0},

		// SUB.B
		{"sub.b borrow", 0x9200, 0x01, 0x00, 0, 0xFF, X | N | C},
		{"sub.b overflow", 0x9200, 0x01, 0x80, 0, 0x7F, V},
		{"sub.b zero", 0x9200, 0x05, 0x05, 0, 0x00, Z},
		{"sub.b minus one", 0x9200, 0xFF, 0x7F, 0, 0x80, X | N | V | C},

		// SUB.W
		{"sub.w overflow", 0x9240, 0x0001, 0x8000, 0, 0x7FFF, V},

		// SUB.L
		{"sub.l borrow", 0x9280, 1, 0, 0, 0xFFFFFFFF, X | N | C},
		{"sub.l overflow", 0x9280, 1, 0x80000000, 0, 0x7FFFFFFF, V},

		// CMP never stores, and never touches X.
		{"cmp.b borrow", 0xB200, 0x01, 0x00, 0, 0x00, N | C},
		{"cmp.b equal keeps X", 0xB200, 0x05, 0x05, X, 0x05, X | Z},
		{"cmp.l overflow", 0xB280, 1, 0x80000000, 0, 0x80000000, V},
		{"cmp.w greater", 0xB240, 0x0001, 0x0002, 0, 0x0002, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cpu, _ := newCPU(t, tc.op)
			cpu.D[0] = tc.d0
			cpu.D[1] = tc.d1
			cpu.SR = 0x2700 | tc.pre

			if err := cpu.Step(); err != nil {
				t.Fatalf("unexpected error %s", err)
			}
			if cpu.D[1] != tc.want {
				t.Fatalf("result %08X, expected %08X", cpu.D[1], tc.want)
			}
			if got := cpu.SR & 0x1F; got != tc.flags {
				t.Fatalf("flags %s, expected %s", ccr(got), ccr(tc.flags))
			}
		})
	}
}

// TestExtendedArithmetic ensures ADDX/SUBX only ever clear Z.
func TestExtendedArithmetic(t *testing.T) {

	// addx.l d0,d1
	cpu, _ := newCPU(t, 0xD380, 0xD380)
	cpu.SR = 0x2700 | FlagX | FlagZ
	cpu.D[0] = 0xFFFFFFFF
	cpu.D[1] = 0

	if err := cpu.Step(); err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if cpu.D[1] != 0 {
		t.Fatalf("unexpected result %08X", cpu.D[1])
	}
	if !cpu.Flag(FlagZ) || !cpu.Flag(FlagC) || !cpu.Flag(FlagX) {
		t.Fatalf("unexpected flags %s", ccr(cpu.SR&0x1F))
	}

	// Now a non-zero result, which must clear Z.
	cpu.D[0] = 1
	cpu.D[1] = 1
	if err := cpu.Step(); err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if cpu.D[1] != 3 {
		t.Fatalf("X wasn't added in: %08X", cpu.D[1])
	}
	if cpu.Flag(FlagZ) || cpu.Flag(FlagX) {
		t.Fatalf("unexpected flags %s", ccr(cpu.SR&0x1F))
	}

	// subx.b d0,d1 (1001 001 1 00 00 0 000)
	cpu, _ = newCPU(t, 0x9300)
	cpu.SR = 0x2700 | FlagX
	cpu.D[0] = 0x00
	cpu.D[1] = 0x00
	if err := cpu.Step(); err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if cpu.D[1] != 0xFF {
		t.Fatalf("unexpected result %08X", cpu.D[1])
	}
	if !cpu.Flag(FlagC) || !cpu.Flag(FlagX) || !cpu.Flag(FlagN) {
		t.Fatalf("unexpected flags %s", ccr(cpu.SR&0x1F))
	}
}

// TestConditions walks the condition codes.
func TestConditions(t *testing.T) {

	type TestCase struct {
		cc    uint16
		flags uint16
		want  bool
	}

	tests := []TestCase{
		{condT, 0, true},
		{condF, 0, false},
		{condHI, 0, true},
		{condHI, FlagC, false},
		{condLS, FlagZ, true},
		{condCC, FlagC, false},
		{condCS, FlagC, true},
		{condNE, FlagZ, false},
		{condEQ, FlagZ, true},
		{condVC, FlagV, false},
		{condVS, FlagV, true},
		{condPL, FlagN, false},
		{condMI, FlagN, true},
		{condGE, FlagN | FlagV, true},
		{condGE, FlagN, false},
		{condLT, FlagN, true},
		{condLT, FlagV | FlagN, false},
		{condGT, 0, true},
		{condGT, FlagZ, false},
		{condLE, FlagZ, true},
		{condLE, FlagV, true},
		{condLE, 0, false},
	}

	cpu := New(nil)
	for _, tc := range tests {
		cpu.SR = tc.flags
		if got := cpu.condition(tc.cc); got != tc.want {
			t.Errorf("condition %d with %s: got %t, expected %t", tc.cc, ccr(tc.flags), got, tc.want)
		}
	}
}

// TestShifts covers each family of shift and rotate.
func TestShifts(t *testing.T) {

	type TestCase struct {
		name  string
		op    uint16
		d0    uint32
		want  uint32
		flags uint16
	}

	tests := []TestCase{
		// asr.b #1,d0
		{"asr.b", 0xE200, 0x81, 0xC0, FlagX | FlagN | FlagC},
		// asl.b #1,d0
		{"asl.b overflow", 0xE300, 0x40, 0x80, FlagN | FlagV},
		// lsl.w #8,d0
		{"lsl.w", 0xE148, 0xAAAA1234, 0xAAAA3400, 0},
		// lsr.l #1,d0
		{"lsr.l", 0xE288, 0x00000003, 0x00000001, FlagX | FlagC},
		// rol.l #1,d0
		{"rol.l", 0xE398, 0x80000001, 0x00000003, FlagC},
		// ror.w #1,d0
		{"ror.w", 0xE258, 0x00000001, 0x00008000, FlagN | FlagC},
		// roxl.b #1,d0 with X clear
		{"roxl.b", 0xE310, 0x80, 0x00, FlagX | FlagZ | FlagC},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cpu, _ := newCPU(t, tc.op)
			cpu.D[0] = tc.d0

			if err := cpu.Step(); err != nil {
				t.Fatalf("unexpected error %s", err)
			}
			if cpu.D[0] != tc.want {
				t.Fatalf("result %08X, expected %08X", cpu.D[0], tc.want)
			}
			if got := cpu.SR & 0x1F; got != tc.flags {
				t.Fatalf("flags %s, expected %s", ccr(got), ccr(tc.flags))
			}
		})
	}
}

// ccr renders condition codes as XNZVC, for readable failures.
func ccr(f uint16) string {
	out := []byte("-----")
	for i, c := range "XNZVC" {
		if f&(0x10>>i) != 0 {
			out[i] = byte(c)
		}
	}
	return string(out)
}
