// Package armv7m is the architecture-specific side of the scheduler: a
// register-level model of the Cortex-M core state the context-switch
// mechanism manipulates. It implements the core.Port contract on
// simulated SRAM, keeping the exception-frame layout byte-compatible
// with the hardware it models.
package armv7m

import "github.com/minirtos/go-mini-rtos/core"

// Memory map of the modeled part (128 KiB SRAM, code in flash).
const (
	SRAMStart uint32 = 0x2000_0000
	SRAMSize  uint32 = 128 * 1024
	SRAMEnd   uint32 = SRAMStart + SRAMSize

	FlashBase uint32 = 0x0800_0000
)

// RAM models word-addressable on-chip SRAM. Accesses outside the mapped
// range raise a bus fault; unaligned word accesses raise a usage fault,
// as the core would.
type RAM struct {
	base  uint32
	words []uint32
}

// NewRAM maps size bytes of RAM at base.
func NewRAM(base, size uint32) (*RAM, error) {
	if base%4 != 0 || size == 0 || size%4 != 0 {
		return nil, &core.Fault{Kind: core.FaultBus, Addr: base, Reason: "RAM base and size must be word aligned"}
	}
	return &RAM{base: base, words: make([]uint32, size/4)}, nil
}

func (m *RAM) Base() uint32 { return m.base }
func (m *RAM) End() uint32  { return m.base + uint32(len(m.words))*4 }

func (m *RAM) check(addr uint32) error {
	if addr%4 != 0 {
		return &core.Fault{Kind: core.FaultUsage, Addr: addr, Reason: "unaligned word access"}
	}
	if addr < m.base || addr >= m.End() {
		return &core.Fault{Kind: core.FaultBus, Addr: addr, Reason: "access outside SRAM"}
	}
	return nil
}

// Load reads the word at addr.
func (m *RAM) Load(addr uint32) (uint32, error) {
	if err := m.check(addr); err != nil {
		return 0, err
	}
	return m.words[(addr-m.base)/4], nil
}

// Store writes the word at addr.
func (m *RAM) Store(addr, v uint32) error {
	if err := m.check(addr); err != nil {
		return err
	}
	m.words[(addr-m.base)/4] = v
	return nil
}
