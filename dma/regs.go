package dma

import (
	"log"

	"github.com/mazrouei/litepcie/csr"
	"github.com/mazrouei/litepcie/sim"
)

// engineRegs models the register file shared by the reader and the writer
// engine. Strobe registers act on the rising edge of the written level.
type engineRegs struct {
	table *DescriptorTable

	tableValue uint64
	we         uint64
	flush      uint64
	loop       uint64
	enable     uint64
}

// handleWrite applies a register write.
func (r *engineRegs) handleWrite(msg *csr.RegWriteMsg) {
	switch msg.Offset {
	case csr.RegTableValue:
		r.tableValue = msg.Value
	case csr.RegTableWE:
		if r.we == 0 && msg.Value != 0 {
			// Capacity and protocol violations are invisible at the register
			// boundary, as in hardware.
			_ = r.table.Program(UnpackDescriptor(r.tableValue))
		}
		r.we = msg.Value
	case csr.RegTableLoop:
		if r.loop != msg.Value {
			if msg.Value != 0 {
				r.table.SetMode(ModeLoop)
			} else {
				r.table.SetMode(ModeProgramming)
			}
		}
		r.loop = msg.Value
	case csr.RegTableFlush:
		if r.flush == 0 && msg.Value != 0 {
			r.table.Flush()
		}
		r.flush = msg.Value
	case csr.RegEngineEnable:
		r.enable = msg.Value
	default:
		log.Panicf("write to unknown engine register 0x%02x", msg.Offset)
	}
}

// read returns the current level of a register.
func (r *engineRegs) read(offset uint64) uint64 {
	switch offset {
	case csr.RegTableValue:
		return r.tableValue
	case csr.RegTableWE:
		return r.we
	case csr.RegTableLoop:
		return r.loop
	case csr.RegTableFlush:
		return r.flush
	case csr.RegEngineEnable:
		return r.enable
	default:
		log.Panicf("read from unknown engine register 0x%02x", offset)
	}

	return 0
}

func (r *engineRegs) enabled() bool {
	return r.enable != 0
}

// HookPosDescComplete marks the moment an engine finishes one descriptor and
// raises its completion interrupt.
var HookPosDescComplete = &sim.HookPos{Name: "DMA Descriptor Complete"}

// DescCompletionInfo is the hook payload emitted at HookPosDescComplete.
type DescCompletionInfo struct {
	Engine    string
	DescIndex int
	Address   uint64
	Length    uint32
	Time      sim.VTimeInSec
}
