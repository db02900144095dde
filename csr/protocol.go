// Package csr defines the register-access messages that drive the control
// and status registers of the simulated hardware components.
package csr

import (
	"github.com/mazrouei/litepcie/sim"
)

var regMsgByteOverhead = 8

// Register offsets of the DMA engine register file. The same map is used by
// the reader and the writer engine.
const (
	// RegTableValue holds the packed descriptor to be programmed.
	RegTableValue uint64 = 0x00

	// RegTableWE is a strobe. A rising edge pushes RegTableValue into the
	// descriptor table.
	RegTableWE uint64 = 0x08

	// RegTableLoop is a level. Nonzero selects loop mode, zero selects
	// programming mode.
	RegTableLoop uint64 = 0x10

	// RegTableFlush is a strobe. A rising edge empties the descriptor table.
	RegTableFlush uint64 = 0x18

	// RegEngineEnable is a level. Nonzero starts the engine main loop.
	RegEngineEnable uint64 = 0x20
)

// Register offsets of the MSI interrupt controller register file.
const (
	// RegIRQEnable is the per-source interrupt enable mask.
	RegIRQEnable uint64 = 0x00

	// RegIRQClear is write-1-to-clear. A rising edge clears the pending bits
	// that are set in the written value.
	RegIRQClear uint64 = 0x08

	// RegIRQVector is the read-only pending vector.
	RegIRQVector uint64 = 0x10
)

// A RegWriteMsg writes a value to a register.
type RegWriteMsg struct {
	sim.MsgMeta

	Offset uint64
	Value  uint64
}

// Meta returns the meta data of the message.
func (m *RegWriteMsg) Meta() *sim.MsgMeta {
	return &m.MsgMeta
}

// RegWriteMsgBuilder can build register write messages.
type RegWriteMsgBuilder struct {
	src, dst sim.Port
	offset   uint64
	value    uint64
}

// WithSrc sets the source of the message to build.
func (b RegWriteMsgBuilder) WithSrc(src sim.Port) RegWriteMsgBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the message to build.
func (b RegWriteMsgBuilder) WithDst(dst sim.Port) RegWriteMsgBuilder {
	b.dst = dst
	return b
}

// WithOffset sets the register offset of the message to build.
func (b RegWriteMsgBuilder) WithOffset(offset uint64) RegWriteMsgBuilder {
	b.offset = offset
	return b
}

// WithValue sets the value of the message to build.
func (b RegWriteMsgBuilder) WithValue(value uint64) RegWriteMsgBuilder {
	b.value = value
	return b
}

// Build creates a new RegWriteMsg.
func (b RegWriteMsgBuilder) Build() *RegWriteMsg {
	m := &RegWriteMsg{}
	m.ID = sim.GetIDGenerator().Generate()
	m.Src = b.src
	m.Dst = b.dst
	m.TrafficBytes = regMsgByteOverhead
	m.Offset = b.offset
	m.Value = b.value
	return m
}

// A RegReadMsg reads a register.
type RegReadMsg struct {
	sim.MsgMeta

	Offset uint64
}

// Meta returns the meta data of the message.
func (m *RegReadMsg) Meta() *sim.MsgMeta {
	return &m.MsgMeta
}

// RegReadMsgBuilder can build register read messages.
type RegReadMsgBuilder struct {
	src, dst sim.Port
	offset   uint64
}

// WithSrc sets the source of the message to build.
func (b RegReadMsgBuilder) WithSrc(src sim.Port) RegReadMsgBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the message to build.
func (b RegReadMsgBuilder) WithDst(dst sim.Port) RegReadMsgBuilder {
	b.dst = dst
	return b
}

// WithOffset sets the register offset of the message to build.
func (b RegReadMsgBuilder) WithOffset(offset uint64) RegReadMsgBuilder {
	b.offset = offset
	return b
}

// Build creates a new RegReadMsg.
func (b RegReadMsgBuilder) Build() *RegReadMsg {
	m := &RegReadMsg{}
	m.ID = sim.GetIDGenerator().Generate()
	m.Src = b.src
	m.Dst = b.dst
	m.TrafficBytes = regMsgByteOverhead
	m.Offset = b.offset
	return m
}

// A RegReadRspMsg carries the value read from a register.
type RegReadRspMsg struct {
	sim.MsgMeta

	RespondTo string
	Offset    uint64
	Value     uint64
}

// Meta returns the meta data of the message.
func (m *RegReadRspMsg) Meta() *sim.MsgMeta {
	return &m.MsgMeta
}

// GetRspTo returns the ID of the read request this message responds to.
func (m *RegReadRspMsg) GetRspTo() string {
	return m.RespondTo
}

// RegReadRspMsgBuilder can build register read responses.
type RegReadRspMsgBuilder struct {
	src, dst sim.Port
	rspTo    string
	offset   uint64
	value    uint64
}

// WithSrc sets the source of the message to build.
func (b RegReadRspMsgBuilder) WithSrc(src sim.Port) RegReadRspMsgBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the message to build.
func (b RegReadRspMsgBuilder) WithDst(dst sim.Port) RegReadRspMsgBuilder {
	b.dst = dst
	return b
}

// WithRspTo sets the ID of the read request the message responds to.
func (b RegReadRspMsgBuilder) WithRspTo(id string) RegReadRspMsgBuilder {
	b.rspTo = id
	return b
}

// WithOffset sets the register offset of the message to build.
func (b RegReadRspMsgBuilder) WithOffset(offset uint64) RegReadRspMsgBuilder {
	b.offset = offset
	return b
}

// WithValue sets the value of the message to build.
func (b RegReadRspMsgBuilder) WithValue(value uint64) RegReadRspMsgBuilder {
	b.value = value
	return b
}

// Build creates a new RegReadRspMsg.
func (b RegReadRspMsgBuilder) Build() *RegReadRspMsg {
	m := &RegReadRspMsg{}
	m.ID = sim.GetIDGenerator().Generate()
	m.Src = b.src
	m.Dst = b.dst
	m.TrafficBytes = regMsgByteOverhead
	m.RespondTo = b.rspTo
	m.Offset = b.offset
	m.Value = b.value
	return m
}
