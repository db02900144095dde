package dma

import (
	"github.com/mazrouei/litepcie/sim"
)

var irqMsgByteOverhead = 4

// Interrupt source bits of the two engines.
const (
	IRQSourceReader uint64 = 0x1
	IRQSourceWriter uint64 = 0x2
)

// An IRQMsg signals a per-descriptor completion event to the interrupt
// controller. Source carries the engine's interrupt bit.
type IRQMsg struct {
	sim.MsgMeta

	Source uint64
}

// Meta returns the meta data of the message.
func (m *IRQMsg) Meta() *sim.MsgMeta {
	return &m.MsgMeta
}

// IRQMsgBuilder can build IRQ messages.
type IRQMsgBuilder struct {
	src, dst sim.Port
	source   uint64
}

// WithSrc sets the source port of the message to build.
func (b IRQMsgBuilder) WithSrc(src sim.Port) IRQMsgBuilder {
	b.src = src
	return b
}

// WithDst sets the destination port of the message to build.
func (b IRQMsgBuilder) WithDst(dst sim.Port) IRQMsgBuilder {
	b.dst = dst
	return b
}

// WithSource sets the interrupt source bit of the message to build.
func (b IRQMsgBuilder) WithSource(source uint64) IRQMsgBuilder {
	b.source = source
	return b
}

// Build creates a new IRQMsg.
func (b IRQMsgBuilder) Build() *IRQMsg {
	m := &IRQMsg{}
	m.ID = sim.GetIDGenerator().Generate()
	m.Src = b.src
	m.Dst = b.dst
	m.TrafficBytes = irqMsgByteOverhead
	m.Source = b.source
	return m
}

// A StreamDataMsg carries a chunk of the byte stream between the reader and
// the writer engine.
type StreamDataMsg struct {
	sim.MsgMeta

	Data []byte
}

// Meta returns the meta data of the message.
func (m *StreamDataMsg) Meta() *sim.MsgMeta {
	return &m.MsgMeta
}

// StreamDataMsgBuilder can build stream data messages.
type StreamDataMsgBuilder struct {
	src, dst sim.Port
	data     []byte
}

// WithSrc sets the source port of the message to build.
func (b StreamDataMsgBuilder) WithSrc(src sim.Port) StreamDataMsgBuilder {
	b.src = src
	return b
}

// WithDst sets the destination port of the message to build.
func (b StreamDataMsgBuilder) WithDst(dst sim.Port) StreamDataMsgBuilder {
	b.dst = dst
	return b
}

// WithData sets the payload of the message to build.
func (b StreamDataMsgBuilder) WithData(data []byte) StreamDataMsgBuilder {
	b.data = data
	return b
}

// Build creates a new StreamDataMsg.
func (b StreamDataMsgBuilder) Build() *StreamDataMsg {
	m := &StreamDataMsg{}
	m.ID = sim.GetIDGenerator().Generate()
	m.Src = b.src
	m.Dst = b.dst
	m.TrafficBytes = len(b.data)
	m.Data = b.data
	return m
}
