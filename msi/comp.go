// Package msi models an MSI-style interrupt controller that aggregates
// per-engine completion events into a sticky, write-1-to-clear vector.
package msi

import (
	"log"

	"github.com/mazrouei/litepcie/csr"
	"github.com/mazrouei/litepcie/dma"
	"github.com/mazrouei/litepcie/sim"
)

var notifyMsgByteOverhead = 4

// An IRQNotifyMsg is the level-high notification emitted when the pending
// vector transitions from zero to nonzero.
type IRQNotifyMsg struct {
	sim.MsgMeta

	Vector uint64
}

// Meta returns the meta data of the message.
func (m *IRQNotifyMsg) Meta() *sim.MsgMeta {
	return &m.MsgMeta
}

// Comp is the interrupt controller component.
//
// A source event sets the corresponding pending bit only while the source is
// enabled. Pending bits are sticky until cleared through the
// write-1-to-clear register.
type Comp struct {
	*sim.TickingComponent

	IRQPort    sim.Port
	CtrlPort   sim.Port
	NotifyPort sim.Port

	notifyDst sim.Port

	enable    uint64
	pending   uint64
	clearReg  uint64
	lastLevel bool

	toSend []sim.Msg
}

// SetNotifyDst sets the port that level notifications go to. The driver's
// notify port only exists after the driver is built, so wiring code sets it
// after construction.
func (c *Comp) SetNotifyDst(dst sim.Port) {
	c.notifyDst = dst
}

// Vector returns the currently pending and enabled sources.
func (c *Comp) Vector() uint64 {
	return c.pending & c.enable
}

// Tick advances the interrupt controller by one cycle.
func (c *Comp) Tick() bool {
	madeProgress := false

	madeProgress = c.sendPendingMsgs() || madeProgress
	madeProgress = c.processIRQ() || madeProgress
	madeProgress = c.processCtrl() || madeProgress

	return madeProgress
}

func (c *Comp) sendPendingMsgs() bool {
	madeProgress := false

	for len(c.toSend) > 0 {
		msg := c.toSend[0]
		err := msg.Meta().Src.Send(msg)
		if err != nil {
			break
		}

		c.toSend = c.toSend[1:]
		madeProgress = true
	}

	return madeProgress
}

func (c *Comp) processIRQ() bool {
	msg := c.IRQPort.PeekIncoming()
	if msg == nil {
		return false
	}

	irq, ok := msg.(*dma.IRQMsg)
	if !ok {
		log.Panicf("interrupt controller cannot handle msg of type %T", msg)
	}

	c.pending |= irq.Source & c.enable
	c.updateLevel()

	c.IRQPort.RetrieveIncoming()

	return true
}

func (c *Comp) processCtrl() bool {
	msg := c.CtrlPort.PeekIncoming()
	if msg == nil {
		return false
	}

	switch msg := msg.(type) {
	case *csr.RegWriteMsg:
		c.handleRegWrite(msg)
	case *csr.RegReadMsg:
		c.handleRegRead(msg)
	default:
		log.Panicf("interrupt controller cannot handle msg of type %T", msg)
	}

	c.CtrlPort.RetrieveIncoming()

	return true
}

func (c *Comp) handleRegWrite(msg *csr.RegWriteMsg) {
	switch msg.Offset {
	case csr.RegIRQEnable:
		c.enable = msg.Value
		c.updateLevel()
	case csr.RegIRQClear:
		if c.clearReg == 0 && msg.Value != 0 {
			c.pending &^= msg.Value
			// A clear deasserts the level. If bits remain pending, the level
			// re-asserts and another notification goes out.
			c.lastLevel = false
		}
		c.clearReg = msg.Value
		c.updateLevel()
	default:
		log.Panicf("write to unknown interrupt register 0x%02x", msg.Offset)
	}
}

func (c *Comp) handleRegRead(msg *csr.RegReadMsg) {
	var value uint64

	switch msg.Offset {
	case csr.RegIRQEnable:
		value = c.enable
	case csr.RegIRQVector:
		value = c.Vector()
	default:
		log.Panicf("read from unknown interrupt register 0x%02x", msg.Offset)
	}

	rsp := csr.RegReadRspMsgBuilder{}.
		WithSrc(c.CtrlPort).
		WithDst(msg.Meta().Src).
		WithRspTo(msg.Meta().ID).
		WithOffset(msg.Offset).
		WithValue(value).
		Build()
	c.toSend = append(c.toSend, rsp)
}

// updateLevel emits a notification on every low-to-high transition of the
// aggregated interrupt level, including the re-assertion after a clear that
// leaves other bits pending.
func (c *Comp) updateLevel() {
	level := c.Vector() != 0

	if level && !c.lastLevel {
		notify := &IRQNotifyMsg{Vector: c.Vector()}
		notify.ID = sim.GetIDGenerator().Generate()
		notify.Src = c.NotifyPort
		notify.Dst = c.notifyDst
		notify.TrafficBytes = notifyMsgByteOverhead
		c.toSend = append(c.toSend, notify)
	}

	c.lastLevel = level
}

// Builder can build interrupt controllers.
type Builder struct {
	engine    sim.Engine
	freq      sim.Freq
	notifyDst sim.Port
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq: 1 * sim.GHz,
	}
}

// WithEngine sets the event engine that drives the controller.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the tick frequency of the controller.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithNotifyDst sets the port that level notifications go to.
func (b Builder) WithNotifyDst(dst sim.Port) Builder {
	b.notifyDst = dst
	return b
}

// Build creates an interrupt controller with the given name.
func (b Builder) Build(name string) *Comp {
	c := new(Comp)
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	c.notifyDst = b.notifyDst

	c.IRQPort = sim.NewPort(c, 8, 8, name+".IRQPort")
	c.CtrlPort = sim.NewPort(c, 4, 4, name+".CtrlPort")
	c.NotifyPort = sim.NewPort(c, 4, 4, name+".NotifyPort")

	c.AddPort("IRQ", c.IRQPort)
	c.AddPort("Ctrl", c.CtrlPort)
	c.AddPort("Notify", c.NotifyPort)

	return c
}
