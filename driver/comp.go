package driver

import (
	"log"

	"github.com/mazrouei/litepcie/csr"
	"github.com/mazrouei/litepcie/dma"
	"github.com/mazrouei/litepcie/mem"
	"github.com/mazrouei/litepcie/msi"
	"github.com/mazrouei/litepcie/sim"
)

type state int

const (
	stateConfigure state = iota
	stateWait
	stateDrain
	stateShutdown
	stateDone
)

// A VerificationReport summarizes one verification run.
type VerificationReport struct {
	Shift      int
	Length     int
	Errors     int
	ReaderIRQs int
	WriterIRQs int
	TimedOut   bool
	Done       bool
}

// Comp is the host-side verification model. It fills the source buffer with a
// pattern, programs both engine descriptor tables and the interrupt
// controller over register writes, counts completion interrupts until the
// expected number of writer completions is observed, then drains, disables
// everything, and compares the destination buffer against the source.
//
// Host memory accesses (fill and read-back) go directly to storage. Only
// register traffic and interrupts travel through ports, matching a host CPU
// with cache-coherent access to its own RAM.
type Comp struct {
	*sim.TickingComponent

	ReaderPort sim.Port
	WriterPort sim.Port
	MSIPort    sim.Port
	NotifyPort sim.Port

	readerCtrl sim.Port
	writerCtrl sim.Port
	msiCtrl    sim.Port

	storage *mem.Storage

	srcBase      uint64
	dstBase      uint64
	testSize     uint64
	descCount    int
	loopMode     bool
	expectedIRQs int
	settleTicks  int
	timeoutTicks int

	state      state
	toSend     []sim.Msg
	waitTicks  int
	settleLeft int

	report VerificationReport
}

// Report returns the verification report. It is only complete once the run
// has finished.
func (c *Comp) Report() VerificationReport {
	return c.report
}

// Tick advances the driver by one cycle.
func (c *Comp) Tick() bool {
	madeProgress := false

	madeProgress = c.sendPendingMsgs() || madeProgress
	madeProgress = c.processNotify() || madeProgress
	madeProgress = c.processVectorRsp() || madeProgress
	madeProgress = c.advanceState() || madeProgress

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

// processNotify turns a level notification into a vector read. The pending
// bits are only known after the read returns.
func (c *Comp) processNotify() bool {
	msg := c.NotifyPort.PeekIncoming()
	if msg == nil {
		return false
	}

	if _, ok := msg.(*msi.IRQNotifyMsg); !ok {
		log.Panicf("driver cannot handle notify msg of type %T", msg)
	}

	read := csr.RegReadMsgBuilder{}.
		WithSrc(c.MSIPort).
		WithDst(c.msiCtrl).
		WithOffset(csr.RegIRQVector).
		Build()
	c.toSend = append(c.toSend, read)

	c.NotifyPort.RetrieveIncoming()

	return true
}

// processVectorRsp counts the observed sources and clears exactly the bits
// that were read, so sources that assert in between stay pending and
// re-notify. A source that re-asserts after the read but before its clear
// lands is absorbed into the still-pending bit, so per-source counts are
// exact only while a descriptor transfer outlasts the two-message clear
// round trip.
func (c *Comp) processVectorRsp() bool {
	msg := c.MSIPort.PeekIncoming()
	if msg == nil {
		return false
	}

	rsp, ok := msg.(*csr.RegReadRspMsg)
	if !ok {
		log.Panicf("driver cannot handle msg of type %T", msg)
	}

	if rsp.Value&dma.IRQSourceReader != 0 {
		c.report.ReaderIRQs++
	}
	if rsp.Value&dma.IRQSourceWriter != 0 {
		c.report.WriterIRQs++
	}

	if rsp.Value != 0 {
		c.queueWrite(c.MSIPort, c.msiCtrl, csr.RegIRQClear, rsp.Value)
		c.queueWrite(c.MSIPort, c.msiCtrl, csr.RegIRQClear, 0)
	}

	c.MSIPort.RetrieveIncoming()

	return true
}

func (c *Comp) advanceState() bool {
	switch c.state {
	case stateConfigure:
		if len(c.toSend) > 0 {
			return false
		}
		c.state = stateWait
		return true
	case stateWait:
		return c.waitForCompletion()
	case stateDrain:
		c.settleLeft--
		if c.settleLeft <= 0 {
			c.queueShutdownScript()
			c.state = stateShutdown
		}
		return true
	case stateShutdown:
		if len(c.toSend) > 0 {
			return false
		}
		c.compare()
		c.state = stateDone
		return true
	default:
		return false
	}
}

// waitForCompletion polls every cycle, like a host busy-waiting on the
// interrupt count. The poll itself counts as progress so the tick loop stays
// alive until the run completes or times out.
func (c *Comp) waitForCompletion() bool {
	if c.report.WriterIRQs >= c.expectedIRQs {
		c.startDrain()
		return true
	}

	c.waitTicks++
	if c.timeoutTicks > 0 && c.waitTicks >= c.timeoutTicks {
		c.report.TimedOut = true
		c.startDrain()
	}

	return true
}

// startDrain lets in-flight sub-transactions and stream data settle before
// the engines are disabled.
func (c *Comp) startDrain() {
	c.settleLeft = c.settleTicks
	c.state = stateDrain
}

func (c *Comp) compare() {
	srcBytes, err := c.storage.Read(c.srcBase, c.testSize)
	if err != nil {
		log.Panic(err)
	}
	dstBytes, err := c.storage.Read(c.dstBase, c.testSize)
	if err != nil {
		log.Panic(err)
	}

	ref := BytesToWords(srcBytes)
	res := BytesToWords(dstBytes)
	c.report.Shift, c.report.Length, c.report.Errors = Check(ref, res)
	c.report.Done = true
}

func (c *Comp) queueWrite(src, dst sim.Port, offset, value uint64) {
	msg := csr.RegWriteMsgBuilder{}.
		WithSrc(src).
		WithDst(dst).
		WithOffset(offset).
		WithValue(value).
		Build()
	c.toSend = append(c.toSend, msg)
}

func (c *Comp) fillSource() {
	words := PatternWords(int(c.testSize / 4))
	err := c.storage.Write(c.srcBase, WordsToBytes(words))
	if err != nil {
		log.Panic(err)
	}
}

// queueConfigScript emits the full programming sequence: flush both tables,
// set the loop mode, program the descriptors with a write-enable strobe per
// entry, unmask both interrupt sources, and finally enable both engines.
func (c *Comp) queueConfigScript() {
	c.queueTableScript(c.ReaderPort, c.readerCtrl, c.srcBase)
	c.queueTableScript(c.WriterPort, c.writerCtrl, c.dstBase)

	c.queueWrite(c.MSIPort, c.msiCtrl, csr.RegIRQEnable,
		dma.IRQSourceReader|dma.IRQSourceWriter)

	c.queueWrite(c.ReaderPort, c.readerCtrl, csr.RegEngineEnable, 1)
	c.queueWrite(c.WriterPort, c.writerCtrl, csr.RegEngineEnable, 1)
}

// queueTableScript sets the table mode before flushing: a mode change
// invalidates the flush, so the flush has to come after it.
func (c *Comp) queueTableScript(src, dst sim.Port, base uint64) {
	loop := uint64(0)
	if c.loopMode {
		loop = 1
	}
	c.queueWrite(src, dst, csr.RegTableLoop, loop)

	c.queueWrite(src, dst, csr.RegTableFlush, 1)
	c.queueWrite(src, dst, csr.RegTableFlush, 0)

	chunk := c.testSize / uint64(c.descCount)
	for i := 0; i < c.descCount; i++ {
		desc := dma.Descriptor{
			Address: base + uint64(i)*chunk,
			Length:  uint32(chunk),
		}
		c.queueWrite(src, dst, csr.RegTableValue, dma.PackDescriptor(desc))
		c.queueWrite(src, dst, csr.RegTableWE, 1)
		c.queueWrite(src, dst, csr.RegTableWE, 0)
	}
}

func (c *Comp) queueShutdownScript() {
	c.queueWrite(c.ReaderPort, c.readerCtrl, csr.RegEngineEnable, 0)
	c.queueWrite(c.WriterPort, c.writerCtrl, csr.RegEngineEnable, 0)
	c.queueWrite(c.MSIPort, c.msiCtrl, csr.RegIRQEnable, 0)
}

// Builder can build driver components.
type Builder struct {
	engine       sim.Engine
	freq         sim.Freq
	storage      *mem.Storage
	readerCtrl   sim.Port
	writerCtrl   sim.Port
	msiCtrl      sim.Port
	srcBase      uint64
	dstBase      uint64
	testSize     uint64
	descCount    int
	loopMode     bool
	expectedIRQs int
	settleTicks  int
	timeoutTicks int
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq:        1 * sim.GHz,
		srcBase:     0x0000_0000,
		dstBase:     0x0010_0000,
		testSize:    4096,
		descCount:   8,
		settleTicks: 1000,
	}
}

// WithEngine sets the event engine that drives the driver.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the tick frequency of the driver.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithStorage sets the host memory the driver fills and reads back.
func (b Builder) WithStorage(storage *mem.Storage) Builder {
	b.storage = storage
	return b
}

// WithReaderCtrl sets the reader engine's register port.
func (b Builder) WithReaderCtrl(port sim.Port) Builder {
	b.readerCtrl = port
	return b
}

// WithWriterCtrl sets the writer engine's register port.
func (b Builder) WithWriterCtrl(port sim.Port) Builder {
	b.writerCtrl = port
	return b
}

// WithMSICtrl sets the interrupt controller's register port.
func (b Builder) WithMSICtrl(port sim.Port) Builder {
	b.msiCtrl = port
	return b
}

// WithSrcBase sets the base address of the source buffer.
func (b Builder) WithSrcBase(base uint64) Builder {
	b.srcBase = base
	return b
}

// WithDstBase sets the base address of the destination buffer.
func (b Builder) WithDstBase(base uint64) Builder {
	b.dstBase = base
	return b
}

// WithTestSize sets the number of bytes to transfer. Must be a multiple of
// four times the descriptor count.
func (b Builder) WithTestSize(size uint64) Builder {
	b.testSize = size
	return b
}

// WithDescCount sets the number of descriptors the transfer is split into.
func (b Builder) WithDescCount(count int) Builder {
	b.descCount = count
	return b
}

// WithLoopMode selects loop mode for both descriptor tables.
func (b Builder) WithLoopMode(loop bool) Builder {
	b.loopMode = loop
	return b
}

// WithExpectedIRQs sets the number of writer completions to wait for. Zero
// selects the descriptor count.
func (b Builder) WithExpectedIRQs(count int) Builder {
	b.expectedIRQs = count
	return b
}

// WithSettleTicks sets the number of ticks to drain before shutdown.
func (b Builder) WithSettleTicks(ticks int) Builder {
	b.settleTicks = ticks
	return b
}

// WithTimeoutTicks sets the wait deadline in ticks. Zero waits forever.
func (b Builder) WithTimeoutTicks(ticks int) Builder {
	b.timeoutTicks = ticks
	return b
}

// Build creates a driver with the given name. The source buffer is filled
// and the programming script queued immediately, so the first tick starts
// sending register writes.
func (b Builder) Build(name string) *Comp {
	c := new(Comp)
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	c.storage = b.storage
	c.readerCtrl = b.readerCtrl
	c.writerCtrl = b.writerCtrl
	c.msiCtrl = b.msiCtrl
	c.srcBase = b.srcBase
	c.dstBase = b.dstBase
	c.testSize = b.testSize
	c.descCount = b.descCount
	c.loopMode = b.loopMode
	c.expectedIRQs = b.expectedIRQs
	c.settleTicks = b.settleTicks
	c.timeoutTicks = b.timeoutTicks

	if c.expectedIRQs == 0 {
		c.expectedIRQs = c.descCount
	}

	c.ReaderPort = sim.NewPort(c, 4, 4, name+".ReaderPort")
	c.WriterPort = sim.NewPort(c, 4, 4, name+".WriterPort")
	c.MSIPort = sim.NewPort(c, 4, 4, name+".MSIPort")
	c.NotifyPort = sim.NewPort(c, 4, 4, name+".NotifyPort")

	c.AddPort("Reader", c.ReaderPort)
	c.AddPort("Writer", c.WriterPort)
	c.AddPort("MSI", c.MSIPort)
	c.AddPort("Notify", c.NotifyPort)

	c.fillSource()
	c.queueConfigScript()

	return c
}
