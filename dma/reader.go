package dma

import (
	"log"

	"github.com/mazrouei/litepcie/csr"
	"github.com/mazrouei/litepcie/mem"
	"github.com/mazrouei/litepcie/sim"
)

type chunkInfo struct {
	offset uint64
	size   uint64
}

type readTransfer struct {
	desc     Descriptor
	data     []byte
	arrived  []bool
	issued   uint64
	streamed uint64
}

// A Reader walks its descriptor table, fetches host memory through the
// transaction layer, and drains the fetched bytes into the stream port in
// descriptor order.
//
// Split completions may arrive out of order. The reader reassembles them and
// only streams the contiguous prefix, so the byte stream always matches the
// descriptor's memory order. Exactly one interrupt is raised per completed
// descriptor.
type Reader struct {
	*sim.TickingComponent

	CtrlPort   sim.Port
	MemPort    sim.Port
	StreamPort sim.Port
	IRQPort    sim.Port

	memDst    sim.Port
	streamDst sim.Port
	irqDst    sim.Port

	chunkSize  uint64
	maxPending int
	irqSource  uint64

	table *DescriptorTable
	regs  engineRegs

	transfer    *readTransfer
	pendingReqs map[string]chunkInfo
	descIndex   int

	toSend []sim.Msg
}

// Table returns the descriptor table owned by the reader.
func (r *Reader) Table() *DescriptorTable {
	return r.table
}

// Tick advances the reader by one cycle.
func (r *Reader) Tick() bool {
	madeProgress := false

	madeProgress = r.sendPendingMsgs() || madeProgress
	madeProgress = r.processCtrl() || madeProgress
	madeProgress = r.processMemRsp() || madeProgress
	madeProgress = r.streamOut() || madeProgress
	madeProgress = r.completeTransfer() || madeProgress
	madeProgress = r.fetchNextDescriptor() || madeProgress
	madeProgress = r.issueChunk() || madeProgress

	return madeProgress
}

func (r *Reader) sendPendingMsgs() bool {
	madeProgress := false

	for len(r.toSend) > 0 {
		msg := r.toSend[0]
		err := msg.Meta().Src.Send(msg)
		if err != nil {
			break
		}

		r.toSend = r.toSend[1:]
		madeProgress = true
	}

	return madeProgress
}

func (r *Reader) processCtrl() bool {
	msg := r.CtrlPort.PeekIncoming()
	if msg == nil {
		return false
	}

	switch msg := msg.(type) {
	case *csr.RegWriteMsg:
		r.regs.handleWrite(msg)
	case *csr.RegReadMsg:
		rsp := csr.RegReadRspMsgBuilder{}.
			WithSrc(r.CtrlPort).
			WithDst(msg.Meta().Src).
			WithRspTo(msg.Meta().ID).
			WithOffset(msg.Offset).
			WithValue(r.regs.read(msg.Offset)).
			Build()
		r.toSend = append(r.toSend, rsp)
	default:
		log.Panicf("reader cannot handle msg of type %T", msg)
	}

	r.CtrlPort.RetrieveIncoming()

	return true
}

func (r *Reader) processMemRsp() bool {
	msg := r.MemPort.PeekIncoming()
	if msg == nil {
		return false
	}

	rsp, ok := msg.(*mem.DataReadyRsp)
	if !ok {
		log.Panicf("reader cannot handle mem msg of type %T", msg)
	}

	info, found := r.pendingReqs[rsp.RespondTo]
	if !found {
		log.Panic("reader received response to unknown request")
	}

	copy(r.transfer.data[info.offset:info.offset+info.size], rsp.Data)
	for i := info.offset; i < info.offset+info.size; i++ {
		r.transfer.arrived[i] = true
	}

	delete(r.pendingReqs, rsp.RespondTo)
	r.MemPort.RetrieveIncoming()

	return true
}

func (r *Reader) streamOut() bool {
	if r.transfer == nil {
		return false
	}

	t := r.transfer
	limit := t.streamed
	for limit < uint64(t.desc.Length) && t.arrived[limit] {
		limit++
	}

	if limit == t.streamed {
		return false
	}

	numBytes := limit - t.streamed
	if numBytes > r.chunkSize {
		numBytes = r.chunkSize
	}

	msg := StreamDataMsgBuilder{}.
		WithSrc(r.StreamPort).
		WithDst(r.streamDst).
		WithData(t.data[t.streamed : t.streamed+numBytes]).
		Build()

	err := r.StreamPort.Send(msg)
	if err != nil {
		return false
	}

	t.streamed += numBytes

	return true
}

func (r *Reader) completeTransfer() bool {
	if r.transfer == nil {
		return false
	}

	t := r.transfer
	if t.streamed < uint64(t.desc.Length) {
		return false
	}

	irq := IRQMsgBuilder{}.
		WithSrc(r.IRQPort).
		WithDst(r.irqDst).
		WithSource(r.irqSource).
		Build()

	err := r.IRQPort.Send(irq)
	if err != nil {
		return false
	}

	r.InvokeHook(sim.HookCtx{
		Domain: r,
		Pos:    HookPosDescComplete,
		Item: DescCompletionInfo{
			Engine:    r.Name(),
			DescIndex: r.descIndex,
			Address:   t.desc.Address,
			Length:    t.desc.Length,
			Time:      r.CurrentTime(),
		},
	})

	r.descIndex++
	r.transfer = nil

	return true
}

func (r *Reader) fetchNextDescriptor() bool {
	if !r.regs.enabled() || r.transfer != nil {
		return false
	}

	desc, ok := r.table.Next()
	if !ok {
		return false
	}

	r.transfer = &readTransfer{
		desc:    desc,
		data:    make([]byte, desc.Length),
		arrived: make([]bool, desc.Length),
	}

	return true
}

func (r *Reader) issueChunk() bool {
	if r.transfer == nil || !r.regs.enabled() {
		return false
	}

	t := r.transfer
	if t.issued >= uint64(t.desc.Length) {
		return false
	}

	if len(r.pendingReqs) >= r.maxPending {
		return false
	}

	numBytes := uint64(t.desc.Length) - t.issued
	if numBytes > r.chunkSize {
		numBytes = r.chunkSize
	}

	req := mem.ReadReqBuilder{}.
		WithSrc(r.MemPort).
		WithDst(r.memDst).
		WithAddress(t.desc.Address + t.issued).
		WithByteSize(numBytes).
		Build()

	err := r.MemPort.Send(req)
	if err != nil {
		return false
	}

	r.pendingReqs[req.ID] = chunkInfo{offset: t.issued, size: numBytes}
	t.issued += numBytes

	return true
}

// ReaderBuilder can build DMA reader engines.
type ReaderBuilder struct {
	engine        sim.Engine
	freq          sim.Freq
	tableCapacity int
	chunkSize     uint64
	maxPending    int
	irqSource     uint64

	memDst    sim.Port
	streamDst sim.Port
	irqDst    sim.Port
}

// MakeReaderBuilder creates a reader builder with default parameters.
func MakeReaderBuilder() ReaderBuilder {
	return ReaderBuilder{
		freq:          1 * sim.GHz,
		tableCapacity: 256,
		chunkSize:     128,
		maxPending:    8,
		irqSource:     IRQSourceReader,
	}
}

// WithEngine sets the event engine that drives the reader.
func (b ReaderBuilder) WithEngine(engine sim.Engine) ReaderBuilder {
	b.engine = engine
	return b
}

// WithFreq sets the tick frequency of the reader.
func (b ReaderBuilder) WithFreq(freq sim.Freq) ReaderBuilder {
	b.freq = freq
	return b
}

// WithTableCapacity sets the descriptor table capacity.
func (b ReaderBuilder) WithTableCapacity(capacity int) ReaderBuilder {
	b.tableCapacity = capacity
	return b
}

// WithChunkSize sets the number of bytes requested per bus request.
func (b ReaderBuilder) WithChunkSize(chunkSize uint64) ReaderBuilder {
	b.chunkSize = chunkSize
	return b
}

// WithMaxPending sets the maximum number of outstanding bus requests.
func (b ReaderBuilder) WithMaxPending(maxPending int) ReaderBuilder {
	b.maxPending = maxPending
	return b
}

// WithIRQSource sets the interrupt source bit raised on descriptor
// completion.
func (b ReaderBuilder) WithIRQSource(source uint64) ReaderBuilder {
	b.irqSource = source
	return b
}

// WithMemDst sets the transaction-layer port that memory requests go to.
func (b ReaderBuilder) WithMemDst(dst sim.Port) ReaderBuilder {
	b.memDst = dst
	return b
}

// WithStreamDst sets the port that stream data goes to.
func (b ReaderBuilder) WithStreamDst(dst sim.Port) ReaderBuilder {
	b.streamDst = dst
	return b
}

// WithIRQDst sets the interrupt controller port that IRQ messages go to.
func (b ReaderBuilder) WithIRQDst(dst sim.Port) ReaderBuilder {
	b.irqDst = dst
	return b
}

// Build creates a reader with the given name.
func (b ReaderBuilder) Build(name string) *Reader {
	r := new(Reader)
	r.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, r)

	r.table = NewDescriptorTable(b.tableCapacity)
	r.regs.table = r.table
	r.chunkSize = b.chunkSize
	r.maxPending = b.maxPending
	r.irqSource = b.irqSource
	r.memDst = b.memDst
	r.streamDst = b.streamDst
	r.irqDst = b.irqDst
	r.pendingReqs = make(map[string]chunkInfo)

	r.CtrlPort = sim.NewPort(r, 4, 4, name+".CtrlPort")
	r.MemPort = sim.NewPort(r, 16, 16, name+".MemPort")
	r.StreamPort = sim.NewPort(r, 4, 4, name+".StreamPort")
	r.IRQPort = sim.NewPort(r, 4, 4, name+".IRQPort")

	r.AddPort("Ctrl", r.CtrlPort)
	r.AddPort("Mem", r.MemPort)
	r.AddPort("Stream", r.StreamPort)
	r.AddPort("IRQ", r.IRQPort)

	return r
}
