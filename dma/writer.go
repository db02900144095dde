package dma

import (
	"log"

	"github.com/mazrouei/litepcie/csr"
	"github.com/mazrouei/litepcie/mem"
	"github.com/mazrouei/litepcie/sim"
)

type writeTransfer struct {
	desc   Descriptor
	issued uint64
	acked  uint64
}

// A Writer absorbs the byte stream into a FIFO and fills host memory through
// the transaction layer, driven by its descriptor table.
//
// Write acknowledgments may arrive out of order. The writer only counts
// acknowledged bytes; the descriptor completes when every byte is
// acknowledged, and exactly one interrupt is raised per completed
// descriptor.
type Writer struct {
	*sim.TickingComponent

	CtrlPort   sim.Port
	MemPort    sim.Port
	StreamPort sim.Port
	IRQPort    sim.Port

	memDst sim.Port
	irqDst sim.Port

	chunkSize  uint64
	maxPending int
	irqSource  uint64

	table *DescriptorTable
	regs  engineRegs

	transfer    *writeTransfer
	fifo        []byte
	fifoCap     uint64
	pendingReqs map[string]chunkInfo
	descIndex   int

	toSend []sim.Msg
}

// Table returns the descriptor table owned by the writer.
func (w *Writer) Table() *DescriptorTable {
	return w.table
}

// Tick advances the writer by one cycle.
func (w *Writer) Tick() bool {
	madeProgress := false

	madeProgress = w.sendPendingMsgs() || madeProgress
	madeProgress = w.processCtrl() || madeProgress
	madeProgress = w.absorbStream() || madeProgress
	madeProgress = w.processMemRsp() || madeProgress
	madeProgress = w.completeTransfer() || madeProgress
	madeProgress = w.fetchNextDescriptor() || madeProgress
	madeProgress = w.issueChunk() || madeProgress

	return madeProgress
}

func (w *Writer) sendPendingMsgs() bool {
	madeProgress := false

	for len(w.toSend) > 0 {
		msg := w.toSend[0]
		err := msg.Meta().Src.Send(msg)
		if err != nil {
			break
		}

		w.toSend = w.toSend[1:]
		madeProgress = true
	}

	return madeProgress
}

func (w *Writer) processCtrl() bool {
	msg := w.CtrlPort.PeekIncoming()
	if msg == nil {
		return false
	}

	switch msg := msg.(type) {
	case *csr.RegWriteMsg:
		w.regs.handleWrite(msg)
	case *csr.RegReadMsg:
		rsp := csr.RegReadRspMsgBuilder{}.
			WithSrc(w.CtrlPort).
			WithDst(msg.Meta().Src).
			WithRspTo(msg.Meta().ID).
			WithOffset(msg.Offset).
			WithValue(w.regs.read(msg.Offset)).
			Build()
		w.toSend = append(w.toSend, rsp)
	default:
		log.Panicf("writer cannot handle msg of type %T", msg)
	}

	w.CtrlPort.RetrieveIncoming()

	return true
}

func (w *Writer) absorbStream() bool {
	msg := w.StreamPort.PeekIncoming()
	if msg == nil {
		return false
	}

	streamMsg, ok := msg.(*StreamDataMsg)
	if !ok {
		log.Panicf("writer cannot handle stream msg of type %T", msg)
	}

	if uint64(len(w.fifo))+uint64(len(streamMsg.Data)) > w.fifoCap {
		return false
	}

	w.fifo = append(w.fifo, streamMsg.Data...)
	w.StreamPort.RetrieveIncoming()

	return true
}

func (w *Writer) processMemRsp() bool {
	msg := w.MemPort.PeekIncoming()
	if msg == nil {
		return false
	}

	rsp, ok := msg.(*mem.WriteDoneRsp)
	if !ok {
		log.Panicf("writer cannot handle mem msg of type %T", msg)
	}

	info, found := w.pendingReqs[rsp.RespondTo]
	if !found {
		log.Panic("writer received response to unknown request")
	}

	w.transfer.acked += info.size
	delete(w.pendingReqs, rsp.RespondTo)
	w.MemPort.RetrieveIncoming()

	return true
}

func (w *Writer) completeTransfer() bool {
	if w.transfer == nil {
		return false
	}

	t := w.transfer
	if t.acked < uint64(t.desc.Length) {
		return false
	}

	irq := IRQMsgBuilder{}.
		WithSrc(w.IRQPort).
		WithDst(w.irqDst).
		WithSource(w.irqSource).
		Build()

	err := w.IRQPort.Send(irq)
	if err != nil {
		return false
	}

	w.InvokeHook(sim.HookCtx{
		Domain: w,
		Pos:    HookPosDescComplete,
		Item: DescCompletionInfo{
			Engine:    w.Name(),
			DescIndex: w.descIndex,
			Address:   t.desc.Address,
			Length:    t.desc.Length,
			Time:      w.CurrentTime(),
		},
	})

	w.descIndex++
	w.transfer = nil

	return true
}

func (w *Writer) fetchNextDescriptor() bool {
	if !w.regs.enabled() || w.transfer != nil {
		return false
	}

	desc, ok := w.table.Next()
	if !ok {
		return false
	}

	w.transfer = &writeTransfer{desc: desc}

	return true
}

func (w *Writer) issueChunk() bool {
	if w.transfer == nil || !w.regs.enabled() {
		return false
	}

	t := w.transfer
	if t.issued >= uint64(t.desc.Length) {
		return false
	}

	if len(w.pendingReqs) >= w.maxPending {
		return false
	}

	numBytes := uint64(t.desc.Length) - t.issued
	if numBytes > w.chunkSize {
		numBytes = w.chunkSize
	}

	if uint64(len(w.fifo)) < numBytes {
		return false
	}

	data := make([]byte, numBytes)
	copy(data, w.fifo[:numBytes])

	req := mem.WriteReqBuilder{}.
		WithSrc(w.MemPort).
		WithDst(w.memDst).
		WithAddress(t.desc.Address + t.issued).
		WithData(data).
		Build()

	err := w.MemPort.Send(req)
	if err != nil {
		return false
	}

	w.fifo = w.fifo[numBytes:]
	w.pendingReqs[req.ID] = chunkInfo{offset: t.issued, size: numBytes}
	t.issued += numBytes

	return true
}

// WriterBuilder can build DMA writer engines.
type WriterBuilder struct {
	engine        sim.Engine
	freq          sim.Freq
	tableCapacity int
	chunkSize     uint64
	maxPending    int
	irqSource     uint64

	memDst sim.Port
	irqDst sim.Port
}

// MakeWriterBuilder creates a writer builder with default parameters.
func MakeWriterBuilder() WriterBuilder {
	return WriterBuilder{
		freq:          1 * sim.GHz,
		tableCapacity: 256,
		chunkSize:     128,
		maxPending:    8,
		irqSource:     IRQSourceWriter,
	}
}

// WithEngine sets the event engine that drives the writer.
func (b WriterBuilder) WithEngine(engine sim.Engine) WriterBuilder {
	b.engine = engine
	return b
}

// WithFreq sets the tick frequency of the writer.
func (b WriterBuilder) WithFreq(freq sim.Freq) WriterBuilder {
	b.freq = freq
	return b
}

// WithTableCapacity sets the descriptor table capacity.
func (b WriterBuilder) WithTableCapacity(capacity int) WriterBuilder {
	b.tableCapacity = capacity
	return b
}

// WithChunkSize sets the number of bytes written per bus request.
func (b WriterBuilder) WithChunkSize(chunkSize uint64) WriterBuilder {
	b.chunkSize = chunkSize
	return b
}

// WithMaxPending sets the maximum number of outstanding bus requests.
func (b WriterBuilder) WithMaxPending(maxPending int) WriterBuilder {
	b.maxPending = maxPending
	return b
}

// WithIRQSource sets the interrupt source bit raised on descriptor
// completion.
func (b WriterBuilder) WithIRQSource(source uint64) WriterBuilder {
	b.irqSource = source
	return b
}

// WithMemDst sets the transaction-layer port that memory requests go to.
func (b WriterBuilder) WithMemDst(dst sim.Port) WriterBuilder {
	b.memDst = dst
	return b
}

// WithIRQDst sets the interrupt controller port that IRQ messages go to.
func (b WriterBuilder) WithIRQDst(dst sim.Port) WriterBuilder {
	b.irqDst = dst
	return b
}

// Build creates a writer with the given name.
func (b WriterBuilder) Build(name string) *Writer {
	w := new(Writer)
	w.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, w)

	w.table = NewDescriptorTable(b.tableCapacity)
	w.regs.table = w.table
	w.chunkSize = b.chunkSize
	w.maxPending = b.maxPending
	w.irqSource = b.irqSource
	w.memDst = b.memDst
	w.irqDst = b.irqDst
	w.pendingReqs = make(map[string]chunkInfo)
	w.fifoCap = b.chunkSize * uint64(b.maxPending) * 2

	w.CtrlPort = sim.NewPort(w, 4, 4, name+".CtrlPort")
	w.MemPort = sim.NewPort(w, 16, 16, name+".MemPort")
	w.StreamPort = sim.NewPort(w, 4, 4, name+".StreamPort")
	w.IRQPort = sim.NewPort(w, 4, 4, name+".IRQPort")

	w.AddPort("Ctrl", w.CtrlPort)
	w.AddPort("Mem", w.MemPort)
	w.AddPort("Stream", w.StreamPort)
	w.AddPort("IRQ", w.IRQPort)

	return w
}
