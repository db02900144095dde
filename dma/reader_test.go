package dma

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/mazrouei/litepcie/csr"
	"github.com/mazrouei/litepcie/mem"
	"github.com/mazrouei/litepcie/sim"
)

var _ = Describe("Reader", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *MockEngine
		conn     *MockConnection

		memDst    *MockPort
		streamDst *MockPort
		irqDst    *MockPort

		reader *Reader
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())

		engine = NewMockEngine(mockCtrl)
		engine.EXPECT().CurrentTime().Return(sim.VTimeInSec(0)).AnyTimes()
		engine.EXPECT().Schedule(gomock.Any()).AnyTimes()

		conn = NewMockConnection(mockCtrl)
		conn.EXPECT().NotifySend().AnyTimes()
		conn.EXPECT().NotifyAvailable(gomock.Any()).AnyTimes()

		memDst = NewMockPort(mockCtrl)
		streamDst = NewMockPort(mockCtrl)
		irqDst = NewMockPort(mockCtrl)

		reader = MakeReaderBuilder().
			WithEngine(engine).
			WithFreq(1 * sim.GHz).
			WithChunkSize(4).
			WithMaxPending(2).
			WithMemDst(memDst).
			WithStreamDst(streamDst).
			WithIRQDst(irqDst).
			Build("Reader")

		reader.CtrlPort.SetConnection(conn)
		reader.MemPort.SetConnection(conn)
		reader.StreamPort.SetConnection(conn)
		reader.IRQPort.SetConnection(conn)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	deliverRegWrite := func(offset, value uint64) {
		msg := csr.RegWriteMsgBuilder{}.
			WithSrc(memDst).
			WithDst(reader.CtrlPort).
			WithOffset(offset).
			WithValue(value).
			Build()
		reader.CtrlPort.Deliver(msg)
		reader.Tick()
	}

	It("should program the table on a write-enable rising edge", func() {
		deliverRegWrite(csr.RegTableFlush, 1)
		deliverRegWrite(csr.RegTableFlush, 0)
		deliverRegWrite(csr.RegTableValue,
			PackDescriptor(Descriptor{Address: 0x10, Length: 8}))
		deliverRegWrite(csr.RegTableWE, 1)
		deliverRegWrite(csr.RegTableWE, 0)

		Expect(reader.Table().Count()).To(Equal(1))

		d, ok := reader.Table().Next()
		Expect(ok).To(BeTrue())
		Expect(d).To(Equal(Descriptor{Address: 0x10, Length: 8}))
	})

	It("should not program again while write-enable stays high", func() {
		deliverRegWrite(csr.RegTableFlush, 1)
		deliverRegWrite(csr.RegTableFlush, 0)
		deliverRegWrite(csr.RegTableValue,
			PackDescriptor(Descriptor{Address: 0x10, Length: 8}))
		deliverRegWrite(csr.RegTableWE, 1)
		deliverRegWrite(csr.RegTableWE, 1)

		Expect(reader.Table().Count()).To(Equal(1))
	})

	It("should issue chunks bounded by chunk size and pending limit", func() {
		reader.Table().Flush()
		reader.Table().Program(Descriptor{Address: 0, Length: 12})
		reader.regs.enable = 1

		reader.Tick()
		reader.Tick()
		reader.Tick()

		req1 := reader.MemPort.RetrieveOutgoing().(*mem.ReadReq)
		req2 := reader.MemPort.RetrieveOutgoing().(*mem.ReadReq)

		Expect(req1.Address).To(Equal(uint64(0)))
		Expect(req1.AccessByteSize).To(Equal(uint64(4)))
		Expect(req2.Address).To(Equal(uint64(4)))
		Expect(req2.AccessByteSize).To(Equal(uint64(4)))

		// Third chunk was held back by the pending limit.
		Expect(reader.MemPort.RetrieveOutgoing()).To(BeNil())
	})

	It("should reassemble out-of-order completions into an in-order stream", func() {
		reader.Table().Flush()
		reader.Table().Program(Descriptor{Address: 0, Length: 8})
		reader.regs.enable = 1

		reader.Tick()
		reader.Tick()

		req1 := reader.MemPort.RetrieveOutgoing().(*mem.ReadReq)
		req2 := reader.MemPort.RetrieveOutgoing().(*mem.ReadReq)

		// The second chunk completes first.
		rsp2 := mem.DataReadyRspBuilder{}.
			WithSrc(memDst).
			WithDst(reader.MemPort).
			WithRspTo(req2.ID).
			WithData([]byte{5, 6, 7, 8}).
			Build()
		reader.MemPort.Deliver(rsp2)
		reader.Tick()

		Expect(reader.StreamPort.RetrieveOutgoing()).To(BeNil())

		rsp1 := mem.DataReadyRspBuilder{}.
			WithSrc(memDst).
			WithDst(reader.MemPort).
			WithRspTo(req1.ID).
			WithData([]byte{1, 2, 3, 4}).
			Build()
		reader.MemPort.Deliver(rsp1)
		reader.Tick()
		reader.Tick()

		stream1 := reader.StreamPort.RetrieveOutgoing().(*StreamDataMsg)
		stream2 := reader.StreamPort.RetrieveOutgoing().(*StreamDataMsg)

		Expect(stream1.Data).To(Equal([]byte{1, 2, 3, 4}))
		Expect(stream2.Data).To(Equal([]byte{5, 6, 7, 8}))
	})

	It("should raise exactly one interrupt per completed descriptor", func() {
		reader.Table().Flush()
		reader.Table().Program(Descriptor{Address: 0, Length: 8})
		reader.regs.enable = 1

		reader.Tick()
		reader.Tick()

		req1 := reader.MemPort.RetrieveOutgoing().(*mem.ReadReq)
		req2 := reader.MemPort.RetrieveOutgoing().(*mem.ReadReq)

		for _, req := range []*mem.ReadReq{req1, req2} {
			rsp := mem.DataReadyRspBuilder{}.
				WithSrc(memDst).
				WithDst(reader.MemPort).
				WithRspTo(req.ID).
				WithData(make([]byte, 4)).
				Build()
			reader.MemPort.Deliver(rsp)
		}

		for i := 0; i < 8; i++ {
			reader.Tick()
		}

		irq := reader.IRQPort.RetrieveOutgoing().(*IRQMsg)
		Expect(irq.Source).To(Equal(uint64(0x1)))
		Expect(reader.IRQPort.RetrieveOutgoing()).To(BeNil())
	})

	It("should stay idle while disabled", func() {
		reader.Table().Flush()
		reader.Table().Program(Descriptor{Address: 0, Length: 8})

		madeProgress := reader.Tick()

		Expect(madeProgress).To(BeFalse())
		Expect(reader.MemPort.RetrieveOutgoing()).To(BeNil())
	})
})
