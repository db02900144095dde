package driver

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/mazrouei/litepcie/csr"
	"github.com/mazrouei/litepcie/dma"
	"github.com/mazrouei/litepcie/mem"
	"github.com/mazrouei/litepcie/msi"
	"github.com/mazrouei/litepcie/sim"
)

var _ = Describe("Driver", func() {
	var (
		mockCtrl   *gomock.Controller
		engine     *MockEngine
		conn       *MockConnection
		readerCtrl *MockPort
		writerCtrl *MockPort
		msiCtrl    *MockPort
		storage    *mem.Storage
		drv        *Comp

		readerMsgs []*csr.RegWriteMsg
		writerMsgs []*csr.RegWriteMsg
		msiMsgs    []sim.Msg
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())

		engine = NewMockEngine(mockCtrl)
		engine.EXPECT().CurrentTime().Return(sim.VTimeInSec(0)).AnyTimes()
		engine.EXPECT().Schedule(gomock.Any()).AnyTimes()

		conn = NewMockConnection(mockCtrl)
		conn.EXPECT().NotifySend().AnyTimes()
		conn.EXPECT().NotifyAvailable(gomock.Any()).AnyTimes()

		readerCtrl = NewMockPort(mockCtrl)
		writerCtrl = NewMockPort(mockCtrl)
		msiCtrl = NewMockPort(mockCtrl)
		storage = mem.NewStorage(1 << 22)

		readerMsgs = nil
		writerMsgs = nil
		msiMsgs = nil
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	build := func(b Builder) {
		drv = b.
			WithEngine(engine).
			WithFreq(1 * sim.GHz).
			WithStorage(storage).
			WithReaderCtrl(readerCtrl).
			WithWriterCtrl(writerCtrl).
			WithMSICtrl(msiCtrl).
			WithTestSize(64).
			WithDescCount(2).
			WithSettleTicks(2).
			Build("Driver")

		drv.ReaderPort.SetConnection(conn)
		drv.WriterPort.SetConnection(conn)
		drv.MSIPort.SetConnection(conn)
		drv.NotifyPort.SetConnection(conn)
	}

	drain := func() {
		for {
			msg := drv.ReaderPort.RetrieveOutgoing()
			if msg == nil {
				break
			}
			readerMsgs = append(readerMsgs, msg.(*csr.RegWriteMsg))
		}
		for {
			msg := drv.WriterPort.RetrieveOutgoing()
			if msg == nil {
				break
			}
			writerMsgs = append(writerMsgs, msg.(*csr.RegWriteMsg))
		}
		for {
			msg := drv.MSIPort.RetrieveOutgoing()
			if msg == nil {
				break
			}
			msiMsgs = append(msiMsgs, msg)
		}
	}

	pump := func(ticks int) {
		for i := 0; i < ticks; i++ {
			drv.Tick()
			drain()
		}
	}

	deliverNotify := func(vector uint64) {
		notify := &msi.IRQNotifyMsg{Vector: vector}
		notify.ID = sim.GetIDGenerator().Generate()
		notify.Src = msiCtrl
		notify.Dst = drv.NotifyPort
		drv.NotifyPort.Deliver(notify)
	}

	deliverVectorRsp := func(vector uint64) {
		rsp := csr.RegReadRspMsgBuilder{}.
			WithSrc(msiCtrl).
			WithDst(drv.MSIPort).
			WithRspTo("x").
			WithOffset(csr.RegIRQVector).
			WithValue(vector).
			Build()
		drv.MSIPort.Deliver(rsp)
	}

	It("should fill the source buffer with the pattern", func() {
		build(MakeBuilder())

		data, err := storage.Read(0, 64)
		Expect(err).To(BeNil())
		Expect(data).To(Equal(WordsToBytes(PatternWords(16))))
	})

	It("should program the engines with strobed writes and enable them last", func() {
		build(MakeBuilder())
		pump(50)

		offsets := make([]uint64, len(readerMsgs))
		values := make([]uint64, len(readerMsgs))
		for i, msg := range readerMsgs {
			offsets[i] = msg.Offset
			values[i] = msg.Value
		}

		Expect(offsets).To(Equal([]uint64{
			csr.RegTableLoop,
			csr.RegTableFlush, csr.RegTableFlush,
			csr.RegTableValue, csr.RegTableWE, csr.RegTableWE,
			csr.RegTableValue, csr.RegTableWE, csr.RegTableWE,
			csr.RegEngineEnable,
		}))
		Expect(values[0]).To(Equal(uint64(0)))
		Expect(values[1]).To(Equal(uint64(1)))
		Expect(values[2]).To(Equal(uint64(0)))
		Expect(values[3]).To(Equal(dma.PackDescriptor(
			dma.Descriptor{Address: 0, Length: 32})))
		Expect(values[6]).To(Equal(dma.PackDescriptor(
			dma.Descriptor{Address: 32, Length: 32})))
		Expect(values[9]).To(Equal(uint64(1)))

		Expect(writerMsgs[3].Value).To(Equal(dma.PackDescriptor(
			dma.Descriptor{Address: 0x0010_0000, Length: 32})))

		enable := msiMsgs[0].(*csr.RegWriteMsg)
		Expect(enable.Offset).To(Equal(csr.RegIRQEnable))
		Expect(enable.Value).To(Equal(
			dma.IRQSourceReader | dma.IRQSourceWriter))
	})

	It("should read, count, and clear the vector on a notification", func() {
		build(MakeBuilder())
		pump(50)
		msiMsgs = nil

		deliverNotify(0x3)
		pump(3)

		read := msiMsgs[0].(*csr.RegReadMsg)
		Expect(read.Offset).To(Equal(csr.RegIRQVector))

		msiMsgs = nil
		deliverVectorRsp(0x3)
		pump(3)

		Expect(drv.Report().ReaderIRQs).To(Equal(1))
		Expect(drv.Report().WriterIRQs).To(Equal(1))

		clearHigh := msiMsgs[0].(*csr.RegWriteMsg)
		clearLow := msiMsgs[1].(*csr.RegWriteMsg)
		Expect(clearHigh.Offset).To(Equal(csr.RegIRQClear))
		Expect(clearHigh.Value).To(Equal(uint64(0x3)))
		Expect(clearLow.Offset).To(Equal(csr.RegIRQClear))
		Expect(clearLow.Value).To(Equal(uint64(0)))
	})

	It("should shut down and report after the expected writer completions", func() {
		build(MakeBuilder())
		storage.Write(0x0010_0000, WordsToBytes(PatternWords(16)))
		pump(50)

		deliverVectorRsp(dma.IRQSourceWriter)
		pump(3)
		deliverVectorRsp(dma.IRQSourceWriter)
		pump(20)

		report := drv.Report()
		Expect(report.Done).To(BeTrue())
		Expect(report.TimedOut).To(BeFalse())
		Expect(report.WriterIRQs).To(Equal(2))
		Expect(report.Shift).To(Equal(0))
		Expect(report.Length).To(Equal(16))
		Expect(report.Errors).To(Equal(0))

		readerDisable := readerMsgs[len(readerMsgs)-1]
		Expect(readerDisable.Offset).To(Equal(csr.RegEngineEnable))
		Expect(readerDisable.Value).To(Equal(uint64(0)))
	})

	It("should time out when completions never arrive", func() {
		build(MakeBuilder().WithTimeoutTicks(5))
		pump(50)

		report := drv.Report()
		Expect(report.Done).To(BeTrue())
		Expect(report.TimedOut).To(BeTrue())
		Expect(report.WriterIRQs).To(Equal(0))
	})
})
