package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

type portTestMsg struct {
	MsgMeta
}

func (m *portTestMsg) Meta() *MsgMeta {
	return &m.MsgMeta
}

func newPortTestMsg(src, dst Port) *portTestMsg {
	msg := &portTestMsg{}
	msg.ID = GetIDGenerator().Generate()
	msg.Src = src
	msg.Dst = dst
	return msg
}

var _ = Describe("Default Port", func() {
	var (
		mockCtrl *gomock.Controller
		comp     *MockComponent
		conn     *MockConnection
		dstPort  *MockPort
		port     Port
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		comp = NewMockComponent(mockCtrl)
		conn = NewMockConnection(mockCtrl)
		dstPort = NewMockPort(mockCtrl)
		port = NewPort(comp, 2, 2, "Port")
		port.SetConnection(conn)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should buffer the message on send and notify the connection", func() {
		msg := newPortTestMsg(port, dstPort)

		conn.EXPECT().NotifySend()

		err := port.Send(msg)

		Expect(err).To(BeNil())
		Expect(port.PeekOutgoing()).To(BeIdenticalTo(msg))
	})

	It("should only notify the connection when the buffer was empty", func() {
		msg1 := newPortTestMsg(port, dstPort)
		msg2 := newPortTestMsg(port, dstPort)

		conn.EXPECT().NotifySend().Times(1)

		Expect(port.Send(msg1)).To(BeNil())
		Expect(port.Send(msg2)).To(BeNil())
	})

	It("should fail to send when the outgoing buffer is full", func() {
		msg1 := newPortTestMsg(port, dstPort)
		msg2 := newPortTestMsg(port, dstPort)
		msg3 := newPortTestMsg(port, dstPort)

		conn.EXPECT().NotifySend()

		Expect(port.Send(msg1)).To(BeNil())
		Expect(port.Send(msg2)).To(BeNil())

		Expect(port.CanSend()).To(BeFalse())
		Expect(port.Send(msg3)).NotTo(BeNil())
	})

	It("should panic when the sender is not the source", func() {
		msg := newPortTestMsg(dstPort, port)

		Expect(func() { port.Send(msg) }).To(Panic())
	})

	It("should panic when the destination is missing", func() {
		msg := newPortTestMsg(port, nil)

		Expect(func() { port.Send(msg) }).To(Panic())
	})

	It("should notify the component on delivery", func() {
		msg := newPortTestMsg(dstPort, port)

		comp.EXPECT().NotifyRecv(port)

		err := port.Deliver(msg)

		Expect(err).To(BeNil())
		Expect(port.PeekIncoming()).To(BeIdenticalTo(msg))
	})

	It("should fail to deliver when the incoming buffer is full", func() {
		msg1 := newPortTestMsg(dstPort, port)
		msg2 := newPortTestMsg(dstPort, port)
		msg3 := newPortTestMsg(dstPort, port)

		comp.EXPECT().NotifyRecv(port)

		Expect(port.Deliver(msg1)).To(BeNil())
		Expect(port.Deliver(msg2)).To(BeNil())
		Expect(port.Deliver(msg3)).NotTo(BeNil())
	})

	It("should notify the connection when a full incoming buffer drains", func() {
		msg1 := newPortTestMsg(dstPort, port)
		msg2 := newPortTestMsg(dstPort, port)

		comp.EXPECT().NotifyRecv(port)
		conn.EXPECT().NotifyAvailable(port)

		Expect(port.Deliver(msg1)).To(BeNil())
		Expect(port.Deliver(msg2)).To(BeNil())

		Expect(port.RetrieveIncoming()).To(BeIdenticalTo(msg1))
		Expect(port.RetrieveIncoming()).To(BeIdenticalTo(msg2))
	})

	It("should notify the component when a full outgoing buffer drains", func() {
		msg1 := newPortTestMsg(port, dstPort)
		msg2 := newPortTestMsg(port, dstPort)

		conn.EXPECT().NotifySend()
		comp.EXPECT().NotifyPortFree(port)

		Expect(port.Send(msg1)).To(BeNil())
		Expect(port.Send(msg2)).To(BeNil())

		Expect(port.RetrieveOutgoing()).To(BeIdenticalTo(msg1))
		Expect(port.RetrieveOutgoing()).To(BeIdenticalTo(msg2))
	})
})
