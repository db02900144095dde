package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Event Queue", func() {
	var (
		mockCtrl *gomock.Controller
		handler  *MockHandler
		queue    *EventQueueImpl
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		handler = NewMockHandler(mockCtrl)
		queue = NewEventQueue()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should pop in time order", func() {
		evt1 := NewEventBase(2.0, handler)
		evt2 := NewEventBase(1.0, handler)
		evt3 := NewEventBase(3.0, handler)

		queue.Push(evt1)
		queue.Push(evt2)
		queue.Push(evt3)

		Expect(queue.Len()).To(Equal(3))
		Expect(queue.Pop()).To(BeIdenticalTo(evt2))
		Expect(queue.Pop()).To(BeIdenticalTo(evt1))
		Expect(queue.Pop()).To(BeIdenticalTo(evt3))
	})

	It("should peek without removing", func() {
		evt1 := NewEventBase(2.0, handler)
		evt2 := NewEventBase(1.0, handler)

		queue.Push(evt1)
		queue.Push(evt2)

		Expect(queue.Peek()).To(BeIdenticalTo(evt2))
		Expect(queue.Len()).To(Equal(2))
	})
})
