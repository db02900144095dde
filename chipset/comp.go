// Package chipset models the transaction layer between the DMA engines and
// the host memory.
//
// Oversized requests are split into sub-transactions bounded by the max
// payload size. Each sub-transaction becomes eligible for delivery after a
// fixed latency, and eligible sub-transactions can be delivered out of order
// when reordering is enabled. Memory effects apply at delivery time.
package chipset

import (
	"log"
	"math/rand"

	"github.com/mazrouei/litepcie/mem"
	"github.com/mazrouei/litepcie/sim"
)

type subTransaction struct {
	reqID     string
	offset    uint64
	size      uint64
	readyTime sim.VTimeInSec
}

type requestState struct {
	req      sim.Msg
	data     []byte
	subsLeft int
}

// Comp is the transaction-layer component.
type Comp struct {
	*sim.TickingComponent

	TopPort sim.Port

	storage    *mem.Storage
	maxPayload uint64
	reordering bool
	latency    int
	rand       *rand.Rand

	enabled bool

	inflight map[string]*requestState
	subs     []*subTransaction
	toSend   []sim.Msg
}

// SetEnabled opens or closes the request gate. While the gate is closed,
// incoming requests are held, never dropped.
func (c *Comp) SetEnabled(enabled bool) {
	c.enabled = enabled
	if enabled {
		c.TickLater()
	}
}

// Tick advances the chipset by one cycle.
func (c *Comp) Tick() bool {
	madeProgress := false

	madeProgress = c.sendRsps() || madeProgress
	madeProgress = c.acceptReq() || madeProgress
	madeProgress = c.deliverSub() || madeProgress

	return madeProgress
}

func (c *Comp) sendRsps() bool {
	madeProgress := false

	for len(c.toSend) > 0 {
		msg := c.toSend[0]
		err := c.TopPort.Send(msg)
		if err != nil {
			break
		}

		c.toSend = c.toSend[1:]
		madeProgress = true
	}

	return madeProgress
}

func (c *Comp) acceptReq() bool {
	if !c.enabled {
		return false
	}

	msg := c.TopPort.PeekIncoming()
	if msg == nil {
		return false
	}

	req, ok := msg.(mem.AccessReq)
	if !ok {
		log.Panicf("chipset cannot handle msg of type %T", msg)
	}

	c.split(req)
	c.TopPort.RetrieveIncoming()

	return true
}

func (c *Comp) split(req mem.AccessReq) {
	state := &requestState{req: req}
	if _, isRead := req.(*mem.ReadReq); isRead {
		state.data = make([]byte, req.GetByteSize())
	}

	readyTime := c.Freq.NCyclesLater(c.latency, c.CurrentTime())

	length := req.GetByteSize()
	for offset := uint64(0); offset < length; offset += c.maxPayload {
		size := length - offset
		if size > c.maxPayload {
			size = c.maxPayload
		}

		c.subs = append(c.subs, &subTransaction{
			reqID:     req.Meta().ID,
			offset:    offset,
			size:      size,
			readyTime: readyTime,
		})
		state.subsLeft++
	}

	c.inflight[req.Meta().ID] = state
}

func (c *Comp) deliverSub() bool {
	now := c.CurrentTime()

	eligible := make([]int, 0, len(c.subs))
	for i, sub := range c.subs {
		if sub.readyTime <= now {
			eligible = append(eligible, i)
		}
	}

	if len(eligible) == 0 {
		// Keep ticking while sub-transactions wait out their latency.
		return len(c.subs) > 0
	}

	idx := eligible[0]
	if c.reordering {
		idx = eligible[c.rand.Intn(len(eligible))]
	}

	sub := c.subs[idx]
	c.subs = append(c.subs[:idx], c.subs[idx+1:]...)

	state := c.inflight[sub.reqID]
	c.apply(state, sub)

	state.subsLeft--
	if state.subsLeft == 0 {
		c.respond(state)
		delete(c.inflight, sub.reqID)
	}

	return true
}

func (c *Comp) apply(state *requestState, sub *subTransaction) {
	switch req := state.req.(type) {
	case *mem.ReadReq:
		data, err := c.storage.Read(req.Address+sub.offset, sub.size)
		if err != nil {
			log.Panic(err)
		}
		copy(state.data[sub.offset:sub.offset+sub.size], data)
	case *mem.WriteReq:
		err := c.storage.Write(
			req.Address+sub.offset,
			req.Data[sub.offset:sub.offset+sub.size])
		if err != nil {
			log.Panic(err)
		}
	default:
		log.Panicf("chipset cannot apply request of type %T", state.req)
	}
}

func (c *Comp) respond(state *requestState) {
	switch req := state.req.(type) {
	case *mem.ReadReq:
		rsp := mem.DataReadyRspBuilder{}.
			WithSrc(c.TopPort).
			WithDst(req.Meta().Src).
			WithRspTo(req.Meta().ID).
			WithData(state.data).
			Build()
		c.toSend = append(c.toSend, rsp)
	case *mem.WriteReq:
		rsp := mem.WriteDoneRspBuilder{}.
			WithSrc(c.TopPort).
			WithDst(req.Meta().Src).
			WithRspTo(req.Meta().ID).
			Build()
		c.toSend = append(c.toSend, rsp)
	}
}
