// Package directconnection provides a connection that delivers messages
// within one cycle.
package directconnection

import (
	"github.com/mazrouei/litepcie/sim"
)

// Comp is a connection that delivers messages from port to port without
// latency.
type Comp struct {
	*sim.TickingComponent

	nextPortID int
	ports      []sim.Port
}

// PlugIn marks the port connects to this Comp.
func (c *Comp) PlugIn(port sim.Port, _ int) {
	c.Lock()
	defer c.Unlock()

	c.ports = append(c.ports, port)

	port.SetConnection(c)
}

// Unplug marks the port no longer connects to this Comp.
func (c *Comp) Unplug(_ sim.Port) {
	panic("not implemented")
}

// NotifyAvailable is called by a port to notify that the connection can
// deliver to the port again.
func (c *Comp) NotifyAvailable(p sim.Port) {
	for _, port := range c.ports {
		if port == p {
			continue
		}

		port.NotifyAvailable()
	}

	c.TickNow()
}

// NotifySend is called by a port to notify that the connection can start
// to tick now.
func (c *Comp) NotifySend() {
	c.TickNow()
}

// Tick updates the states of the connection and delivers messages. Ports are
// served in a round-robin order.
func (c *Comp) Tick() bool {
	madeProgress := false
	for i := 0; i < len(c.ports); i++ {
		portID := (i + c.nextPortID) % len(c.ports)
		port := c.ports[portID]
		madeProgress = c.forwardMany(port) || madeProgress
	}

	c.nextPortID = (c.nextPortID + 1) % len(c.ports)
	return madeProgress
}

func (c *Comp) forwardMany(
	port sim.Port,
) bool {
	madeProgress := false
	for {
		head := port.PeekOutgoing()
		if head == nil {
			break
		}

		err := head.Meta().Dst.Deliver(head)
		if err != nil {
			break
		}

		madeProgress = true
		port.RetrieveOutgoing()
	}

	return madeProgress
}
