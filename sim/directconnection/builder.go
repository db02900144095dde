package directconnection

import "github.com/mazrouei/litepcie/sim"

// Builder can help building direct connections.
type Builder struct {
	engine sim.Engine
	freq   sim.Freq
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{}
}

// WithEngine sets the engine that drives the connection.
func (b Builder) WithEngine(e sim.Engine) Builder {
	b.engine = e
	return b
}

// WithFreq sets the frequency at which the connection forwards messages.
func (b Builder) WithFreq(f sim.Freq) Builder {
	b.freq = f
	return b
}

// Build creates a direct connection.
func (b Builder) Build(name string) *Comp {
	c := new(Comp)
	c.TickingComponent =
		sim.NewSecondaryTickingComponent(name, b.engine, b.freq, c)
	return c
}
