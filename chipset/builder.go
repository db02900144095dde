package chipset

import (
	"math/rand"

	"github.com/mazrouei/litepcie/mem"
	"github.com/mazrouei/litepcie/sim"
)

// Builder can build transaction-layer components.
type Builder struct {
	engine     sim.Engine
	freq       sim.Freq
	storage    *mem.Storage
	maxPayload uint64
	reordering bool
	seed       int64
	latency    int
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq:       1 * sim.GHz,
		maxPayload: 128,
		latency:    8,
		seed:       1,
	}
}

// WithEngine sets the event engine that drives the chipset.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the tick frequency of the chipset.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithStorage sets the host memory that the chipset applies requests to.
func (b Builder) WithStorage(storage *mem.Storage) Builder {
	b.storage = storage
	return b
}

// WithMaxPayload sets the maximum sub-transaction size in bytes.
func (b Builder) WithMaxPayload(maxPayload uint64) Builder {
	b.maxPayload = maxPayload
	return b
}

// WithReordering enables out-of-order sub-transaction delivery.
func (b Builder) WithReordering(reordering bool) Builder {
	b.reordering = reordering
	return b
}

// WithSeed sets the seed of the reordering random source.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithLatency sets the number of cycles before a sub-transaction becomes
// eligible for delivery.
func (b Builder) WithLatency(latency int) Builder {
	b.latency = latency
	return b
}

// Build creates a chipset with the given name.
func (b Builder) Build(name string) *Comp {
	c := new(Comp)
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	c.storage = b.storage
	c.maxPayload = b.maxPayload
	c.reordering = b.reordering
	c.latency = b.latency
	c.rand = rand.New(rand.NewSource(b.seed))
	c.inflight = make(map[string]*requestState)

	c.TopPort = sim.NewPort(c, 16, 16, name+".TopPort")
	c.AddPort("Top", c.TopPort)

	return c
}
