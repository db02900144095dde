// Package bench assembles the full DMA loopback platform: host memory, the
// chipset transaction layer, the reader and writer engines, the interrupt
// controller, and the host driver, all joined by direct connections.
package bench

import (
	"github.com/mazrouei/litepcie/chipset"
	"github.com/mazrouei/litepcie/datarecording"
	"github.com/mazrouei/litepcie/dma"
	"github.com/mazrouei/litepcie/driver"
	"github.com/mazrouei/litepcie/mem"
	"github.com/mazrouei/litepcie/monitoring"
	"github.com/mazrouei/litepcie/msi"
	"github.com/mazrouei/litepcie/sim"
	"github.com/mazrouei/litepcie/sim/directconnection"
)

const (
	srcBase         = 0x0000_0000
	storageCapacity = 1 << 22
)

// VerificationReport is the report produced by the driver.
type VerificationReport = driver.VerificationReport

// A Bench is one assembled verification platform.
type Bench struct {
	Engine  sim.Engine
	Storage *mem.Storage
	Chipset *chipset.Comp
	Reader  *dma.Reader
	Writer  *dma.Writer
	MSI     *msi.Comp
	Driver  *driver.Comp

	recorder datarecording.DataRecorder
}

// Run executes the simulation until it quiesces and returns the driver's
// verification report.
func (b *Bench) Run() (driver.VerificationReport, error) {
	b.Chipset.SetEnabled(true)
	b.Driver.TickLater()

	err := b.Engine.Run()
	if err != nil {
		return driver.VerificationReport{}, err
	}

	report := b.Driver.Report()

	if b.recorder != nil {
		datarecording.RecordReport(b.recorder, report)
	}

	return report, nil
}

// Builder can build benches.
type Builder struct {
	testSize        uint64
	descriptorCount int
	maxPayload      uint64
	reordering      bool
	seed            int64
	loopMode        bool
	expectedIRQs    int
	timeoutTicks    int
	recorder        datarecording.DataRecorder
	monitor         *monitoring.Monitor
}

// MakeBuilder creates a builder with default parameters: a 4 KiB transfer
// over 8 descriptors, 128-byte split transactions with reordering on, and a
// generous timeout so a wedged run still terminates.
func MakeBuilder() Builder {
	return Builder{
		testSize:        4096,
		descriptorCount: 8,
		maxPayload:      128,
		reordering:      true,
		seed:            1,
		timeoutTicks:    1_000_000,
	}
}

// WithTestSize sets the number of bytes to transfer.
func (b Builder) WithTestSize(size uint64) Builder {
	b.testSize = size
	return b
}

// WithDescriptorCount sets how many descriptors the transfer is split into.
func (b Builder) WithDescriptorCount(count int) Builder {
	b.descriptorCount = count
	return b
}

// WithMaxPayload sets the chipset's maximum sub-transaction size in bytes.
func (b Builder) WithMaxPayload(maxPayload uint64) Builder {
	b.maxPayload = maxPayload
	return b
}

// WithReordering enables or disables sub-transaction reordering.
func (b Builder) WithReordering(reordering bool) Builder {
	b.reordering = reordering
	return b
}

// WithSeed sets the seed of the reordering random source.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithLoopMode selects loop mode for both descriptor tables. In loop mode
// the driver waits for two full passes over the table by default.
func (b Builder) WithLoopMode(loop bool) Builder {
	b.loopMode = loop
	return b
}

// WithExpectedIRQs overrides the number of writer completions the driver
// waits for.
func (b Builder) WithExpectedIRQs(count int) Builder {
	b.expectedIRQs = count
	return b
}

// WithTimeout sets the driver's wait deadline in ticks. Zero waits forever.
func (b Builder) WithTimeout(ticks int) Builder {
	b.timeoutTicks = ticks
	return b
}

// WithDataRecorder sets the recorder that descriptor completions and the
// final report are written to.
func (b Builder) WithDataRecorder(recorder datarecording.DataRecorder) Builder {
	b.recorder = recorder
	return b
}

// WithMonitor sets the monitor that the engine and all components register
// with.
func (b Builder) WithMonitor(monitor *monitoring.Monitor) Builder {
	b.monitor = monitor
	return b
}

// Build creates a bench with the given name.
func (b Builder) Build(name string) *Bench {
	bench := new(Bench)
	bench.recorder = b.recorder

	engine := sim.NewSerialEngine()
	bench.Engine = engine
	bench.Storage = mem.NewStorage(storageCapacity)

	bench.Chipset = chipset.MakeBuilder().
		WithEngine(engine).
		WithFreq(1 * sim.GHz).
		WithStorage(bench.Storage).
		WithMaxPayload(b.maxPayload).
		WithReordering(b.reordering).
		WithSeed(b.seed).
		Build(name + ".Chipset")

	bench.MSI = msi.MakeBuilder().
		WithEngine(engine).
		WithFreq(1 * sim.GHz).
		Build(name + ".MSI")

	bench.Writer = dma.MakeWriterBuilder().
		WithEngine(engine).
		WithFreq(1 * sim.GHz).
		WithMemDst(bench.Chipset.TopPort).
		WithIRQDst(bench.MSI.IRQPort).
		Build(name + ".Writer")

	bench.Reader = dma.MakeReaderBuilder().
		WithEngine(engine).
		WithFreq(1 * sim.GHz).
		WithMemDst(bench.Chipset.TopPort).
		WithStreamDst(bench.Writer.StreamPort).
		WithIRQDst(bench.MSI.IRQPort).
		Build(name + ".Reader")

	bench.Driver = driver.MakeBuilder().
		WithEngine(engine).
		WithFreq(1 * sim.GHz).
		WithStorage(bench.Storage).
		WithReaderCtrl(bench.Reader.CtrlPort).
		WithWriterCtrl(bench.Writer.CtrlPort).
		WithMSICtrl(bench.MSI.CtrlPort).
		WithSrcBase(srcBase).
		// The destination buffer sits right after the source buffer, as the
		// original loopback scenario lays them out.
		WithDstBase(srcBase + b.testSize).
		WithTestSize(b.testSize).
		WithDescCount(b.descriptorCount).
		WithLoopMode(b.loopMode).
		WithExpectedIRQs(b.expectedIRQCount()).
		WithTimeoutTicks(b.timeoutTicks).
		Build(name + ".Driver")

	bench.MSI.SetNotifyDst(bench.Driver.NotifyPort)

	b.connect(bench, name)
	b.attachRecorder(bench)
	b.attachMonitor(bench)

	return bench
}

func (b Builder) expectedIRQCount() int {
	if b.expectedIRQs > 0 {
		return b.expectedIRQs
	}

	if b.loopMode {
		return 2 * b.descriptorCount
	}

	return b.descriptorCount
}

func (b Builder) connect(bench *Bench, name string) {
	engine := bench.Engine

	ctrlConn := directconnection.MakeBuilder().
		WithEngine(engine).
		WithFreq(1 * sim.GHz).
		Build(name + ".CtrlConn")
	ctrlConn.PlugIn(bench.Driver.ReaderPort, 1)
	ctrlConn.PlugIn(bench.Driver.WriterPort, 1)
	ctrlConn.PlugIn(bench.Driver.MSIPort, 1)
	ctrlConn.PlugIn(bench.Driver.NotifyPort, 1)
	ctrlConn.PlugIn(bench.Reader.CtrlPort, 1)
	ctrlConn.PlugIn(bench.Writer.CtrlPort, 1)
	ctrlConn.PlugIn(bench.MSI.CtrlPort, 1)
	ctrlConn.PlugIn(bench.MSI.NotifyPort, 1)

	memConn := directconnection.MakeBuilder().
		WithEngine(engine).
		WithFreq(1 * sim.GHz).
		Build(name + ".MemConn")
	memConn.PlugIn(bench.Reader.MemPort, 1)
	memConn.PlugIn(bench.Writer.MemPort, 1)
	memConn.PlugIn(bench.Chipset.TopPort, 1)

	streamConn := directconnection.MakeBuilder().
		WithEngine(engine).
		WithFreq(1 * sim.GHz).
		Build(name + ".StreamConn")
	streamConn.PlugIn(bench.Reader.StreamPort, 1)
	streamConn.PlugIn(bench.Writer.StreamPort, 1)

	irqConn := directconnection.MakeBuilder().
		WithEngine(engine).
		WithFreq(1 * sim.GHz).
		Build(name + ".IRQConn")
	irqConn.PlugIn(bench.Reader.IRQPort, 1)
	irqConn.PlugIn(bench.Writer.IRQPort, 1)
	irqConn.PlugIn(bench.MSI.IRQPort, 1)
}

func (b Builder) attachRecorder(bench *Bench) {
	if b.recorder == nil {
		return
	}

	logger := datarecording.NewCompletionLogger(b.recorder)
	bench.Reader.AcceptHook(logger)
	bench.Writer.AcceptHook(logger)
}

func (b Builder) attachMonitor(bench *Bench) {
	if b.monitor == nil {
		return
	}

	b.monitor.RegisterEngine(bench.Engine)
	b.monitor.RegisterComponent(bench.Chipset)
	b.monitor.RegisterComponent(bench.Reader)
	b.monitor.RegisterComponent(bench.Writer)
	b.monitor.RegisterComponent(bench.MSI)
	b.monitor.RegisterComponent(bench.Driver)
}
