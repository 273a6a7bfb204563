package hotswap_test

import (
	"context"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/otbridge/internal/bridge"
	"github.com/san-kum/otbridge/internal/hardware"
	"github.com/san-kum/otbridge/internal/hotswap"
	"github.com/san-kum/otbridge/internal/loop"
	"github.com/san-kum/otbridge/internal/transport"
)

var simulated = map[hardware.Mount]hardware.Instrument{
	hardware.MountLeft: {Name: "p300_single_v1", ID: "P3HSV1-SIM"},
}

var _ = Describe("Adapter", func() {
	var (
		l       *loop.Loop
		fw      *firmware
		dialer  transport.Dialer
		adapter *hotswap.Adapter
		extra   []hotswap.Option
		ctx     context.Context
	)

	call := func(fn func(co loop.Co) error) error {
		_, err := l.Call(ctx, func(co loop.Co) (any, error) {
			return nil, fn(co)
		})
		return err
	}

	// holdLoop blocks the loop until the returned func is called, so work
	// submitted meanwhile stays queued.
	holdLoop := func() (unblock func()) {
		gate := make(chan struct{})
		held := make(chan struct{})
		_, err := l.Submit(ctx, func(co loop.Co) (any, error) {
			close(held)
			<-gate
			return nil, nil
		})
		Expect(err).NotTo(HaveOccurred())
		Eventually(held).Should(BeClosed())
		return func() { close(gate) }
	}

	BeforeEach(func() {
		ctx = context.Background()
		fw = newFirmware()
		dialer = fw.dialer()
		extra = nil
		l = loop.New(loop.WithName("hotswap"))
		Expect(l.Start()).To(Succeed())
		DeferCleanup(l.Join)
	})

	JustBeforeEach(func() {
		var err error
		opts := append([]hotswap.Option{
			hotswap.WithDialer(dialer),
			hotswap.WithLockDir(GinkgoT().TempDir()),
			hotswap.WithSimulatedInstruments(simulated),
		}, extra...)
		adapter, err = hotswap.New(l, opts...)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("a new adapter", func() {
		It("holds a simulator bound to the loop", func() {
			Expect(adapter.IsConnected()).To(BeFalse())
			Expect(adapter.Current().IsSimulator()).To(BeTrue())
			Expect(adapter.Current().Loop()).To(BeIdenticalTo(l))
			Expect(adapter.Target()).To(BeIdenticalTo(adapter.Current()))
		})

		It("describes the simulated pipettes", func() {
			p := adapter.AttachedPipettes()
			Expect(p).To(HaveLen(2))

			left := p["left"]
			Expect(left.Model).To(Equal("p300_single_v1"))
			Expect(left.ID).To(Equal("P3HSV1-SIM"))
			Expect(left.MountAxis).To(Equal("z"))
			Expect(left.PlungerAxis).To(Equal("b"))
			Expect(left.TipLength).NotTo(BeNil())
			Expect(*left.TipLength).To(BeNumerically("~", 51.7, 1e-9))

			right := p["right"]
			Expect(right.Model).To(BeEmpty())
			Expect(right.MountAxis).To(Equal("a"))
			Expect(right.PlungerAxis).To(Equal("c"))
			Expect(right.TipLength).To(BeNil())
		})
	})

	Describe("Connect", func() {
		It("swaps in the controller after the handshake", func() {
			sim := adapter.Current()

			Expect(adapter.Connect(ctx, "fake://robot", false)).To(Succeed())

			Expect(adapter.IsConnected()).To(BeTrue())
			Expect(adapter.Current().Port()).To(Equal("fake://robot"))
			Expect(adapter.Current().Loop()).To(BeIdenticalTo(l))
			Expect(sim.Retired()).To(BeTrue())
			Expect(sim.Closed()).To(BeTrue())

			left := adapter.AttachedPipettes()["left"]
			Expect(left.Model).To(Equal("p10_single_v1"))
			Expect(*left.TipLength).To(BeNumerically("~", 33.0, 1e-9))
			Expect(adapter.AttachedPipettes()["right"].TipLength).To(BeNil())
		})

		It("copies the configuration of the held API", func() {
			before := adapter.Current().Config()
			Expect(adapter.Connect(ctx, "fake://robot", false)).To(Succeed())
			Expect(adapter.Current().Config()).To(Equal(before))
		})

		Context("when the firmware never identifies itself", func() {
			BeforeEach(func() {
				fw.mute = true
			})

			It("keeps the simulator and reports a handshake error", func() {
				sim := adapter.Current()

				err := adapter.Connect(ctx, "fake://robot", false)
				var he *hardware.HandshakeError
				Expect(err).To(BeAssignableToTypeOf(he))
				Expect(adapter.IsConnected()).To(BeFalse())
				Expect(adapter.Current()).To(BeIdenticalTo(sim))
				Expect(sim.Retired()).To(BeFalse())

				Expect(call(func(co loop.Co) error { return sim.Home(co) })).To(Succeed())
			})
		})

		Context("when an instrument cannot be identified", func() {
			BeforeEach(func() {
				fw.models["L"] = "p9000_mystery"
			})

			It("fails before swapping", func() {
				err := adapter.Connect(ctx, "fake://robot", false)
				Expect(err).To(MatchError(hardware.ErrUnknownModel))
				Expect(adapter.IsConnected()).To(BeFalse())
			})
		})

		Context("when the port cannot be opened", func() {
			BeforeEach(func() {
				dialer = deadDialer()
			})

			It("wraps the cause", func() {
				err := adapter.Connect(ctx, "fake://robot", false)
				Expect(err).To(MatchError(errNoDevice))
				var he *hardware.HandshakeError
				Expect(err).To(BeAssignableToTypeOf(he))
				Expect(adapter.IsConnected()).To(BeFalse())
			})
		})

		It("rejects an empty port", func() {
			Expect(adapter.Connect(ctx, "", false)).To(MatchError(hardware.ErrInvalidConfig))
		})
	})

	Describe("Disconnect", func() {
		It("falls back to a simulator", func() {
			Expect(adapter.Connect(ctx, "fake://robot", false)).To(Succeed())
			hw := adapter.Current()

			adapter.Disconnect()

			Expect(adapter.IsConnected()).To(BeFalse())
			Expect(adapter.Current().Loop()).To(BeIdenticalTo(l))
			Expect(hw.Retired()).To(BeTrue())
			Expect(adapter.AttachedPipettes()["left"].Model).To(Equal("p300_single_v1"))
		})

		It("always succeeds on a simulator", func() {
			adapter.Disconnect()
			adapter.Disconnect()
			Expect(adapter.IsConnected()).To(BeFalse())
		})
	})

	Describe("DisengageAxes", func() {
		JustBeforeEach(func() {
			Expect(call(func(co loop.Co) error { return adapter.Current().Home(co) })).To(Succeed())
			Expect(adapter.Current().EngagedAxes()).To(HaveLen(hardware.NumAxes))
		})

		It("resolves names ignoring case", func() {
			Expect(call(func(co loop.Co) error {
				return adapter.DisengageAxes(co, []string{"x", "Y"})
			})).To(Succeed())
			Expect(adapter.Current().EngagedAxes()).To(Equal([]hardware.Axis{
				hardware.AxisZ, hardware.AxisA, hardware.AxisB, hardware.AxisC,
			}))
		})

		It("rejects unknown names without touching the robot", func() {
			err := call(func(co loop.Co) error {
				return adapter.DisengageAxes(co, []string{"x", "bogus"})
			})
			var ie *hotswap.InvalidAxisNameError
			Expect(err).To(BeAssignableToTypeOf(ie))
			Expect(err).To(MatchError(hardware.ErrInvalidAxis))
			Expect(adapter.Current().EngagedAxes()).To(HaveLen(hardware.NumAxes))
		})

		It("issues a single disengage to the controller", func() {
			Expect(adapter.Connect(ctx, "fake://robot", false)).To(Succeed())
			Expect(call(func(co loop.Co) error {
				return adapter.DisengageAxes(co, []string{"b", "C"})
			})).To(Succeed())
			Expect(fw.count("M18")).To(Equal(1))

			Expect(call(func(co loop.Co) error {
				return adapter.DisengageAxes(co, []string{"nope"})
			})).NotTo(Succeed())
			Expect(fw.count("M18")).To(Equal(1))
		})
	})

	Describe("Stop", func() {
		BeforeEach(func() {
			cfg := hardware.DefaultConfig()
			cfg.Gantry.RealTime = true
			extra = append(extra, hotswap.WithConfig(cfg))
		})

		It("halts a move in progress", func() {
			moving := make(chan struct{})
			var once atomic.Bool
			cancel := adapter.Observe(func(hardware.Sample) {
				if once.CompareAndSwap(false, true) {
					close(moving)
				}
			})
			defer cancel()

			fut, err := l.Submit(ctx, func(co loop.Co) (any, error) {
				return nil, adapter.Current().MoveTo(co, hardware.MountLeft, hardware.Point{X: 10, Y: 10, Z: 10})
			})
			Expect(err).NotTo(HaveOccurred())

			Eventually(moving).Should(BeClosed())
			Expect(adapter.Stop(ctx)).To(Succeed())
			Expect(adapter.Current().Config().Gantry.RealTime).To(BeTrue())

			_, err = fut.Wait(ctx)
			Expect(err).To(MatchError(hardware.ErrHalted))
		})

		It("halts the API that was current when it was queued", func() {
			sim := adapter.Current()
			unblock := holdLoop()

			done := make(chan error, 1)
			go func() { done <- adapter.Stop(ctx) }()
			Consistently(done, "20ms").ShouldNot(Receive())

			adapter.Disconnect()
			Expect(sim.Retired()).To(BeTrue())
			Expect(sim.Closed()).To(BeFalse())

			unblock()
			Eventually(done).Should(Receive(BeNil()))
			Eventually(sim.Closed).Should(BeTrue())
		})
	})

	Describe("Observe", func() {
		It("keeps observers across swaps", func() {
			var samples atomic.Int32
			cancel := adapter.Observe(func(hardware.Sample) { samples.Add(1) })
			defer cancel()

			adapter.Disconnect()
			Expect(call(func(co loop.Co) error {
				return adapter.Current().MoveRel(co, hardware.MountLeft, hardware.Point{X: -5})
			})).To(Succeed())
			Expect(samples.Load()).To(BeNumerically(">", 0))
		})
	})

	Describe("behind a bridge", func() {
		var b *bridge.Bridge

		JustBeforeEach(func() {
			var err error
			b, err = bridge.New(adapter, bridge.WithLoop(l))
			Expect(err).NotTo(HaveOccurred())
		})

		It("forwards unknown members to the held API", func() {
			name, err := b.Attr("Name")
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("simulator"))

			_, err = b.Call(ctx, "home", "x", "y")
			Expect(err).NotTo(HaveOccurred())
			Expect(adapter.Current().EngagedAxes()).To(Equal([]hardware.Axis{hardware.AxisX, hardware.AxisY}))
		})

		It("prefers the adapter's own members", func() {
			_, err := b.Call(ctx, "disengage_axes", []any{"X"})
			Expect(err).NotTo(HaveOccurred())

			out, err := b.Call(ctx, "is_connected")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal([]any{false}))
		})

		It("finishes a call queued before a swap on the old API", func() {
			sim := adapter.Current()
			home, err := b.Member("home")
			Expect(err).NotTo(HaveOccurred())
			unblock := holdLoop()

			done := make(chan error, 1)
			go func() {
				_, err := home.Call(ctx)
				done <- err
			}()
			Consistently(done, "20ms").ShouldNot(Receive())

			adapter.Disconnect()
			Expect(adapter.Current()).NotTo(BeIdenticalTo(sim))
			Expect(sim.Closed()).To(BeFalse())

			unblock()
			Eventually(done).Should(Receive(BeNil()))
			Expect(sim.EngagedAxes()).To(HaveLen(hardware.NumAxes))
			Expect(adapter.Current().EngagedAxes()).To(BeEmpty())
			Eventually(sim.Closed).Should(BeTrue())
		})

		It("follows the swap", func() {
			_, err := b.Call(ctx, "connect", "fake://robot", false)
			Expect(err).NotTo(HaveOccurred())

			name, err := b.Attr("Name")
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("controller:fake://robot"))
		})
	})
})
