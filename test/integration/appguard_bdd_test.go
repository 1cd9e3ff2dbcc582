//go:build integration

package integration

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_guard/internal/daemon"
	"github.com/eliteGoblin/focusd/app_guard/internal/domain"
	"github.com/eliteGoblin/focusd/app_guard/internal/infra"
	"github.com/eliteGoblin/focusd/app_guard/internal/policy"
	"github.com/eliteGoblin/focusd/app_guard/internal/usecase"
	"github.com/eliteGoblin/focusd/app_guard/test/fixtures"
)

const gamblingApp = "com.gambling.app"

var _ = Describe("AppGuard daemon", func() {
	var (
		dataDir string
		store   *infra.SQLPolicyStore
		desktop *fixtures.FakeDesktop
		cancel  context.CancelFunc
		done    chan error
		sys     *usecase.Subsystem
	)

	// startDaemon runs a daemon against the shared data dir, as the hidden
	// daemon/restart/boot commands do.
	startDaemon := func(reason domain.RestartReason) {
		sys = usecase.NewSubsystem(usecase.Deps{
			Store:      store,
			Query:      desktop,
			Suppressor: desktop,
			Notifier:   desktop,
			Hold:       desktop,
			Deferred:   desktop,
			Capability: desktop,
			Warner:     desktop,
			Relauncher: desktop,
		}, usecase.LoopConfig{
			PollInterval: 20 * time.Millisecond,
			QueryTimeout: 20 * time.Millisecond,
			RestartDelay: usecase.DefaultRestartDelay,
		}, zap.NewNop())

		d := daemon.New(daemon.Config{
			HeartbeatInterval:       50 * time.Millisecond,
			CapabilityCheckInterval: 20 * time.Millisecond,
			PolicySyncInterval:      20 * time.Millisecond,
		}, sys, store, infra.NewProcessManager(), "integration", zap.NewNop())

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan error, 1)
		go func() { done <- d.Run(ctx, reason) }()
	}

	stopDaemon := func() {
		if cancel == nil {
			return
		}
		cancel()
		Eventually(done, time.Second).Should(Receive(BeNil()))
		cancel = nil
	}

	// openCLIStore opens a second handle on the same database, as a CLI
	// invocation in another process would.
	openCLIStore := func() *infra.SQLPolicyStore {
		cli, err := infra.OpenPolicyStore(dataDir, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(cli.Close)
		return cli
	}

	publishedState := func() domain.EnforcementState {
		status, err := store.LoadStatus()
		if err != nil || status == nil {
			return ""
		}
		return status.Enforcement
	}

	BeforeEach(func() {
		var err error
		dataDir, err = os.MkdirTemp("", "appguard-integration-*")
		Expect(err).NotTo(HaveOccurred())

		store, err = infra.OpenPolicyStore(dataDir, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		desktop = fixtures.NewFakeDesktop()
	})

	AfterEach(func() {
		stopDaemon()
		store.Close()
		os.RemoveAll(dataDir)
	})

	Describe("blocking a foreground app", func() {
		Context("when the app is blocked and blocking is enabled", func() {
			It("should suppress it and leave other apps alone", func() {
				Expect(store.SetBlocked(gamblingApp, true)).To(BeTrue())
				Expect(store.SetBlockingEnabled(true)).To(BeTrue())

				startDaemon("")
				Eventually(publishedState, time.Second).Should(Equal(domain.StateEnforcing))

				desktop.SetForeground("com.apple.Safari")
				Consistently(desktop.Suppressed, 100*time.Millisecond).Should(BeEmpty())

				desktop.SetForeground(gamblingApp)
				Eventually(desktop.Suppressed, time.Second).Should(ContainElement(gamblingApp))
				Expect(desktop.Summaries()).To(ContainElement("Monitoring and blocking apps"))
				Expect(desktop.IsHeld()).To(BeTrue())
			})
		})

		Context("when a preset is applied from the CLI", func() {
			It("should block every identifier of the preset", func() {
				cli := openCLIStore()
				preset, err := policy.NewRegistry().Get("steam")
				Expect(err).NotTo(HaveOccurred())
				Expect(policy.Apply(preset, cli)).To(BeEmpty())
				Expect(cli.SetBlockingEnabled(true)).To(BeTrue())

				startDaemon("")
				desktop.SetForeground("steam")
				Eventually(desktop.Suppressed, time.Second).Should(ContainElement("steam"))
			})
		})
	})

	Describe("toggling blocking from another process", func() {
		It("should move the running daemon between idle and enforcing", func() {
			Expect(store.SetBlocked(gamblingApp, true)).To(BeTrue())
			startDaemon("")
			Eventually(publishedState, time.Second).Should(Equal(domain.StateIdle))
			Expect(desktop.IsHeld()).To(BeFalse())

			cli := openCLIStore()
			Expect(cli.SetBlockingEnabled(true)).To(BeTrue())
			Eventually(publishedState, time.Second).Should(Equal(domain.StateEnforcing))

			Expect(cli.SetBlockingEnabled(false)).To(BeTrue())
			Eventually(publishedState, time.Second).Should(Equal(domain.StateIdle))

			desktop.SetForeground(gamblingApp)
			Consistently(desktop.Suppressed, 100*time.Millisecond).Should(BeEmpty())
		})
	})

	Describe("stopping the daemon", func() {
		It("should schedule a restart that brings enforcement back", func() {
			Expect(store.SetBlocked(gamblingApp, true)).To(BeTrue())
			Expect(store.SetBlockingEnabled(true)).To(BeTrue())
			startDaemon("")
			Eventually(publishedState, time.Second).Should(Equal(domain.StateEnforcing))

			stopDaemon()
			Expect(publishedState()).To(Equal(domain.StateStopped))

			tickets := desktop.Tickets()
			Expect(tickets).To(HaveLen(1))
			Expect(tickets[0].Reason).To(Equal(domain.ReasonKilled))
			Expect(tickets[0].Delay).To(Equal(5 * time.Second))

			status, err := store.LoadStatus()
			Expect(err).NotTo(HaveOccurred())
			Expect(daemon.IsAlive(status, infra.NewProcessManager(), time.Now())).To(BeFalse())

			// The ticket fires.
			startDaemon(tickets[0].Reason)
			Eventually(publishedState, time.Second).Should(Equal(domain.StateEnforcing))

			status, err = store.LoadStatus()
			Expect(err).NotTo(HaveOccurred())
			Expect(daemon.IsAlive(status, infra.NewProcessManager(), time.Now())).To(BeTrue())

			desktop.SetForeground(gamblingApp)
			Eventually(desktop.Suppressed, time.Second).Should(ContainElement(gamblingApp))
		})

		It("should come back after boot", func() {
			Expect(store.SetBlocked(gamblingApp, true)).To(BeTrue())
			Expect(store.SetBlockingEnabled(true)).To(BeTrue())

			startDaemon(domain.ReasonBootCompleted)
			Eventually(publishedState, time.Second).Should(Equal(domain.StateEnforcing))
		})
	})

	Describe("removing the autostart capability", func() {
		It("should warn, attempt to restore it and keep enforcing degraded", func() {
			Expect(store.SetBlocked(gamblingApp, true)).To(BeTrue())
			Expect(store.SetBlockingEnabled(true)).To(BeTrue())
			startDaemon("")
			Eventually(publishedState, time.Second).Should(Equal(domain.StateEnforcing))

			desktop.SetGranted(false)

			Eventually(func() domain.CapabilityState {
				status, _ := store.LoadStatus()
				if status == nil {
					return ""
				}
				return status.Capability
			}, time.Second).Should(Equal(domain.CapabilityRevoked))

			Expect(desktop.Warnings()).To(ContainElement(usecase.WarningTitle))
			Expect(desktop.Relaunches()).To(BeNumerically(">=", 1))
			Expect(sys.Loop.Degraded()).To(BeTrue())

			desktop.SetForeground(gamblingApp)
			Eventually(desktop.Suppressed, time.Second).Should(ContainElement(gamblingApp))
		})
	})

	Describe("policy persistence", func() {
		It("should keep the block list across restarts of the store", func() {
			Expect(store.SetBlocked(gamblingApp, true)).To(BeTrue())
			Expect(store.SetBlockingEnabled(true)).To(BeTrue())
			Expect(store.Close()).To(Succeed())

			var err error
			store, err = infra.OpenPolicyStore(dataDir, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())

			Expect(store.IsBlocked(gamblingApp)).To(BeTrue())
			Expect(store.BlockingEnabled()).To(BeTrue())
			Expect(store.ListBlocked()).To(ConsistOf(gamblingApp))
		})
	})
})
