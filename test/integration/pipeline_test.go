//go:build integration

package integration

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/wallmon/internal/daemon"
	"github.com/eliteGoblin/focusd/wallmon/internal/domain"
	"github.com/eliteGoblin/focusd/wallmon/internal/infra"
	"github.com/eliteGoblin/focusd/wallmon/internal/usecase"
	"github.com/eliteGoblin/focusd/wallmon/test/fixtures"
)

var _ = Describe("Capture schedule", func() {
	var (
		tmpDir   string
		paths    infra.Paths
		renderer *fixtures.FakePageRenderer
		applier  *fixtures.RecordingApplier
		errorLog *infra.ErrorLog
		worker   *daemon.Worker
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "wallmon-integration-*")
		Expect(err).NotTo(HaveOccurred())

		paths = infra.ResolvePaths(tmpDir, "")
		Expect(paths.Ensure()).To(Succeed())

		document := filepath.Join(tmpDir, "page.html")
		Expect(os.WriteFile(document, []byte(`<div id="arabic">text</div>`), 0644)).To(Succeed())

		renderer = fixtures.NewFakePageRenderer(2 * time.Second)
		applier = &fixtures.RecordingApplier{}
		errorLog, err = infra.NewErrorLog(paths.ErrorLogPath())
		Expect(err).NotTo(HaveOccurred())

		logger := zap.NewNop()
		pipeline := usecase.NewCapturePipeline(usecase.CaptureConfig{
			Width:         1920,
			Height:        1080,
			ReadySelector: "#arabic",
			ReadyTimeout:  10 * time.Second,
			SettleDelay:   1 * time.Second,
			ArtifactPath:  paths.ArtifactPath(),
		}, renderer, infra.NewFileSystemManager(), logger)
		runner := usecase.NewCycleRunner(pipeline, applier, document, domain.ScopeAll, logger)

		sched, err := daemon.NewSchedule(5*time.Second, "", time.Now())
		Expect(err).NotTo(HaveOccurred())
		worker = daemon.NewWorker(daemon.WorkerConfig{
			Schedule:     sched,
			CycleTimeout: 4 * time.Second,
		}, runner, errorLog, logger)
	})

	AfterEach(func() {
		_ = errorLog.Close()
		os.RemoveAll(tmpDir)
	})

	It("completes two cycles in 12 seconds with no errors", func() {
		// Stop the way a signal does: plain cancellation after 12s.
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		time.AfterFunc(12*time.Second, cancel)

		Expect(worker.Run(ctx)).To(Succeed())

		// Cycles start at 0s, 5s and 10s; each takes 3s, so the third is cut off.
		Expect(applier.Applied()).To(Equal([]string{paths.ArtifactPath(), paths.ArtifactPath()}))
		Expect(worker.Cycles()).To(BeEquivalentTo(3))

		opened, closed := renderer.Sessions()
		Expect(closed).To(Equal(opened), "every session must be released")

		readyAt, shotAt := renderer.Timings()
		Expect(len(shotAt)).To(BeNumerically(">=", 2))
		for i := range shotAt {
			Expect(shotAt[i].Sub(readyAt[i])).To(BeNumerically(">=", time.Second))
		}

		data, err := os.ReadFile(paths.ArtifactPath())
		Expect(err).NotTo(HaveOccurred())
		_, err = png.Decode(bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())

		errors, err := os.ReadFile(paths.ErrorLogPath())
		Expect(err).NotTo(HaveOccurred())
		Expect(bytes.TrimSpace(errors)).To(BeEmpty())
	})

	It("keeps the previous artifact and records an error when apply fails", func() {
		applier.Err = domain.ErrApply

		cycle, err := worker.RunOnce(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(cycle.Outcome).To(Equal(domain.OutcomeFailure))
		Expect(cycle.Err).To(MatchError(domain.ErrApply))

		Expect(errorLog.Close()).To(Succeed())
		content, err := os.ReadFile(paths.ErrorLogPath())
		Expect(err).NotTo(HaveOccurred())
		Expect(string(content)).To(ContainSubstring(`"kind":"apply"`))
		Expect(string(content)).To(ContainSubstring(cycle.ID))
	})
})
