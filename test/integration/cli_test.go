//go:build integration

package integration

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
	"github.com/onsi/gomega/gexec"

	"github.com/eliteGoblin/focusd/wallmon/internal/infra"
)

const cliConfig = `
[schedule]
interval = "2s"
cycle_timeout = "1500ms"

[capture]
document = %q
chrome_path = %q
ready_timeout = "1s"
settle_delay = "0s"

[wallpaper]
command = ["true"]

[supervisor]
restart = "on-failure"
stop_timeout = "5s"

[paths]
data_dir = %q
`

var _ = Describe("wallmon CLI", func() {
	var (
		tmpDir     string
		configPath string
		paths      infra.Paths
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "wallmon-cli-*")
		Expect(err).NotTo(HaveOccurred())

		paths = infra.ResolvePaths(filepath.Join(tmpDir, "data"), "")
		document := filepath.Join(tmpDir, "page.html")
		Expect(os.WriteFile(document, []byte(`<div id="arabic">text</div>`), 0644)).To(Succeed())

		configPath = filepath.Join(tmpDir, "config.toml")
		content := fmt.Sprintf(cliConfig, document, filepath.Join(tmpDir, "no-such-chrome"), paths.DataDir)
		Expect(os.WriteFile(configPath, []byte(content), 0644)).To(Succeed())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	start := func(args ...string) *gexec.Session {
		cmd := exec.Command(wallmonBin, append(args, "--config", configPath)...)
		session, err := gexec.Start(cmd, GinkgoWriter, GinkgoWriter)
		Expect(err).NotTo(HaveOccurred())
		return session
	}

	readFile := func(path string) func() string {
		return func() string {
			data, _ := os.ReadFile(path)
			return string(data)
		}
	}

	It("prints version information as JSON", func() {
		session := start("version", "--json")
		Eventually(session, 10*time.Second).Should(gexec.Exit(0))
		Expect(session.Out).To(gbytes.Say(`"version"`))
	})

	It("reports NOT RUNNING when no service is registered", func() {
		session := start("status")
		Eventually(session, 10*time.Second).Should(gexec.Exit(0))
		Expect(string(session.Out.Contents())).To(ContainSubstring("NOT RUNNING"))
	})

	It("supervises a failing worker and shuts down cleanly on interrupt", func() {
		session := start("run")
		logPath := paths.DatedLogPath(time.Now())

		Eventually(readFile(logPath), 10*time.Second).Should(ContainSubstring("starting wallpaper service"))
		Eventually(readFile(logPath), 10*time.Second).Should(ContainSubstring("worker started (pid"))

		// The browser cannot start, so every cycle fails with a render error
		// that reaches both the error log and the general log.
		Eventually(readFile(paths.ErrorLogPath()), 15*time.Second).Should(ContainSubstring(`"kind":"render"`))
		Eventually(readFile(logPath), 5*time.Second).Should(ContainSubstring("cycle failed"))

		status := start("status")
		Eventually(status, 10*time.Second).Should(gexec.Exit(0))
		out := string(status.Out.Contents())
		Expect(out).To(ContainSubstring("RUNNING"))
		Expect(out).NotTo(ContainSubstring("NOT RUNNING"))

		session.Interrupt()
		Eventually(session, 15*time.Second).Should(gexec.Exit(0))

		log := readFile(logPath)()
		Expect(log).To(ContainSubstring("worker exited with code"))
		Expect(log).To(ContainSubstring("supervisor stopped"))
		Expect(log).NotTo(ContainSubstring("restarting worker"))

		_, err := os.Stat(paths.RegistryPath())
		Expect(os.IsNotExist(err)).To(BeTrue(), "registry should be cleared on exit")
	})

	It("runs a single capture with the capture command", func() {
		session := start("capture")
		Eventually(session, 20*time.Second).Should(gexec.Exit())
		Expect(session.ExitCode()).NotTo(Equal(0))
		Expect(readFile(paths.ErrorLogPath())()).To(ContainSubstring(`"kind":"render"`))
	})
})
