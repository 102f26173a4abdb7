package cmd

import (
	g "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"mb2os/internal/version"
)

var _ = g.Describe("Version", g.Label("version", "cmd"), func() {
	g.BeforeEach(func() {
		resetRootCmd()
	})
	g.It("Reports the version", func() {
		_, output, err := executeCommandC(rootCmd, "version")
		Expect(err).To(BeNil())
		v := version.Get().Version
		Expect(output).To(ContainSubstring(v))
	})
	g.It("Reports the version in long format", g.Label("flags"), func() {
		_, output, err := executeCommandC(rootCmd, "version", "--long")
		Expect(err).To(BeNil())
		Expect(output).To(ContainSubstring(version.Get().Version))
		Expect(output).To(ContainSubstring("GitCommit"))
		Expect(output).To(ContainSubstring("GoVersion"))
	})
})
