package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// grubFixture is a boot information dump captured from GRUB running under qemu.
const grubFixture = "../../../multiboot/testdata/grub2-qemu.bin"

func executeCommandC(cmd *cobra.Command, args ...string) (c *cobra.Command, output string, err error) {
	// Set args to command
	cmd.SetArgs(args)
	// store old stdout
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	// Change stdout to our pipe
	os.Stdout = w
	// run the command
	c, err = cmd.ExecuteC()
	if err != nil {
		// Remember to restore stdout!
		os.Stdout = oldStdout
		return nil, "", err
	}
	err = w.Close()
	if err != nil {
		// Remember to restore stdout!
		os.Stdout = oldStdout
		return nil, "", err
	}
	// Read output from our pipe
	out, _ := io.ReadAll(r)
	// restore stdout
	os.Stdout = oldStdout

	return c, string(out), nil
}

// resetRootCmd drops the global viper state and registers fresh instances
// of every subcommand.
func resetRootCmd() {
	viper.Reset()
	rootCmd = NewRootCmd()
	rootCmd.SetErr(io.Discard)
	_ = NewDumpCmd(rootCmd)
	_ = NewBuildCmd(rootCmd)
	_ = NewVersionCmd(rootCmd)
}
