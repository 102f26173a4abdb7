// Command mb2dump inspects and builds Multiboot2 boot information blobs.
package main

import "mb2os/tools/mb2dump/cmd"

func main() {
	cmd.Execute()
}
