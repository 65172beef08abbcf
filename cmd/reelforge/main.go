// Command reelforge drives content production from the terminal: full video
// runs, one-off image and narration generation, strategy planning, and
// posting to Reddit and Twitter.
package main

import (
	"fmt"
	"os"

	"reelforge/cmd/reelforge/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
