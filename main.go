// The main package for the paperboy executable.
package main

import (
	"github.com/paperboydev/paperboy/cmd"
)

func main() {
	cmd.Execute()
}
