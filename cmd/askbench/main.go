// cmd/askbench/main.go
package main

import (
	cmd "github.com/askbench/askbench/internal/commands"
)

// main starts the askbench CLI application by delegating to the
// cobra root command defined in the askbench package. It does not
// take any arguments and does not return a value.
func main() {
	cmd.Execute()
}
