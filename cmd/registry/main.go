// Command registry inspects and maintains a registry cache database.
package main

import "github.com/mesh-intelligence/registry/internal/cli"

func main() {
	cli.Execute()
}
