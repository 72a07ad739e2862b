// Command params manages typed, validated configuration parameters.
package main

import "github.com/mesh-intelligence/params/internal/cli"

func main() {
	cli.Execute()
}
