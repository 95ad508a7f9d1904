// Command binnctl converts, inspects and stores BINN documents.
package main

import "github.com/strand-protocol/binn/cmd/binnctl/cmd"

func main() {
	cmd.Execute()
}
