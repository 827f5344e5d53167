// The main package for the sitewatch executable.
package main

import "github.com/sitewatch/sitewatch/cmd"

func main() {
	cmd.Execute()
}
