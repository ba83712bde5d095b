package main

import "mspro-labs/refscrape/cmd"

func main() {
	cmd.Execute()
}
