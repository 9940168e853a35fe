package main

import "praxsync/cmd/client/cmd"

func main() {
	cmd.Execute()
}
