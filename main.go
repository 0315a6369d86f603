package main

import "github.com/olowe/batchmint-4337/cmd"

func main() {
	cmd.Execute()
}
