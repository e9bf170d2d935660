package main

import "github.com/mselser95/basis-arb/cmd"

func main() {
	cmd.Execute()
}
