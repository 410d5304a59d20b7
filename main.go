package main

import "github/chapool/twap-rebalancer/cmd"

func main() {
	cmd.Execute()
}
