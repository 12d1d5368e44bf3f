package main

import "github.com/rainlanguage/orderbook-trades/cmd"

func main() {
	cmd.Execute()
}
