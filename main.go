package main

import "github.com/edgeflare/smt/cmd/smt"

func main() {
	smt.Main()
}
