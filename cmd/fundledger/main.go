package main

import (
	"os"

	"github.com/CreamyG31337/Portfolio-AI-sub000/cmd/fundledger/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
