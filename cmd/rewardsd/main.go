package main

import (
	"fmt"
	"os"

	"eventpool/services/rewardsd"
)

func main() {
	if err := rewardsd.Main(); err != nil {
		fmt.Fprintf(os.Stderr, "rewardsd: %v\n", err)
		os.Exit(1)
	}
}
