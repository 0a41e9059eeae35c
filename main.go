package main

import (
	"log"

	"narou2epub/cmd"
)

func main() {
	log.SetFlags(0)
	if err := cmd.RootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
