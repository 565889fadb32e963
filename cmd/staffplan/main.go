package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/phillip-england/staffplan/internal/staffplancli"
)

func main() {
	if err := staffplancli.Execute(os.Args[1:]); err != nil {
		if errors.Is(err, staffplancli.ErrUsage) {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr)
			staffplancli.PrintUsage(os.Stderr)
			os.Exit(2)
		}
		log.Fatal(err)
	}
}
