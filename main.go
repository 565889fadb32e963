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
			fmt.Fprintln(os.Stderr, "usage: staffplan setup [--force]")
			fmt.Fprintln(os.Stderr, "       staffplan run")
			fmt.Fprintln(os.Stderr, "       staffplan import <file> --location EP|NL")
			fmt.Fprintln(os.Stderr, "       staffplan export --location EP|NL [--out dir]")
			fmt.Fprintln(os.Stderr, "       staffplan triggers --location EP|NL [--anchor YYYY-MM] [--json]")
			os.Exit(2)
		}
		log.Fatal(err)
	}
}
