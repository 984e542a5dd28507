package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dnsge/diskplot/cli"
)

func main() {
	parentCtx, cancel := context.WithCancel(context.Background())

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	os.Exit(cli.Main(parentCtx, os.Args))
}
