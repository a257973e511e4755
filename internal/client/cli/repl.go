package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface is the minimal command surface the REPL dispatches to. The
// real App satisfies it; tests provide a stub.
type execIface interface {
	poll(ctx context.Context)
	hasSession() bool
	Open(ctx context.Context) error
	Opening(ctx context.Context, args []string) error
	Receive(ctx context.Context, args []string) error
	Sale(ctx context.Context, args []string) error
	Stock(ctx context.Context) error
	Close(ctx context.Context) error
	Status(ctx context.Context) error
}

// runREPL reads commands line by line and dispatches to a. Handler errors
// are printed, never fatal: a failed sale or a flaky network must not kill
// the terminal mid-shift. The loop exits on EOF or "exit"/"quit".
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner, out io.Writer) {
	for {
		// Surface the outcome of a background submission before the
		// next prompt.
		a.poll(ctx)

		fmt.Fprintf(out, "sl (%s)> ", statusFn())
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.hasSession() {
				fmt.Fprintln(out, "Available commands: opening <barcode> <qty>, receive <barcode> <qty>, sale <barcode> <qty>, stock, close, status, exit")
			} else {
				fmt.Fprintln(out, "Available commands: open, status, exit")
			}

		case "open":
			err = a.Open(ctx)

		case "opening":
			err = a.Opening(ctx, args)

		case "receive":
			err = a.Receive(ctx, args)

		case "sale":
			err = a.Sale(ctx, args)

		case "stock":
			err = a.Stock(ctx)

		case "close":
			err = a.Close(ctx)

		case "status":
			err = a.Status(ctx)

		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return

		default:
			fmt.Fprintln(out, "Unknown command:", cmd)
		}

		if err != nil {
			fmt.Fprintln(out, "Error:", err)
		}
	}
}
