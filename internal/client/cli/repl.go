package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Add(ctx context.Context, args []string) error
	Queue(ctx context.Context, args []string) error
	List(ctx context.Context) error
	Assets(ctx context.Context) error
	Progress(ctx context.Context) error
	Refresh(ctx context.Context, args []string) error
	Watch(ctx context.Context, args []string) error
	Reset(ctx context.Context) error
}

const helpText = `Available commands:
  add [-caption text] [-tx id] [-nocuts] [-size px] <path>...   upload files in parallel
  queue [-caption text] [-tx id] [-nocuts] [-size px] <path>... upload files one at a time
  (l)ist                list stored upload requests
  assets                list finished assets
  (p)rogress            show progress of this session's uploads
  refresh <id>          fetch an asset from the backend
  watch <dir>           queue files dropped into dir
  reset                 clear this session's in-memory state
  exit | quit           leave the program`

// runREPL reads commands line by line and dispatches them to a until EOF,
// "exit" or "quit". Handler errors are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("assetsync %s> ", statusFn()))
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
			printlnFn(helpText)

		case "add":
			err = a.Add(ctx, args)

		case "queue":
			err = a.Queue(ctx, args)

		case "l", "list":
			err = a.List(ctx)

		case "assets":
			err = a.Assets(ctx)

		case "p", "progress":
			err = a.Progress(ctx)

		case "refresh":
			if len(args) != 1 {
				printlnFn("Usage: refresh <id>")
				continue
			}
			err = a.Refresh(ctx, args)

		case "watch":
			if len(args) != 1 {
				printlnFn("Usage: watch <dir>")
				continue
			}
			err = a.Watch(ctx, args)

		case "reset":
			err = a.Reset(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
