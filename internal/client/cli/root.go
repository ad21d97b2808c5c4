package cli

import (
	"bufio"
	"context"
	"fmt"
)

func (a *App) getStatus() string {
	s := a.config.UserID + "/" + a.config.SessionID
	if m := a.mode(); m != "" {
		s += " " + string(m)
	}
	if a.service.Active() {
		s += " busy"
	}
	return fmt.Sprintf("(%s)", s)
}

// Root runs the REPL on the app's input until the user exits.
func (a *App) Root(ctx context.Context) {
	printlnFn("Welcome to assetsync (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}
