// cmd/storefront/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"storefront/internal/config"
	"storefront/internal/storefront"
)

type command struct {
	usage string
	run   func(c *cli, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"products":           {"[-search s] [-category c] [-sort default|price-asc|price-desc|name-asc|name-desc]", (*cli).products},
	"product":            {"<id>", (*cli).product},
	"login":              {"-email e -password p", (*cli).login},
	"register":           {"-email e -password p [-first f] [-last l]", (*cli).register},
	"logout":             {"", (*cli).logout},
	"whoami":             {"", (*cli).whoami},
	"cart":               {"", (*cli).showCart},
	"cart-add":           {"-id id [-qty n]", (*cli).cartAdd},
	"cart-set":           {"-id id -qty n", (*cli).cartSet},
	"cart-remove":        {"-id id", (*cli).cartRemove},
	"checkout":           {"-address a", (*cli).checkout},
	"orders":             {"[-search s] [-status st]", (*cli).orders},
	"admin-add":          {"-name n -price p [-category c] [-stock n] [-description d] [-image url] [-featured]", (*cli).adminAdd},
	"admin-update":       {"-id id [-name n] [-price p] [-category c] [-stock n] [-description d] [-image url] [-featured]", (*cli).adminUpdate},
	"admin-delete":       {"-id id", (*cli).adminDelete},
	"admin-order-status": {"-id id -status st", (*cli).adminOrderStatus},
	"dashboard":          {"", (*cli).dashboard},
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app, err := storefront.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()
	err = run(ctx, app, os.Stdout, os.Args[1:])
	if cerr := app.Close(ctx); cerr != nil {
		app.Logger.WithError(cerr).Warn("shutdown was not clean")
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run dispatches args[0] against a started app.
func run(ctx context.Context, app *storefront.App, out io.Writer, args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" {
		usage(out)
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q, run 'storefront help'", args[0])
	}

	app.Start(ctx)
	c := &cli{app: app, out: out}
	return cmd.run(c, ctx, args[1:])
}

func usage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "usage: storefront <command> [flags]")
	fmt.Fprintln(w)
	for _, name := range names {
		fmt.Fprintf(w, "  %-20s %s\n", name, strings.TrimSpace(commands[name].usage))
	}
}
