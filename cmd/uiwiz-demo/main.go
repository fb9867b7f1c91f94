// Uiwiz-demo runs a small counter UI on the terminal backend, wiring up the
// whole engine: hook state, keyed diffing, styling with hot-reloaded themes,
// pass recording and the introspection server.
//
// Each line read from stdin clicks the increment button; "d" toggles dark
// mode; "q" quits.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"src.uiwiz.dev/pkg/history"
	"src.uiwiz.dev/pkg/hook"
	"src.uiwiz.dev/pkg/inspect"
	"src.uiwiz.dev/pkg/logutil"
	"src.uiwiz.dev/pkg/style"
	"src.uiwiz.dev/pkg/termui"
	"src.uiwiz.dev/pkg/vdom"
	"src.uiwiz.dev/pkg/wizard"
)

var (
	help        = flag.Bool("help", false, "show usage help and quit")
	logpath     = flag.String("log", "", "a file to write debug log to")
	themepath   = flag.String("theme", "", "a YAML theme file, reloaded on change")
	inspectAddr = flag.String("inspect", "", "address to serve introspection RPC on")
	histpath    = flag.String("history", "", "a file to persist pass snapshots to")
)

func usage() {
	fmt.Println("usage: uiwiz-demo [flags]")
	fmt.Println("flags:")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if *help {
		usage()
		os.Exit(0)
	}
	if err := logutil.SetOutputFile(*logpath); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func counter(c vdom.Context, props vdom.Props) vdom.Node {
	n := hook.State(c, "n", 0)
	return vdom.E("frame", vdom.Props{"class": "p-2 flex-col gap-2"},
		vdom.E("label", vdom.Props{
			"class": "text-lg bg-gray-100 dark:bg-gray-900 dark:text-gray-100",
			"text":  fmt.Sprintf("Count: %d", n.Get()),
		}),
		vdom.E("button", vdom.Props{
			"class":   "p-1 bg-blue-500 text-gray-50 rounded",
			"text":    "+1",
			"onClick": func(any) { n.Swap(func(old int) int { return old + 1 }) },
		}),
	)
}

func run() error {
	term := termui.New(termui.Config{})
	resolver := style.NewResolver(nil)
	resolver.SetBreakpoint(style.DefaultTokens().BreakpointFor(term.Width()))

	rec := history.New(0)
	if *histpath != "" {
		var err error
		rec, err = history.NewPersistent(*histpath, 0)
		if err != nil {
			return err
		}
		defer rec.Close()
	}

	app := wizard.New(wizard.Config{
		Backend:  term,
		Root:     term.Root(),
		Comp:     counter,
		Resolver: resolver.Resolve,
		Observer: wizard.MultiObserver{rec, renderObserver{term}},
	})

	if *themepath != "" {
		stop, err := style.WatchTheme(*themepath, func(th *style.Theme) {
			app.Post(func() {
				resolver.SetTheme(th)
				app.RequestRender(nil)
			})
		})
		if err != nil {
			return err
		}
		defer stop()
	}

	if *inspectAddr != "" {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		srv := inspect.NewServer(rec)
		go func() {
			if err := srv.ListenAndServe(ctx, *inspectAddr); err != nil {
				fmt.Fprintln(os.Stderr, "inspect:", err)
			}
		}()
	}

	go readInput(term, app, resolver)
	return app.Run()
}

// readInput drives the UI from stdin. Everything it does to the engine goes
// through the message queue.
func readInput(term *termui.Backend, app *wizard.App, resolver *style.Resolver) {
	sc := bufio.NewScanner(os.Stdin)
	dark := false
	for sc.Scan() {
		switch sc.Text() {
		case "q":
			app.Stop(nil)
			return
		case "d":
			dark = !dark
			theme := style.Light
			if dark {
				theme = style.Dark
			}
			app.Post(func() {
				resolver.SetTheme(theme)
				app.RequestRender(nil)
			})
		default:
			app.Post(func() { term.Trigger("click", nil) })
		}
	}
	app.Stop(nil)
}

// renderObserver prints a frame after every committed pass.
type renderObserver struct{ term *termui.Backend }

func (o renderObserver) PassCommitted(wizard.Snapshot) {
	if err := o.term.Render(); err != nil {
		fmt.Fprintln(os.Stderr, "render:", err)
	}
}
