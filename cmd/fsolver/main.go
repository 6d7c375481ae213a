package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/sdboyer/constext"
	"github.com/sirupsen/logrus"

	"github.com/opamgo/fsolver"
	"github.com/opamgo/fsolver/repo"
)

func main() {
	flag.Parse()

	do := flag.Arg(0)
	var args []string
	if do == "" {
		do = "help"
	} else {
		args = flag.Args()[1:]
	}
	for _, cmd := range commands {
		if do != cmd.name {
			continue
		}
		if err := cmd.fn(args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	fmt.Fprintf(os.Stderr, "unknown command: %q\n", do)
	help(nil)
	os.Exit(2)
}

type command struct {
	fn    func(args []string) error
	name  string
	short string
}

var commands = []*command{
	solveCmd,
	checkCmd,
	// help added here at init time.
}

func init() {
	// Defeat the circular declaration by appending at init time.
	commands = append(commands, &command{
		fn:   help,
		name: "help",
		short: `[command]
	Show documentation for the fsolver tool or the specified command.
`,
	})
}

func help(args []string) error {
	if len(args) == 0 {
		fmt.Printf("usage: fsolver <command> [arguments]\n\n")
		fmt.Printf("Available commands:\n\n")
		for _, cmd := range commands {
			fmt.Printf("%s %s\n", cmd.name, cmd.short)
		}
		return nil
	}
	for _, cmd := range commands {
		if cmd.name != args[0] {
			continue
		}
		fmt.Printf("usage: fsolver %s %s\n", cmd.name, cmd.short)
		return nil
	}
	return fmt.Errorf("unknown command: %q", args[0])
}

var solveCmd = &command{
	fn:   runSolve,
	name: "solve",
	short: `[flags] <root> [constraint]
	Resolve a root package against a metadata repository and print the
	selected versions and the resolved dependency graph.
`,
}

func runSolve(args []string) error {
	fs := flag.NewFlagSet("solve", flag.ExitOnError)
	var (
		repoDir  = fs.String("repo", ".", "metadata repository directory")
		reqPath  = fs.String("request", "", "solve request manifest (overrides positional args)")
		timeout  = fs.Duration("timeout", 0, "abort the search after this long (0 = no limit)")
		cacheDir = fs.String("cache", "", "metadata cache directory (empty = no cache)")
		cacheAge = fs.Duration("cache-age", time.Hour, "maximum acceptable cache entry age")
		verbose  = fs.Bool("v", false, "enable solve tracing")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	l := logrus.New()
	if *verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.WarnLevel)
	}

	root := fs.Arg(0)
	var rootC fsolver.Constraint
	if fs.Arg(1) != "" {
		var err error
		rootC, err = fsolver.ParseConstraints(fs.Arg(1))
		if err != nil {
			return err
		}
	}

	dir := *repoDir
	if *reqPath != "" {
		req, err := repo.ReadRequest(*reqPath)
		if err != nil {
			return err
		}
		root = req.Root
		rootC = req.Constraint
		if req.Repository != "" {
			dir = req.Repository
		}
	}
	if root == "" {
		return fmt.Errorf("no root package given; pass one as an argument or via -request")
	}

	u, problems, err := loadUniverse(dir, *cacheDir, *cacheAge)
	if err != nil {
		return err
	}
	for _, p := range problems {
		l.Warnf("skipped metadata: %s", p)
	}

	ctx, cancel := solveContext(*timeout)
	defer cancel()

	sv, err := fsolver.NewSolver(u, fsolver.SolveParameters{
		Root:           root,
		RootConstraint: rootC,
		Logger:         l,
	})
	if err != nil {
		return err
	}

	sol, err := sv.Solve(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Solution set:")
	for _, name := range sol.Packages() {
		v, _ := sol.Version(name)
		fmt.Printf("\t(%s, %s)\n", name, v)
	}

	fmt.Println("\nResolved dependency graph:")
	graph := fsolver.ResolvedGraph(u, sol)
	for _, name := range sol.Packages() {
		v, _ := sol.Version(name)
		fmt.Printf("\t(%s, %s)", name, v)
		for i, dep := range graph[name] {
			if i == 0 {
				fmt.Print(" -> ")
			} else {
				fmt.Print(", ")
			}
			dv, _ := sol.Version(dep)
			fmt.Printf("(%s, %s)", dep, dv)
		}
		fmt.Println()
	}
	return nil
}

var checkCmd = &command{
	fn:   runCheck,
	name: "check",
	short: `[flags]
	Parse every depends formula in a repository, verify it re-serializes
	cleanly, and report syntax errors with positions.
`,
}

func runCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	repoDir := fs.String("repo", ".", "metadata repository directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	decls, problems, err := repo.Scan(*repoDir)
	if err != nil {
		return err
	}

	bad := len(problems)
	for _, p := range problems {
		fmt.Printf("%s\n", p)
	}
	for _, d := range decls {
		if d.Depends == "" {
			continue
		}
		f, err := fsolver.ParseFormula(d.Depends)
		if err != nil {
			fmt.Printf("%s %s: %v\n", d.Name, d.Version, err)
			bad++
			continue
		}
		if _, err := fsolver.ParseFormula(f.String()); err != nil {
			fmt.Printf("%s %s: canonical form does not re-parse: %v\n", d.Name, d.Version, err)
			bad++
		}
	}

	if bad > 0 {
		return fmt.Errorf("%d metadata file(s) failed validation", bad)
	}
	fmt.Printf("%d package version(s) ok\n", len(decls))
	return nil
}

func loadUniverse(dir, cacheDir string, cacheAge time.Duration) (*fsolver.Universe, []repo.Problem, error) {
	if cacheDir == "" {
		return repo.Load(dir)
	}

	c, err := repo.OpenCache(cacheDir)
	if err != nil {
		return nil, nil, err
	}
	defer c.Close()
	return repo.LoadWithCache(dir, c, cacheAge)
}

// solveContext merges interrupt handling with the optional timeout, so
// either signal aborts the search at its next choice point.
func solveContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	sigCtx, sigCancel := signal.NotifyContext(context.Background(), os.Interrupt)
	if timeout <= 0 {
		return sigCtx, sigCancel
	}

	toCtx, toCancel := context.WithTimeout(context.Background(), timeout)
	ctx, cancel := constext.Cons(sigCtx, toCtx)
	return ctx, func() {
		cancel()
		toCancel()
		sigCancel()
	}
}
