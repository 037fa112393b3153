package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/codelens/internal/astparse"
	"github.com/standardbeagle/codelens/internal/callgraph"
	"github.com/standardbeagle/codelens/internal/defindex"
)

var definitionsCommand = &cli.Command{
	Name:    "definitions",
	Aliases: []string{"def"},
	Usage:   "search the AST-derived definition index",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "name"},
		&cli.BoolFlag{Name: "name-regex"},
		&cli.StringFlag{Name: "kind"},
		&cli.StringFlag{Name: "attribute"},
		&cli.StringFlag{Name: "base-type"},
		&cli.StringFlag{Name: "file"},
		&cli.StringFlag{Name: "parent"},
		&cli.IntFlag{Name: "contains-line"},
		&cli.StringFlag{Name: "exclude-dir"},
		&cli.BoolFlag{Name: "include-body"},
		&cli.IntFlag{Name: "max-body-lines", Usage: "0 = unlimited per-entry body line cap"},
		&cli.IntFlag{Name: "max-total-body-lines", Usage: "0 = unlimited; caps summed body lines across the response"},
		&cli.IntFlag{Name: "max-results"},
		&cli.StringFlag{Name: "sort-by", Usage: "cyclomatic | cognitive | lines | params"},
		&cli.IntFlag{Name: "min-cyclomatic", Usage: "keep only definitions at or above this cyclomatic complexity"},
		&cli.IntFlag{Name: "min-cognitive", Usage: "keep only definitions at or above this cognitive complexity"},
		&cli.IntFlag{Name: "min-lines", Usage: "keep only definitions at or above this line count"},
		&cli.BoolFlag{Name: "audit", Usage: "return an index health report instead of matching definitions"},
		&cli.Int64Flag{Name: "suspicious-bytes", Usage: "audit mode: flag files at or above this size as suspicious"},
	},
	Action: func(c *cli.Context) error {
		eng, err := startEngine(c)
		if err != nil {
			return err
		}
		defer eng.Shutdown(c.Context)

		idx, err := waitDefsReady(c, eng)
		if err != nil {
			return err
		}

		res, err := idx.Search(defindex.Query{
			Name:              c.String("name"),
			NameRegex:         c.Bool("name-regex"),
			Kind:              astparse.Kind(c.String("kind")),
			Attribute:         c.String("attribute"),
			BaseType:          c.String("base-type"),
			File:              c.String("file"),
			Parent:            c.String("parent"),
			ContainsLine:      c.Int("contains-line"),
			ExcludeDir:        c.String("exclude-dir"),
			IncludeBody:       c.Bool("include-body"),
			MaxBodyLines:      c.Int("max-body-lines"),
			MaxTotalBodyLines: c.Int("max-total-body-lines"),
			MaxResults:        c.Int("max-results"),
			SortBy:            c.String("sort-by"),
			MinCyclomatic:     c.Int("min-cyclomatic"),
			MinCognitive:      c.Int("min-cognitive"),
			MinLines:          c.Int("min-lines"),
			Audit:             c.Bool("audit"),
			SuspiciousBytes:   c.Int64("suspicious-bytes"),
		})
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var callersCommand = &cli.Command{
	Name:      "callers",
	Usage:     "bounded caller/callee tree for a method",
	ArgsUsage: "<method>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "class"},
		&cli.StringFlag{Name: "direction", Value: "up", Usage: "up | down"},
		&cli.IntFlag{Name: "depth", Value: 2},
		&cli.IntFlag{Name: "max-total-nodes"},
		&cli.StringFlag{Name: "exclude-dir"},
		&cli.StringFlag{Name: "exclude-file"},
		&cli.StringFlag{Name: "ext"},
		&cli.BoolFlag{Name: "resolve-interfaces"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return fmt.Errorf("callers requires a method argument")
		}

		var dir callgraph.Direction
		switch c.String("direction") {
		case "up":
			dir = callgraph.Up
		case "down":
			dir = callgraph.Down
		default:
			return fmt.Errorf("direction must be \"up\" or \"down\", got %q", c.String("direction"))
		}
		if c.Int("depth") < 1 {
			return fmt.Errorf("depth must be >= 1")
		}

		eng, err := startEngine(c)
		if err != nil {
			return err
		}
		defer eng.Shutdown(c.Context)

		idx, err := waitDefsReady(c, eng)
		if err != nil {
			return err
		}

		res, err := callgraph.Find(idx, callgraph.Query{
			Method:            c.Args().First(),
			Class:             c.String("class"),
			Direction:         dir,
			Depth:             c.Int("depth"),
			MaxTotalNodes:     c.Int("max-total-nodes"),
			ExcludeDir:        c.String("exclude-dir"),
			ExcludeFile:       c.String("exclude-file"),
			Ext:               c.String("ext"),
			ResolveInterfaces: c.Bool("resolve-interfaces"),
		})
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}
