package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var reindexCommand = &cli.Command{
	Name:  "reindex",
	Usage: "force a rebuild of the content index (and/or definition index)",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "definitions", Usage: "also rebuild the definition index"},
		&cli.BoolFlag{Name: "definitions-only", Usage: "rebuild only the definition index"},
	},
	Action: func(c *cli.Context) error {
		eng, err := startEngine(c)
		if err != nil {
			return err
		}
		defer eng.Shutdown(c.Context)

		content := !c.Bool("definitions-only")
		defs := c.Bool("definitions") || c.Bool("definitions-only")
		if err := eng.Reindex(c.Context, content, defs); err != nil {
			return err
		}

		if _, err := waitContentReady(c, eng); content && err != nil {
			return err
		}
		if defs {
			if _, err := waitDefsReady(c, eng); err != nil {
				return err
			}
		}

		fmt.Println("reindex complete")
		return nil
	},
}
