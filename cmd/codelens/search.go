package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/codelens/internal/content"
)

var grepCommand = &cli.Command{
	Name:    "grep",
	Aliases: []string{"g"},
	Usage:   "token/substring/phrase/regex search over the content index",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "mode", Value: "or", Usage: "or | and | phrase | regex"},
		&cli.StringFlag{Name: "phrase", Usage: "exact phrase to match (mode=phrase)"},
		&cli.StringFlag{Name: "pattern", Usage: "regex pattern (mode=regex)"},
		&cli.BoolFlag{Name: "substring", Usage: "force substring matching on"},
		&cli.StringFlag{Name: "ext", Usage: "restrict to one extension, e.g. .go"},
		&cli.StringFlag{Name: "dir", Usage: "restrict to a subdirectory of the root"},
		&cli.IntFlag{Name: "max-results", Usage: "0 = all"},
		&cli.BoolFlag{Name: "count-only"},
		&cli.BoolFlag{Name: "show-lines"},
		&cli.IntFlag{Name: "context", Usage: "context lines; >0 implies show-lines"},
	},
	ArgsUsage: "[terms...]",
	Action: func(c *cli.Context) error {
		eng, err := startEngine(c)
		if err != nil {
			return err
		}
		defer eng.Shutdown(c.Context)

		idx, err := waitContentReady(c, eng)
		if err != nil {
			return err
		}

		mode := content.ModeOR
		switch strings.ToLower(c.String("mode")) {
		case "", "or":
			mode = content.ModeOR
		case "and":
			mode = content.ModeAND
		case "phrase":
			mode = content.ModePhrase
		case "regex":
			mode = content.ModeRegex
		default:
			return fmt.Errorf("mode must be one of or|and|phrase|regex, got %q", c.String("mode"))
		}

		var substring *bool
		if c.Bool("substring") {
			v := true
			substring = &v
		}

		contextLines := c.Int("context")
		res, err := idx.Search(content.Query{
			Terms:        c.Args().Slice(),
			Phrase:       c.String("phrase"),
			Pattern:      c.String("pattern"),
			Mode:         mode,
			Substring:    substring,
			Ext:          c.String("ext"),
			Dir:          c.String("dir"),
			MaxResults:   c.Int("max-results"),
			CountOnly:    c.Bool("count-only"),
			ShowLines:    c.Bool("show-lines") || contextLines > 0,
			ContextLines: contextLines,
		})
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var findCommand = &cli.Command{
	Name:  "find",
	Usage: "find files by basename (substring/regex/comma-OR)",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "substring"},
		&cli.BoolFlag{Name: "regex"},
		&cli.BoolFlag{Name: "ci", Usage: "case-insensitive"},
		&cli.BoolFlag{Name: "dirs-only"},
		&cli.BoolFlag{Name: "files-only"},
		&cli.IntFlag{Name: "max-results"},
	},
	ArgsUsage: "<pattern>",
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return fmt.Errorf("find requires a pattern argument")
		}
		eng, err := startEngine(c)
		if err != nil {
			return err
		}
		defer eng.Shutdown(c.Context)

		idx, err := eng.FileIndex()
		if err != nil {
			return err
		}

		res, err := idx.Search(fileIndexQueryFrom(c))
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

func printJSON(v any) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = os.Stdout.Write(append(body, '\n'))
	return err
}
