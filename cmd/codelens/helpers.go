package main

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/codelens/internal/content"
	"github.com/standardbeagle/codelens/internal/defindex"
	"github.com/standardbeagle/codelens/internal/engine"
	"github.com/standardbeagle/codelens/internal/fileindex"
)

// pollInterval and pollTimeout bound how long a one-shot CLI invocation
// waits for a background index build before giving up and surfacing the
// not-ready error to the caller.
const (
	pollInterval = 50 * time.Millisecond
	pollTimeout  = 60 * time.Second
)

func waitContentReady(c *cli.Context, eng *engine.Engine) (*content.Index, error) {
	deadline := time.Now().Add(pollTimeout)
	for {
		idx, err := eng.ContentIndex()
		if err == nil {
			return idx, nil
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		select {
		case <-c.Context.Done():
			return nil, c.Context.Err()
		case <-time.After(pollInterval):
		}
	}
}

func waitDefsReady(c *cli.Context, eng *engine.Engine) (*defindex.Index, error) {
	deadline := time.Now().Add(pollTimeout)
	for {
		idx, err := eng.DefinitionIndex()
		if err == nil {
			return idx, nil
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		select {
		case <-c.Context.Done():
			return nil, c.Context.Err()
		case <-time.After(pollInterval):
		}
	}
}

func fileIndexQueryFrom(c *cli.Context) fileindex.Query {
	return fileindex.Query{
		Pattern:    c.Args().First(),
		Substring:  c.Bool("substring"),
		Regex:      c.Bool("regex"),
		CaseInsens: c.Bool("ci"),
		DirsOnly:   c.Bool("dirs-only"),
		FilesOnly:  c.Bool("files-only"),
		MaxResults: c.Int("max-results"),
	}
}
