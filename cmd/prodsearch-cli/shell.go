package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/kailas-cloud/prodsearch/internal/domain/search/mode"
)

const shellHelp = `Commands:
  v <query> [@brand]   vector search
  s <query> [@brand]   semantic search
  h <query>            hybrid search
  <query>              hybrid search
  q                    quit`

// shellLine is a parsed shell input.
type shellLine struct {
	quit  bool
	help  bool
	mode  mode.Mode
	query string
	brand *string
}

func parseShellLine(line string) shellLine {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return shellLine{}
	}

	switch strings.ToLower(fields[0]) {
	case "q", "quit", "exit":
		if len(fields) == 1 {
			return shellLine{quit: true}
		}
	case "?", "help":
		return shellLine{help: true}
	}

	out := shellLine{mode: mode.Hybrid}
	switch fields[0] {
	case "v":
		out.mode, fields = mode.Vector, fields[1:]
	case "s":
		out.mode, fields = mode.Semantic, fields[1:]
	case "h":
		out.mode, fields = mode.Hybrid, fields[1:]
	}

	if n := len(fields); n > 0 && strings.HasPrefix(fields[n-1], "@") {
		brand := strings.TrimPrefix(fields[n-1], "@")
		out.brand = &brand
		fields = fields[:n-1]
	}
	out.query = strings.Join(fields, " ")
	return out
}

func (s *session) shellCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	a, err := s.open(ctx)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "%d products indexed. Type ? for help.\n", a.Catalog.Len())

	lines := scanLines(ctx, c.App.Reader)
	for {
		fmt.Fprint(w, "\nsearch> ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(w)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(w)
				return nil
			}
			line = l
		}

		cmd := parseShellLine(line)
		switch {
		case cmd.quit:
			return nil
		case cmd.help:
			fmt.Fprintln(w, shellHelp)
			continue
		case cmd.query == "":
			continue
		}

		req, err := buildRequest(cmd.query, cmd.mode, cmd.brand, s.cfg.Search.DefaultTopK, s.cfg.Search.MaxTopK)
		if err != nil {
			fmt.Fprintln(w, "Invalid query:", err)
			continue
		}

		resp, err := a.Search.Search(ctx, &req)
		if err != nil {
			fmt.Fprintln(w, "Search failed:", err)
			continue
		}
		printResponse(w, resp)
	}
}

// scanLines feeds input lines to a channel so the loop can also watch ctx.
func scanLines(ctx context.Context, r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case out <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
