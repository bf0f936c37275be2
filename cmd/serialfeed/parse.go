package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/text/encoding/unicode"

	"github.com/luhtfiimanal/serialfeed/lineproto"
	"github.com/luhtfiimanal/serialfeed/reassembly"
)

type ParseCmd struct {
	Files []string `arg:"" optional:"" help:"Input files; stdin when none."`
	Raw   bool     `help:"Print values as received, without normalizing 0 and 1."`
}

func (p *ParseCmd) Run(cli *CLI) error {
	cfg, err := cli.load()
	if err != nil {
		return err
	}
	logger, err := cli.logger(cfg)
	if err != nil {
		return err
	}

	if len(p.Files) == 0 {
		return parseStream(os.Stdin, os.Stdout, cfg.MaxLine(), p.Raw, logger)
	}
	for _, name := range p.Files {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		err = parseStream(f, os.Stdout, cfg.MaxLine(), p.Raw, logger.With("file", name))
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// parseStream writes one key=value line per field found in r. A trailing
// line without a newline is not a complete line and is ignored.
func parseStream(r io.Reader, w io.Writer, maxLine int, raw bool, logger *slog.Logger) error {
	asm := reassembly.New(reassembly.WithMaxLine(maxLine))
	parser := lineproto.NewParser(lineproto.WithSkipHook(func(s lineproto.Skip) {
		logger.Debug("skipped token", "token", s.Token, "reason", s.Reason)
	}))

	dec := unicode.UTF8BOM.NewDecoder().Reader(r)
	buf := make([]byte, 4096)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			lines, ferr := asm.Feed(string(buf[:n]))
			if ferr != nil {
				logger.Warn("line dropped", "error", ferr)
			}
			for _, line := range lines {
				for _, f := range parser.Parse(line) {
					v := f.Value
					if raw {
						v = f.Raw
					}
					if _, werr := fmt.Fprintf(w, "%s=%s\n", f.Key, v); werr != nil {
						return werr
					}
				}
			}
		}
		if errors.Is(err, io.EOF) {
			if pending := asm.Pending(); pending > 0 {
				logger.Debug("incomplete final line ignored", "bytes", pending)
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}
