package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/kr/pretty"

	"github.com/oblsm-go/oblsm"
	"github.com/oblsm-go/oblsm/internal/base"
)

// session holds the REPL's one open database, if any.
type session struct {
	db      *oblsm.DB
	dir     string
	verbose bool
}

func (s *session) requireOpen() error {
	if s.db == nil {
		return fmt.Errorf("no database is open; use: open \"<dir>\"")
	}
	return nil
}

func (s *session) run(cmd *command, out io.Writer) (exit bool, err error) {
	switch cmd.name {
	case "open":
		if s.db != nil {
			return false, fmt.Errorf("database %s is already open; close it first", s.dir)
		}
		db, err := oblsm.Open(cmd.args[0], oblsm.Options{})
		if err != nil {
			return false, err
		}
		s.db, s.dir = db, cmd.args[0]
		fmt.Fprintf(out, "opened %s\n", s.dir)

	case "close":
		if s.db == nil {
			return false, nil
		}
		if err := s.db.Close(); err != nil {
			return false, err
		}
		s.db, s.dir = nil, ""
		fmt.Fprintln(out, "closed")

	case "set":
		if err := s.requireOpen(); err != nil {
			return false, err
		}
		if err := s.db.Put([]byte(cmd.args[0]), []byte(cmd.args[1])); err != nil {
			return false, err
		}

	case "get":
		if err := s.requireOpen(); err != nil {
			return false, err
		}
		v, err := s.db.Get([]byte(cmd.args[0]))
		if err != nil {
			if base.IsNotFound(err) {
				fmt.Fprintln(out, "(not found)")
				return false, nil
			}
			return false, err
		}
		fmt.Fprintln(out, string(v))

	case "delete":
		if err := s.requireOpen(); err != nil {
			return false, err
		}
		if err := s.db.Remove([]byte(cmd.args[0])); err != nil {
			return false, err
		}

	case "scan":
		if err := s.requireOpen(); err != nil {
			return false, err
		}
		if err := s.scan(cmd, out); err != nil {
			return false, err
		}

	case "dump":
		if err := s.requireOpen(); err != nil {
			return false, err
		}
		s.dump(out)

	case "help":
		printHelp(out)

	case "exit":
		return true, nil
	}
	return false, nil
}

// scan prints every key/value pair in [args[0], args[1]]; a bounds[i]
// flag means that endpoint is unbounded, matching oblsm_cli's "-"
// syntax.
func (s *session) scan(cmd *command, out io.Writer) error {
	it, err := s.db.NewIterator()
	if err != nil {
		return err
	}
	defer it.Close()

	if cmd.bounds[0] {
		err = it.SeekToFirst()
	} else {
		err = it.Seek([]byte(cmd.args[0]))
	}
	if err != nil {
		return err
	}

	upper := []byte(cmd.args[1])
	for it.Valid() {
		if !cmd.bounds[1] && bytes.Compare(it.Key(), upper) > 0 {
			break
		}
		fmt.Fprintf(out, "%s => %s\n", it.Key(), it.Value())
		if err := it.Next(); err != nil {
			return err
		}
	}
	return nil
}

// dump prints a per-level SSTable byte-size bar chart and, in verbose
// mode, the full SSTableSummary structs.
func (s *session) dump(out io.Writer) {
	tables := s.db.DumpSSTables()
	levels := make([]int, 0, len(tables))
	for level := range tables {
		levels = append(levels, level)
	}
	sort.Ints(levels)

	sizes := make([]float64, 0, len(levels))
	labels := make([]string, 0, len(levels))
	for _, level := range levels {
		var total int64
		for _, t := range tables[level] {
			total += t.Size
		}
		sizes = append(sizes, float64(total))
		labels = append(labels, fmt.Sprintf("L%d", level))
	}
	if len(sizes) > 0 {
		fmt.Fprintln(out, asciigraph.Plot(sizes, asciigraph.Caption(fmt.Sprintf("level bytes: %v", labels))))
	}

	if s.verbose {
		for _, level := range levels {
			fmt.Fprintf(out, "L%d:\n", level)
			for _, t := range tables[level] {
				fmt.Fprintf(out, "  %# v\n", pretty.Formatter(t))
			}
		}
	}
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, `commands:
  open "<dir>"               open (or create) a database directory
  close                      close the open database
  set "<key>" "<value>"      write a key/value pair
  get "<key>"                read a key's current value
  delete "<key>"             write a tombstone for a key
  scan <"k1"|-> <"k2"|->     print every pair in [k1, k2], "-" is unbounded
  dump                       show per-level SSTable byte counts
  help                       print this message
  exit                       quit`)
}

func repl(r *bufio.Reader, out io.Writer, verbose bool) int {
	s := &session{verbose: verbose}
	fmt.Fprintln(out, "oblsmcli - type 'help' for commands")
	for {
		fmt.Fprint(out, "oblsm> ")
		line, err := r.ReadString('\n')
		if err != nil {
			if s.db != nil {
				s.db.Close()
			}
			if err == io.EOF {
				return 0
			}
			return 1
		}
		line = strings.TrimRight(line, "\r\n")
		cmd, err := parseCommand(line)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			continue
		}
		if cmd == nil {
			continue
		}
		exit, err := s.run(cmd, out)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
		}
		if exit {
			if s.db != nil {
				s.db.Close()
			}
			return 0
		}
	}
}
