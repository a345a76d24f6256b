// Command dumpidx prints the structure of a B+ tree index file: the header,
// node counts and fill per level, and optionally every leaf entry or a
// Graphviz rendering of the tree.
//
//	dumpidx [-entries] [-dot out.dot] [-verify] file.idx
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/btree-query-bench/idxsql/dbms/index/bptree"
	"github.com/btree-query-bench/idxsql/dbms/pager"
	"github.com/cockroachdb/errors"
)

func main() {
	entries := flag.Bool("entries", false, "print every leaf entry in chain order")
	dotPath := flag.String("dot", "", "write a Graphviz digraph of the tree to this file")
	verify := flag.Bool("verify", false, "check the structural invariants of the tree")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] file.idx\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := dump(os.Stdout, flag.Arg(0), *entries, *dotPath, *verify); err != nil {
		fmt.Fprintln(os.Stderr, "dumpidx:", err)
		os.Exit(1)
	}
}

type levelStats struct {
	nodes, keys, capacity int
}

func dump(w io.Writer, path string, entries bool, dotPath string, verify bool) error {
	t, err := bptree.Open(path, pager.ModeRead)
	if err != nil {
		return err
	}
	defer t.Close()

	fmt.Fprintf(w, "root: %s\nheight: %d\n", t.Root(), t.Height())
	if t.Height() == 0 {
		return nil
	}

	levels := make([]levelStats, t.Height()+1)
	var leafEntries int
	err = t.Walk(func(n bptree.Node) error {
		s := &levels[n.Level]
		s.nodes++
		if n.Leaf != nil {
			s.keys += n.Leaf.Count()
			s.capacity += n.Leaf.Capacity()
			leafEntries += n.Leaf.Count()
			if entries {
				for i := 0; i < n.Leaf.Count(); i++ {
					e := n.Leaf.Entry(i)
					fmt.Fprintf(w, "  page %d slot %d: %d -> (%d,%d)\n", n.ID, i, e.Key, e.RID.Page, e.RID.Slot)
				}
			}
			return nil
		}
		s.keys += n.Internal.Count()
		s.capacity += n.Internal.Capacity()
		return nil
	})
	if err != nil {
		return err
	}

	for lvl := t.Height(); lvl >= 1; lvl-- {
		s := levels[lvl]
		kind := "internal"
		if lvl == 1 {
			kind = "leaf"
		}
		fmt.Fprintf(w, "level %d (%s): %d nodes, %d keys, %.1f%% full\n",
			lvl, kind, s.nodes, s.keys, float64(s.keys)/float64(s.capacity)*100)
	}
	fmt.Fprintf(w, "entries: %d\n", leafEntries)

	if dotPath != "" {
		f, err := os.Create(dotPath)
		if err != nil {
			return errors.Wrap(err, "dot file")
		}
		if err := t.ExportDOT(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return errors.Wrap(err, "dot file")
		}
	}

	if verify {
		if err := t.Verify(); err != nil {
			return err
		}
		fmt.Fprintln(w, "verify: ok")
	}
	return nil
}
