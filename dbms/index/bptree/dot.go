package bptree

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/btree-query-bench/idxsql/dbms/index/btpage"
	"github.com/btree-query-bench/idxsql/dbms/pager"
)

// ExportDOT writes the tree as a Graphviz digraph: one HTML-table node per
// page, edges from separators to children and dashed edges along the leaf
// chain. Render it with `dot -Tpng`.
func (t *Tree) ExportDOT(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "digraph BPTree {")
	fmt.Fprintln(bw, "  graph [ranksep=0.8, nodesep=0.5, bgcolor=\"#ffffff\", rankdir=TB];")
	fmt.Fprintln(bw, "  node [shape=none, fontname=\"Helvetica\", fontsize=10];")
	fmt.Fprintln(bw, "  edge [arrowsize=0.8, color=\"#444444\"];")

	var leaves []Node
	err := t.Walk(func(n Node) error {
		if n.Leaf != nil {
			fmt.Fprintf(bw, "  %s [label=%s];\n", dotName(n.ID), leafLabel(n))
			leaves = append(leaves, n)
			return nil
		}
		fmt.Fprintf(bw, "  %s [label=%s];\n", dotName(n.ID), internalLabel(n))
		for i := 0; i <= n.Internal.Count(); i++ {
			fmt.Fprintf(bw, "  %s:f%d -> %s;\n", dotName(n.ID), i, dotName(n.Internal.Child(i)))
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(leaves) > 1 {
		fmt.Fprintln(bw, "  { rank=same;")
		for _, n := range leaves {
			fmt.Fprintf(bw, "    %s;\n", dotName(n.ID))
		}
		fmt.Fprintln(bw, "  }")
		for _, n := range leaves {
			if next, ok := n.Leaf.Next().Get(); ok {
				fmt.Fprintf(bw, "  %s:next -> %s [style=dashed, color=\"#03A9F4\", constraint=false, tailclip=false];\n",
					dotName(n.ID), dotName(next))
			}
		}
	}

	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

func dotName(id pager.PageID) string {
	return fmt.Sprintf("page%d", id)
}

func fill(n, capacity int) float64 {
	return float64(n) / float64(capacity) * 100
}

func leafLabel(n Node) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0" CELLPADDING="4">`+
		`<TR><TD COLSPAN="2" BGCOLOR="#D5E8D4"><B>PAGE %d (LEAF)</B><BR/><FONT POINT-SIZE="8">Fill: %.1f%%</FONT></TD></TR>`+
		`<TR><TD PORT="keys" BGCOLOR="#F5F5F5" ALIGN="LEFT">`,
		n.ID, fill(n.Leaf.Count(), n.Leaf.Capacity()))
	for i := 0; i < n.Leaf.Count(); i++ {
		e := n.Leaf.Entry(i)
		fmt.Fprintf(&b, `<B>%d</B> <FONT COLOR="#666666">(%d,%d)</FONT><BR/>`, e.Key, e.RID.Page, e.RID.Slot)
	}
	fmt.Fprintf(&b, `</TD><TD PORT="next" BGCOLOR="#E1F5FE" VALIGN="MIDDLE">Next: %s</TD></TR></TABLE>>`, nextLabel(n.Leaf.Next()))
	return b.String()
}

func internalLabel(n Node) string {
	node := n.Internal
	var b strings.Builder
	fmt.Fprintf(&b, `<<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0" CELLPADDING="4">`+
		`<TR><TD COLSPAN="%d" BGCOLOR="#DAE8FC"><B>PAGE %d (INTERNAL)</B><BR/><FONT POINT-SIZE="8">Fill: %.1f%%</FONT></TD></TR><TR>`,
		node.Count()*2+1, n.ID, fill(node.Count(), node.Capacity()))
	for i := 0; i < node.Count(); i++ {
		fmt.Fprintf(&b, `<TD PORT="f%d" BGCOLOR="#E1F5FE">P:%d</TD><TD BGCOLOR="#FFFFFF"><B>%d</B></TD>`, i, node.Child(i), node.Key(i))
	}
	fmt.Fprintf(&b, `<TD PORT="f%d" BGCOLOR="#E1F5FE">P:%d</TD></TR></TABLE>>`, node.Count(), node.Child(node.Count()))
	return b.String()
}

func nextLabel(l btpage.Link) string {
	if !l.Valid() {
		return "NULL"
	}
	return l.String()
}
