package engine

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/btree-query-bench/idxsql/dbms/sql"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const Prompt = "idxsql> "

// Run reads one statement per line from r and executes it, writing results
// and error messages to w. A failing statement does not end the session;
// QUIT, EXIT or the end of r does.
func (e *Engine) Run(r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	for {
		fmt.Fprint(w, Prompt)
		if !sc.Scan() {
			fmt.Fprintln(w)
			return errors.Wrap(sc.Err(), "engine: reading commands")
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		stmt, err := sql.Parse(line)
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			continue
		}
		if _, ok := stmt.(*sql.QuitStmt); ok {
			return nil
		}
		if err := e.Exec(stmt, w); err != nil {
			e.log.Error("statement failed", zap.String("statement", line), zap.Error(err))
			fmt.Fprintf(w, "Error: %v\n", err)
		}
	}
}
