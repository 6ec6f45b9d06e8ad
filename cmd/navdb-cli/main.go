package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/navdb/navdb/pkg/auth"
	"github.com/navdb/navdb/pkg/backup"
	"github.com/navdb/navdb/pkg/database"
	"github.com/navdb/navdb/pkg/document"
	"github.com/navdb/navdb/pkg/engine"
	"github.com/navdb/navdb/pkg/logging"
	"github.com/navdb/navdb/pkg/query"
)

const (
	version = "0.1.0"
	banner  = `
navdb CLI v%s
Keyword-language shell for navdb. Type 'help' for command reference,
'exit' or 'quit' to leave.

`
)

const help = `
Database:
  nava database banao <name>         create a database
  database nu mitao <name>           drop a database
  database chalao <name>             select a database for this session

Collections:
  nava collection banao <name>       create a collection
  collection nu mitao <name>         drop a collection

Indexes:
  index banao <field> <collection>   create an index
  index dikhao <collection>          list indexes on a collection
  index chalo karo                   enable indexing
  index band karo                    disable indexing

Documents:
  dakhil karo <collection> <json>    insert one document, or a JSON array for many
  labbo <collection> <json>          find documents matching a filter
  badlo <collection> <filter> <update>   update the first match
  mitao <collection> <json>          delete the first match

Aggregation:
  aggregate in <collection> <pipeline>   run an aggregation pipeline

Transactions:
  begin tx / commit / rollback

Backup:
  backup banao <database>            archive a database
  restore karo <database>            restore the newest archive

Other:
  help, ?        show this help
  exit, quit     leave the shell
`

type shell struct {
	session *engine.Session
	current string
	scanner *bufio.Scanner
}

func newShell(dataDir string) (*shell, error) {
	registry := database.NewRegistry(dataDir)
	manager := auth.NewManager()
	guard := auth.NewGuard(manager)
	backups := backup.NewManager(dataDir)
	eng := engine.New(registry, guard, backups, logging.NewStdout())

	principal := auth.Principal{Username: "admin", Role: auth.RoleAdmin}
	return &shell{
		session: eng.NewSession(principal),
		scanner: bufio.NewScanner(os.Stdin),
	}, nil
}

func (s *shell) run() error {
	fmt.Printf(banner, version)

	for {
		prompt := "navdb> "
		if s.current != "" {
			prompt = fmt.Sprintf("navdb:%s> ", s.current)
		}
		fmt.Print(prompt)

		if !s.scanner.Scan() {
			break
		}
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}

		lower := strings.ToLower(line)
		switch lower {
		case "help", "?":
			fmt.Println(help)
			continue
		case "exit", "quit":
			fmt.Println("chaliye!")
			return nil
		}

		if err := s.executeLine(line); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
	return s.scanner.Err()
}

func (s *shell) executeLine(line string) error {
	op, err := query.Parse(line)
	if err != nil {
		return err
	}

	result, err := s.session.Execute(op)
	if err != nil {
		return err
	}

	if op.Kind == query.KindUseDB {
		s.current = op.Name
	}

	printResult(op.Kind, result)
	return nil
}

func printResult(kind query.Kind, result interface{}) {
	switch v := result.(type) {
	case nil:
		fmt.Println("ok")
	case []*document.Document:
		fmt.Printf("%d document(s)\n", len(v))
		for i, doc := range v {
			raw, _ := json.MarshalIndent(doc.ToMap(), "", "  ")
			fmt.Printf("[%d] %s\n", i+1, string(raw))
		}
	default:
		raw, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			fmt.Printf("%v\n", v)
			return
		}
		fmt.Println(string(raw))
	}
}

func main() {
	dataDir := "./navdb-data"
	if len(os.Args) > 1 {
		dataDir = os.Args[1]
	}

	sh, err := newShell(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := sh.run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
