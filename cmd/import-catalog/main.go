// Command import-catalog loads catalog items from a CSV file into the
// library database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mvidmar/knjiznica/internal/csvio"
	"github.com/mvidmar/knjiznica/internal/db"
)

func main() {
	fs := flag.NewFlagSet("import-catalog", flag.ContinueOnError)

	var dbPath string
	fs.StringVar(&dbPath, "db", "knjiznica.sqlite3", "")
	fs.StringVar(&dbPath, "d", "knjiznica.sqlite3", "")

	var csvPath string
	fs.StringVar(&csvPath, "file", "", "")
	fs.StringVar(&csvPath, "f", "", "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: import-catalog -f <file.csv> [flags]

Flags:
  -f, -file <path>   CSV file to import (required)
  -d, -db <path>     SQLite database path (default: knjiznica.sqlite3)
  -h, -help          show this help and exit

The CSV header must be:
  id,title,author,genre,media_type,copies_total,copies_available
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if csvPath == "" {
		fmt.Fprintln(os.Stderr, "error: -file is required")
		fs.Usage()
		os.Exit(1)
	}

	file, err := os.Open(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	database, err := db.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: opening database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		fmt.Fprintf(os.Stderr, "error: ensuring schema: %v\n", err)
		os.Exit(1)
	}

	count, err := csvio.ImportCatalog(context.Background(), database, file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: imported %d items before failing: %v\n", count, err)
		os.Exit(1)
	}

	fmt.Printf("Imported %d items from %s into %s\n", count, csvPath, dbPath)
}
