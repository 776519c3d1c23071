package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"library-circulation/library"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	var (
		booksPath    string
		accountsPath string
		dbPath       string
		fresh        bool
		verbose      bool
	)

	cmd := &cobra.Command{
		Use:          "import_books",
		Short:        "Import the flat-file catalog and accounts into a SQLite library database",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := zap.NewNop()
			if verbose {
				l, err := zap.NewDevelopment()
				if err != nil {
					return err
				}
				log = l
			}
			defer log.Sync()
			return importBooks(cmd.Context(), booksPath, accountsPath, dbPath, fresh, log)
		},
	}
	f := cmd.Flags()
	f.StringVar(&booksPath, "books", "BookData.csv", "catalog file to import")
	f.StringVar(&accountsPath, "accounts", "AccountData.csv", "accounts file to import")
	f.StringVar(&dbPath, "db", "library.db", "SQLite database to write")
	f.BoolVar(&fresh, "fresh", false, "delete the database files before importing")
	f.BoolVar(&verbose, "verbose", false, "log skipped records and progress")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func importBooks(ctx context.Context, booksPath, accountsPath, dbPath string, fresh bool, log *zap.Logger) error {
	if fresh {
		fmt.Println("Cleaning up existing database files...")
		for _, file := range []string{dbPath, dbPath + "-shm", dbPath + "-wal"} {
			if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
				fmt.Printf("Warning: Could not remove %s: %v\n", file, err)
			}
		}
		fmt.Println("Database cleanup complete.")
	}

	src := library.NewCSVStore(booksPath, accountsPath, log.Named("csv"))
	books, err := src.LoadCatalog(ctx)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	accounts, err := src.LoadAccounts(ctx)
	if err != nil {
		return fmt.Errorf("read accounts: %w", err)
	}

	dst, err := library.NewDatabase(dbPath, log.Named("sqlite"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer dst.Close()

	fmt.Printf("Importing %d books from %s and %d accounts from %s into %s...\n",
		len(books), booksPath, len(accounts), accountsPath, dbPath)
	if err := dst.SaveCatalog(ctx, books); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := dst.SaveAccounts(ctx, accounts); err != nil {
		return fmt.Errorf("write accounts: %w", err)
	}

	fmt.Printf("\nImport complete!\n")

	if len(books) > 0 {
		fmt.Println("\nImported books:")
		fmt.Printf("%-40s %-25s %-10s %s\n", "Title", "Author", "Status", "Borrowed By")
		fmt.Println(strings.Repeat("-", 90))
		for _, b := range books {
			fmt.Printf("%-40s %-25s %-10s %s\n", truncateString(b.Title, 40), truncateString(b.Author, 25), b.Status, b.BorrowedBy)
		}
	}
	if len(accounts) > 0 {
		fmt.Println("\nImported accounts:")
		fmt.Printf("%-20s %-10s %-12s %6s %s\n", "Username", "Role", "User ID", "Fine", "Returned")
		fmt.Println(strings.Repeat("-", 60))
		for _, a := range accounts {
			fmt.Printf("%-20s %-10s %-12s %6d %d\n", truncateString(a.Username, 20), a.Role(), a.User.ID, a.User.Fine, len(a.User.History()))
		}
	}
	return nil
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
