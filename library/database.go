package library

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Database is a Store backed by a SQLite file.
type Database struct {
	db  *sql.DB
	log *zap.Logger

	insertBookStmt    *sql.Stmt
	insertAccountStmt *sql.Stmt
	insertHistoryStmt *sql.Stmt
}

// NewDatabase opens (or creates) the SQLite database at dbPath, applies schema
// migrations, and prepares common statements.
func NewDatabase(dbPath string, log *zap.Logger) (*Database, error) {
	if log == nil {
		log = zap.NewNop()
	}

	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{db: db, log: log}
	if err := database.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return database, nil
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	for _, stmt := range []*sql.Stmt{d.insertBookStmt, d.insertAccountStmt, d.insertHistoryStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return d.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            isbn TEXT NOT NULL,
            publisher TEXT NOT NULL,
            year INTEGER NOT NULL,
            status TEXT NOT NULL DEFAULT 'Available',
            borrow_date INTEGER NOT NULL DEFAULT 0,
            due_date INTEGER NOT NULL DEFAULT 0,
            borrowed_by TEXT NOT NULL DEFAULT '-None-'
        );`,
		`CREATE TABLE IF NOT EXISTS accounts (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL,
            password TEXT NOT NULL,
            role TEXT NOT NULL,
            user_id TEXT NOT NULL,
            fine INTEGER NOT NULL DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS history (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
            title TEXT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_books_borrowed_by ON books(borrowed_by);`,
		`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt, schemaVersion); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	if d.insertBookStmt, err = d.db.Prepare(`INSERT INTO books(title,author,isbn,publisher,year,status,borrow_date,due_date,borrowed_by)
        VALUES(?,?,?,?,?,?,?,?,?)`); err != nil {
		return err
	}
	if d.insertAccountStmt, err = d.db.Prepare(`INSERT INTO accounts(username,password,role,user_id,fine) VALUES(?,?,?,?,?)`); err != nil {
		return err
	}
	if d.insertHistoryStmt, err = d.db.Prepare(`INSERT INTO history(account_id,title) VALUES(?,?)`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

// LoadCatalog returns every book in insertion order. Rows with an unknown
// status are skipped.
func (d *Database) LoadCatalog(ctx context.Context) ([]*Book, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id,title,author,isbn,publisher,year,status,borrow_date,due_date,borrowed_by
        FROM books ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		var (
			id int64
			b  Book
		)
		if err := rows.Scan(&id, &b.Title, &b.Author, &b.ISBN, &b.Publisher, &b.Year,
			&b.Status, &b.BorrowDate, &b.DueDate, &b.BorrowedBy); err != nil {
			return nil, err
		}
		if b.Status != StatusAvailable && b.Status != StatusBorrowed {
			d.log.Warn("skipping book row", zap.Int64("id", id), zap.String("status", string(b.Status)))
			continue
		}
		repairLoaded(&b, d.log)
		books = append(books, &b)
	}
	return books, rows.Err()
}

// SaveCatalog replaces the stored catalog with books in one transaction.
func (d *Database) SaveCatalog(ctx context.Context, books []*Book) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM books`); err != nil {
		return fmt.Errorf("clear books: %w", err)
	}
	stmt := tx.StmtContext(ctx, d.insertBookStmt)
	for _, b := range books {
		if _, err := stmt.ExecContext(ctx, b.Title, b.Author, b.ISBN, b.Publisher, b.Year,
			string(b.Status), int(b.BorrowDate), int(b.DueDate), b.BorrowedBy); err != nil {
			return fmt.Errorf("insert book %q: %w", b.Title, err)
		}
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

// LoadAccounts returns every account with its returned-book history. Rows with
// an unknown role are skipped.
func (d *Database) LoadAccounts(ctx context.Context) ([]*Account, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id,username,password,role,user_id,fine FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		accounts []*Account
		byID     = make(map[int64]*Account)
	)
	for rows.Next() {
		var (
			id   int64
			fine int

			username, password, role, uid string
		)
		if err := rows.Scan(&id, &username, &password, &role, &uid, &fine); err != nil {
			return nil, err
		}
		acc, err := NewAccount(username, password, role, uid, fine)
		if err != nil {
			d.log.Warn("skipping account row", zap.Int64("id", id), zap.String("username", username), zap.Error(err))
			continue
		}
		accounts = append(accounts, acc)
		byID[id] = acc
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hist, err := d.db.QueryContext(ctx, `SELECT account_id,title FROM history ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer hist.Close()
	for hist.Next() {
		var (
			accountID int64
			title     string
		)
		if err := hist.Scan(&accountID, &title); err != nil {
			return nil, err
		}
		if acc, ok := byID[accountID]; ok {
			acc.User.AddHistory(title)
		}
	}
	return accounts, hist.Err()
}

// SaveAccounts replaces the stored accounts and their history.
func (d *Database) SaveAccounts(ctx context.Context, accounts []*Account) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts`); err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}

	accStmt := tx.StmtContext(ctx, d.insertAccountStmt)
	histStmt := tx.StmtContext(ctx, d.insertHistoryStmt)
	for _, acc := range accounts {
		if acc.User == nil {
			continue
		}
		res, err := accStmt.ExecContext(ctx, acc.Username, acc.Password, string(acc.Role()), acc.User.ID, acc.User.Fine)
		if err != nil {
			return fmt.Errorf("insert account %q: %w", acc.Username, err)
		}
		accountID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for _, title := range acc.User.History() {
			if _, err := histStmt.ExecContext(ctx, accountID, title); err != nil {
				return fmt.Errorf("insert history for %q: %w", acc.Username, err)
			}
		}
	}
	return tx.Commit()
}
