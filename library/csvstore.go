package library

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	bookFields    = 9
	accountFields = 5

	// Lines shorter than this are blank or junk and ignored without a warning.
	minRecordLen = 5

	// Longer lines are skipped with a warning.
	defaultMaxRecordLen = 16 << 20
)

// CSVStore keeps the catalog and the accounts in two comma-separated files,
// one record per line. Fields are not quoted, so values cannot contain commas.
//
//	catalog:  title,author,isbn,publisher,year,status,borrowDate,dueDate,borrowedBy
//	accounts: username,password,role,userID,fine[,returnedTitle...]
type CSVStore struct {
	booksPath    string
	accountsPath string
	maxLine      int
	log          *zap.Logger
}

// NewCSVStore returns a store over the two files. Missing files are created
// on the first save.
func NewCSVStore(booksPath, accountsPath string, log *zap.Logger) *CSVStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &CSVStore{
		booksPath:    booksPath,
		accountsPath: accountsPath,
		maxLine:      defaultMaxRecordLen,
		log:          log,
	}
}

func (s *CSVStore) Close() error { return nil }

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

func (s *CSVStore) LoadCatalog(ctx context.Context) ([]*Book, error) {
	var books []*Book
	err := s.readLines(ctx, s.booksPath, func(n int, line string) {
		b, err := ParseBookRecord(line)
		if err != nil {
			s.log.Warn("skipping catalog record",
				zap.String("path", s.booksPath), zap.Int("line", n), zap.Error(err))
			return
		}
		repairLoaded(b, s.log)
		books = append(books, b)
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("catalog loaded", zap.String("path", s.booksPath), zap.Int("books", len(books)))
	return books, nil
}

func (s *CSVStore) SaveCatalog(_ context.Context, books []*Book) error {
	return writeFileAtomic(s.booksPath, func(w io.Writer) error {
		for i, b := range books {
			if i > 0 {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, FormatBookRecord(b)); err != nil {
				return err
			}
		}
		return nil
	})
}

// ParseBookRecord decodes one catalog line.
func ParseBookRecord(line string) (*Book, error) {
	tok := strings.Split(line, ",")
	if len(tok) < bookFields {
		return nil, fmt.Errorf("want %d fields, got %d", bookFields, len(tok))
	}
	year, err := strconv.Atoi(strings.TrimSpace(tok[4]))
	if err != nil {
		return nil, fmt.Errorf("year: %w", err)
	}
	status := Status(tok[5])
	if status != StatusAvailable && status != StatusBorrowed {
		return nil, fmt.Errorf("unknown status %q", tok[5])
	}
	borrowDate, err := strconv.Atoi(strings.TrimSpace(tok[6]))
	if err != nil {
		return nil, fmt.Errorf("borrow date: %w", err)
	}
	dueDate, err := strconv.Atoi(strings.TrimSpace(tok[7]))
	if err != nil {
		return nil, fmt.Errorf("due date: %w", err)
	}
	return &Book{
		Title:      tok[0],
		Author:     tok[1],
		ISBN:       tok[2],
		Publisher:  tok[3],
		Year:       year,
		Status:     status,
		BorrowDate: Day(borrowDate),
		DueDate:    Day(dueDate),
		BorrowedBy: tok[8],
	}, nil
}

// FormatBookRecord encodes b as one catalog line without a trailing newline.
func FormatBookRecord(b *Book) string {
	return strings.Join([]string{
		b.Title,
		b.Author,
		b.ISBN,
		b.Publisher,
		strconv.Itoa(b.Year),
		string(b.Status),
		strconv.Itoa(int(b.BorrowDate)),
		strconv.Itoa(int(b.DueDate)),
		b.BorrowedBy,
	}, ",")
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

func (s *CSVStore) LoadAccounts(ctx context.Context) ([]*Account, error) {
	var accounts []*Account
	err := s.readLines(ctx, s.accountsPath, func(n int, line string) {
		acc, err := ParseAccountRecord(line)
		if err != nil {
			s.log.Warn("skipping account record",
				zap.String("path", s.accountsPath), zap.Int("line", n), zap.Error(err))
			return
		}
		accounts = append(accounts, acc)
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("accounts loaded", zap.String("path", s.accountsPath), zap.Int("accounts", len(accounts)))
	return accounts, nil
}

func (s *CSVStore) SaveAccounts(_ context.Context, accounts []*Account) error {
	return writeFileAtomic(s.accountsPath, func(w io.Writer) error {
		first := true
		for _, acc := range accounts {
			if acc.User == nil {
				continue
			}
			if !first {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
			}
			first = false
			if _, err := io.WriteString(w, FormatAccountRecord(acc)); err != nil {
				return err
			}
		}
		return nil
	})
}

// ParseAccountRecord decodes one account line. Fields after the fine are the
// user's returned titles, oldest first; empty ones are ignored.
func ParseAccountRecord(line string) (*Account, error) {
	tok := strings.Split(line, ",")
	if len(tok) < accountFields {
		return nil, fmt.Errorf("want at least %d fields, got %d", accountFields, len(tok))
	}
	fine, err := strconv.Atoi(strings.TrimSpace(tok[4]))
	if err != nil {
		return nil, fmt.Errorf("fine: %w", err)
	}
	acc, err := NewAccount(tok[0], tok[1], tok[2], tok[3], fine)
	if err != nil {
		return nil, err
	}
	for _, title := range tok[accountFields:] {
		if title != "" {
			acc.User.AddHistory(title)
		}
	}
	return acc, nil
}

// FormatAccountRecord encodes acc, history included, as one line.
func FormatAccountRecord(acc *Account) string {
	fields := []string{
		acc.Username,
		acc.Password,
		string(acc.Role()),
		acc.User.ID,
		strconv.Itoa(acc.User.Fine),
	}
	fields = append(fields, acc.User.History()...)
	return strings.Join(fields, ",")
}

// ---------------------------------------------------------------------------
// File helpers
// ---------------------------------------------------------------------------

func (s *CSVStore) readLines(ctx context.Context, path string, fn func(n int, line string)) error {
	f, err := os.Open(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		s.log.Info("data file not found, starting empty", zap.String("path", path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read %s: %w", path, err)
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case len(line) > s.maxLine:
			s.log.Warn("skipping oversized record",
				zap.String("path", path), zap.Int("line", n), zap.Int("bytes", len(line)))
		case len(line) >= minRecordLen:
			fn(n, line)
		}
		if err != nil {
			return nil
		}
	}
}

// writeFileAtomic writes through a temp file in the same directory and renames
// it over path, so a failed save never truncates the previous data.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
