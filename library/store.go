package library

import "context"

// Store loads and saves the catalog and the accounts. Loads are best effort:
// malformed records are skipped and logged, never turned into an error.
type Store interface {
	LoadCatalog(ctx context.Context) ([]*Book, error)
	SaveCatalog(ctx context.Context, books []*Book) error
	LoadAccounts(ctx context.Context) ([]*Account, error)
	SaveAccounts(ctx context.Context, accounts []*Account) error
	Close() error
}
