package client

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/vaultsync/internal/filex"
	"github.com/dmitrijs2005/vaultsync/internal/storage"
	"github.com/dmitrijs2005/vaultsync/internal/storage/sqlite"
)

// InitDatabase opens the local replica store. dsn is a file path, whose
// directory is created when missing, or a "file:" URI used as is.
func InitDatabase(ctx context.Context, dsn string) (storage.Store, error) {
	if !strings.HasPrefix(dsn, "file:") {
		path, err := filex.EnsureParentDir(dsn)
		if err != nil {
			return nil, err
		}
		dsn = path
	}
	return sqlite.Open(ctx, dsn)
}
