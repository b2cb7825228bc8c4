package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/feedkeeper/internal/dbx"
	"github.com/dmitrijs2005/feedkeeper/internal/server/repositories/follows"
	"github.com/dmitrijs2005/feedkeeper/internal/server/repositories/messages"
	"github.com/dmitrijs2005/feedkeeper/internal/server/repositories/pointers"
)

// RepositoryManager vends repositories bound to a DBTX, so services can
// choose between the pool and an open transaction per call.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Pointers(db dbx.DBTX) pointers.Repository
	Follows(db dbx.DBTX) follows.Repository
	Messages(db dbx.DBTX) messages.Repository
}
