package config

import (
	"fmt"

	dbm "github.com/tendermint/tm-db"
)

// DBContext names the database a component asks for.
type DBContext struct {
	ID     string
	Config *Config
}

// DBProvider opens the database described by a DBContext.
type DBProvider func(*DBContext) (dbm.DB, error)

// DefaultDBProvider opens ctx.ID under the configured db_dir with the
// configured backend. Only goleveldb and memdb are built in.
func DefaultDBProvider(ctx *DBContext) (dbm.DB, error) {
	dbType := dbm.BackendType(ctx.Config.DBBackend)
	switch dbType {
	case dbm.GoLevelDBBackend, dbm.MemDBBackend:
	default:
		return nil, fmt.Errorf("unsupported db_backend %q", ctx.Config.DBBackend)
	}
	return dbm.NewDB(ctx.ID, dbType, ctx.Config.DBDir())
}
