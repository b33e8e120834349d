// Command tomdash administers the target database: users, groups, targets,
// grants, and offline rendering of the target distribution figure.
package main

import (
	"database/sql"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tomdash/internal/auth"
	"tomdash/internal/permissions"
	"tomdash/internal/targets"
	"tomdash/pkg/database"
	"tomdash/pkg/utils"
)

var dbPath string

// env is what every subcommand works against.
type env struct {
	db      *sql.DB
	log     *zap.Logger
	users   *auth.Repo
	perms   *permissions.Repo
	targets *targets.Repo
}

func openEnv() (*env, error) {
	cfg, err := utils.LoadConfig()
	if err != nil {
		return nil, err
	}
	log, err := utils.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	dbCfg := database.DefaultConfig()
	if cfg.DBPath != "" {
		dbCfg.Path = cfg.DBPath
	}
	if dbPath != "" {
		dbCfg.Path = dbPath
	}

	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &env{
		db:      db,
		log:     log,
		users:   auth.NewRepo(db),
		perms:   permissions.NewRepo(db),
		targets: targets.NewRepo(db),
	}, nil
}

func (e *env) Close() {
	_ = e.log.Sync()
	_ = e.db.Close()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tomdash",
		Short:         "Administer the tomdash target database",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "", "sqlite database path (default: $TOMDASH_DB_PATH or ~/.tomdash/tom.db)")

	root.AddCommand(newUserCmd(), newGroupCmd(), newTargetCmd(), newGrantCmd(), newPlotCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
