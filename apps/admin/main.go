package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/trezcool/homeroom/core"
	logsvc "github.com/trezcool/homeroom/services/logger"
	"github.com/trezcool/homeroom/storage/database"
	"github.com/trezcool/homeroom/storage/database/postgres"
	docrepos "github.com/trezcool/homeroom/storage/repos"
)

var logger core.Logger

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setting up logger: %v\n", err)
		os.Exit(1)
	}
	logger = logsvc.NewZapLoggerFrom(zl.Zap().Named("admin"))

	// set up DB
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := database.Open(ctx, conf, logger)
	cancel()
	errAndDie(err)

	// start CLI
	cli := commandLine{usrRepo: docrepos.NewUserRepository(store)}
	if pg, ok := store.(*postgres.Store); ok {
		cli.db = pg.DB()
	}

	err = cli.run(os.Args)
	if err != nil && err != errHelp {
		logger.Error(fmt.Sprintf("error: %v", err), err)
	}
	_ = store.Close()
	_ = zl.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
