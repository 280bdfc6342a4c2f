package main

import (
	"fmt"
	"os"

	"github.com/youpass/youpass/core"
	logsvc "github.com/youpass/youpass/services/logger"
	"github.com/youpass/youpass/storage/database"
	sqlxrepos "github.com/youpass/youpass/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger, err := logsvc.NewRollbarLogger(conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setting up logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if conf.Database.IsMemory() {
		logger.Error("admin commands need a postgres database: DATABASE_ENGINE is memory")
		os.Exit(1)
	}

	// set up DB
	if err = database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		db:      db.DB,
		usrRepo: sqlxrepos.NewUserRepository(db),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		logger.Sync()
		os.Exit(1)
	}
}
