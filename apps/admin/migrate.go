package main

import (
	"github.com/youpass/youpass/storage/database"
)

var gooseRunFunc = database.RunMigration // mockable

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(args[0], cli.db, args[1:]...)
}
