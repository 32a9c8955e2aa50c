package main

import (
	"log"
	"os"

	"github.com/celsofranciscano/innotech/core"
	"github.com/celsofranciscano/innotech/core/catalog"
	"github.com/celsofranciscano/innotech/storage/database"
	pgrepos "github.com/celsofranciscano/innotech/storage/database/postgres"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)

	// start CLI
	cli := commandLine{
		db:         db.DB,
		usrRepo:    pgrepos.NewUserRepository(db),
		catalogSvc: catalog.NewService(pgrepos.NewCatalogRepository(db)),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
