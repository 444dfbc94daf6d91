package main

import (
	"log"
	"os"

	"github.com/trezcool/peergrade/core"
	"github.com/trezcool/peergrade/core/assignment"
	"github.com/trezcool/peergrade/core/submission"
	"github.com/trezcool/peergrade/core/user"
	emailsvc "github.com/trezcool/peergrade/services/email"
	"github.com/trezcool/peergrade/storage/database"
	sqlxrepos "github.com/trezcool/peergrade/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	// set up DB
	sqlDB, err := database.Open(core.Conf)
	errAndDie(err)
	defer sqlDB.Close()
	errAndDie(sqlDB.Ping())
	db := database.Wrap(sqlDB, core.Conf)

	mailSvc := emailsvc.NewConsoleService()
	usrRepo := sqlxrepos.NewUserRepository(db)
	schoolRepo := sqlxrepos.NewSchoolRepository(db)
	asgRepo := sqlxrepos.NewAssignmentRepository(db)
	subRepo := sqlxrepos.NewSubmissionRepository(db)

	// start CLI
	cli := commandLine{
		db:     sqlDB,
		usrSvc: user.NewService(usrRepo),
		asgSvc: assignment.NewService(db, asgRepo, usrRepo, mailSvc),
		subSvc: submission.NewService(db, subRepo, usrRepo, schoolRepo, asgRepo, mailSvc),
	}
	if err := cli.run(os.Args); err != nil {
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
