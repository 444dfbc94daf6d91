package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	echoapi "github.com/trezcool/peergrade/apps/api/echo"
	"github.com/trezcool/peergrade/core"
	"github.com/trezcool/peergrade/core/assignment"
	"github.com/trezcool/peergrade/core/school"
	"github.com/trezcool/peergrade/core/submission"
	"github.com/trezcool/peergrade/core/user"
	emailsvc "github.com/trezcool/peergrade/services/email"
	logsvc "github.com/trezcool/peergrade/services/logger"
	"github.com/trezcool/peergrade/storage/database"
	sqlxrepos "github.com/trezcool/peergrade/storage/database/sqlx"
)

func main() {
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		core.Conf,
	)
	logger.Enable(!core.Conf.Debug)

	// set up DB
	sqlDB, err := setUpDB(core.Conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = sqlDB.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()
	db := database.Wrap(sqlDB, core.Conf)

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	usrRepo := sqlxrepos.NewUserRepository(db)
	schoolRepo := sqlxrepos.NewSchoolRepository(db)
	asgRepo := sqlxrepos.NewAssignmentRepository(db)
	subRepo := sqlxrepos.NewSubmissionRepository(db)

	usrSvc := user.NewService(usrRepo)
	schoolSvc := school.NewService(schoolRepo)
	asgSvc := assignment.NewService(db, asgRepo, usrRepo, mailSvc)
	subSvc := submission.NewService(db, subRepo, usrRepo, schoolRepo, asgRepo, mailSvc)

	logger.Info(fmt.Sprintf("Application initializing : version %q", core.Conf.Build))
	defer logger.Info("Application stopped")

	// start API server
	server := echoapi.NewServer(&echoapi.Options{
		Address:       core.Conf.Server.Address(),
		Logger:        logger,
		UserSvc:       usrSvc,
		SchoolSvc:     schoolSvc,
		AssignmentSvc: asgSvc,
		SubmissionSvc: subSvc,
	})

	go server.Start()

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), core.Conf.Server.ShutdownTimeout)
		defer cancel()

		if err = server.Stop(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db, conf); err != nil {
		return nil, err
	}
	return db, nil
}
