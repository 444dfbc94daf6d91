package main

import (
	"context"

	"github.com/trezcool/peergrade/core/user"
)

func (cli *commandLine) addUser(name, uname, email, role, pwd string) error {
	ctx := context.Background()
	nu := user.NewUser{
		Name:            name,
		Username:        uname,
		Email:           email,
		Role:            role,
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	if err := nu.Validate(ctx, cli.usrSvc); err != nil {
		return err
	}
	usr, err := cli.usrSvc.Create(ctx, nu)
	if err != nil {
		return err
	}
	logger.Printf("user %s created: %s", usr.ID, usr.Email)
	return nil
}
