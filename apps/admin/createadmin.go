package main

import (
	"context"
	"fmt"

	"github.com/trezcool/schoolhub/core/user"
)

// createAdmin creates an approved admin account.
func (cli *commandLine) createAdmin(name, email, pwd string) error {
	ctx := context.Background()
	na := user.NewAdmin{Name: name, Email: email, Password: pwd}
	if err := na.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return err
	}
	usr, err := cli.usrSvc.CreateAdmin(ctx, na)
	if err != nil {
		return err
	}
	fmt.Printf("admin %s <%s> created\n", usr.Name, usr.Email)
	return nil
}
