package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/homeroom/core"
	"github.com/trezcool/homeroom/core/user"
)

type addUser struct {
	name, uname, email, pwd string
	isAdmin, isTeacher      bool
}

// addUser updates or creates a user.User, matched by username or email.
func (cli *commandLine) addUser(au addUser) error {
	ctx := context.Background()
	uname := core.CleanString(au.uname, true /* lower */)
	email := core.CleanString(au.email, true /* lower */)
	ref := uname
	if ref == "" {
		ref = email
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: ref})
	exists := err == nil
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return err
	}
	if !exists {
		if err = cli.usrRepo.CheckUsernameUniqueness(ctx, uname, email); err != nil {
			return err
		}
		now := user.NowFunc().UTC()
		usr = user.User{Username: uname, Email: email, CreatedAt: now}
	}

	if name := core.CleanString(au.name); name != "" {
		usr.Name = name
	}
	if usr.Name == "" {
		usr.Name = ref
	}
	switch {
	case au.isAdmin:
		usr.Roles = user.AllRoles
	case au.isTeacher && !usr.IsTeacher():
		usr.Roles = append(usr.Roles, user.RoleTeacher)
	}
	usr.IsActive = true
	usr.UpdatedAt = user.NowFunc().UTC()
	if err = usr.SetPassword(au.pwd); err != nil {
		return err
	}

	if exists {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	return err
}
