package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/homeroom/core"
	"github.com/trezcool/homeroom/core/user"
)

type resetPassword struct {
	ref, pwd string
	activate bool
}

// resetPassword sets a new password on the user matched by username or email. Inactive accounts
// stay inactive unless activate is set.
func (cli *commandLine) resetPassword(rp resetPassword) error {
	ctx := context.Background()
	ref := core.CleanString(rp.ref, true /* lower */)
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: ref})
	if err != nil {
		return errors.Wrapf(err, "getting user %q", ref)
	}
	if err = usr.SetPassword(rp.pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	if rp.activate {
		usr.IsActive = true
	}
	usr.UpdatedAt = user.NowFunc().UTC()
	_, err = cli.usrRepo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}
