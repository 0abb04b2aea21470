package main

import (
	"context"

	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/therapist"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	t, err := cli.therapists.GetTherapist(ctx, therapist.GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	if err := t.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.therapists.UpdateTherapist(ctx, t)
	return err
}
