package main

import (
	"context"
	"time"

	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/therapist"
)

// addTherapist updates or creates a therapist.Therapist
func (cli *commandLine) addTherapist(name, email, pwd string, isSuperAdmin bool) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)

	t, err := cli.therapists.GetTherapist(ctx, therapist.GetFilter{Email: email})
	if err != nil && !core.IsNotFound(err) {
		return err
	}
	found := err == nil

	t.Name = name
	t.Email = email
	t.IsSuperAdmin = isSuperAdmin
	if err = t.SetPassword(pwd); err != nil {
		return err
	}
	if found {
		_, err = cli.therapists.UpdateTherapist(ctx, t)
		return err
	}
	t.CreatedAt = time.Now().UTC()
	_, err = cli.therapists.CreateTherapist(ctx, t)
	return err
}
