package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/therapist"
	inmemdb "github.com/evasensorial/eva/storage/database/inmem"
)

var therapistRepo therapist.Repository

func setup(t *testing.T) *commandLine {
	therapistRepo = inmemdb.NewTherapistRepository(inmemdb.Open())
	return &commandLine{therapists: therapistRepo}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	migrateFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "consents", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				if assert.Error(t, err) {
					assert.Equal(t, tt.wantErrStr, err.Error())
				}
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_addTherapist(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"addtherapist"}, wantErr: errHelp},
		{name: "email but no name", args: []string{"addtherapist", "-email", "ana@eva.co"}, wantErr: errHelp},
		{name: "no password", args: []string{"addtherapist", "-email", "ana@eva.co", "-name", "Ana"}, wantErr: errHelp},
		{
			name:  "create",
			args:  []string{"addtherapist", "-email", " Ana@EVA.co ", "-name", "Ana Ruiz", "-superadmin"},
			extra: extra{pwd: "s3cretPass!"},
		},
		{
			name:  "update existing",
			args:  []string{"addtherapist", "-email", "ana@eva.co", "-name", "Ana María Ruiz"},
			extra: extra{pwd: "an0therPass!"},
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			if !assert.NoError(t, err) {
				return
			}
			saved, err := therapistRepo.GetTherapist(ctx, therapist.GetFilter{Email: "ana@eva.co"})
			if assert.NoError(t, err) {
				assert.NoError(t, saved.CheckPassword(tt.extra.(extra).pwd))
			}
		})
	}

	therapists, err := therapistRepo.QueryTherapists(ctx, nil)
	if assert.NoError(t, err) && assert.Len(t, therapists, 1) {
		assert.Equal(t, "Ana María Ruiz", therapists[0].Name)
		assert.False(t, therapists[0].IsSuperAdmin)
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	th := therapist.Therapist{Name: "Luis Pardo", Email: "luis@eva.co"}
	if err := th.SetPassword("initialPass1"); err != nil {
		t.Fatalf("SetPassword() failed, %v", err)
	}
	th, err := therapistRepo.CreateTherapist(ctx, th)
	if err != nil {
		t.Fatalf("CreateTherapist() failed, %v", err)
	}

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@eva.co"}, wantErr: errHelp},
		{name: "therapist not found", args: []string{"resetpassword", "-email", "lol@eva.co"}, extra: extra{pwd: "lol"}, wantErr: therapist.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", th.Email}, extra: extra{pwd: "lmaoPass9"}},
		{name: "reset with upper-cased email", args: []string{"resetpassword", "-email", "LUIS@eva.co"}, extra: extra{pwd: "lolPass12"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshed, err := therapistRepo.GetTherapist(ctx, therapist.GetFilter{ID: th.ID})
				if err != nil {
					t.Fatalf("GetTherapist() failed, %v", err)
				}
				if bytes.Equal(refreshed.PasswordHash, th.PasswordHash) {
					t.Error("failed to update new password")
				}
				th = refreshed
			} else if !(err == tt.wantErr || (core.IsNotFound(tt.wantErr) && core.IsNotFound(err))) {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
