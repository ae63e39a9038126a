package main

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/kitabu/kitabu/core/user"
	inmemdb "github.com/kitabu/kitabu/storage/database/inmem"
)

var usrRepo user.Repository

func setup(t *testing.T) *commandLine {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	usrRepo = inmemdb.NewUserRepository(db)

	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("LeMot2Passe"), nil }
	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version", "fix": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s requires a VERSION argument", command)
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	return &commandLine{usrRepo: usrRepo}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func runCliTests(t *testing.T, cli *commandLine, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
			case tt.wantErrStr != "":
				if err == nil || err.Error() != tt.wantErrStr {
					t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
				}
			default:
				if err != nil {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_run(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	}
	runCliTests(t, cli, tests)
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "missing email", args: []string{"adduser", "-username", "awe"}, wantErr: errHelp},
		{name: "ops user", args: []string{"adduser", "-username", "awe", "-email", "awe@test.in"}},
		{name: "admin user", args: []string{"adduser", "-username", "boss", "-email", "boss@test.in", "-admin"}},
	}
	runCliTests(t, cli, tests)

	ctx := context.Background()

	usr, err := usrRepo.GetUser(ctx, user.GetFilter{Username: "awe"})
	if err != nil {
		t.Fatalf("GetUser() failed: %v", err)
	}
	if usr.IsAdmin() {
		t.Error("default user should not be admin")
	}
	if !usr.IsOps() {
		t.Error("default user should get the ops role")
	}
	if err := usr.CheckPassword("LeMot2Passe"); err != nil {
		t.Errorf("CheckPassword() failed: %v", err)
	}

	boss, err := usrRepo.GetUser(ctx, user.GetFilter{Username: "boss"})
	if err != nil {
		t.Fatalf("GetUser() failed: %v", err)
	}
	if !boss.IsAdmin() {
		t.Error("-admin user should be admin")
	}

	// rerunning upgrades in place instead of duplicating
	if err := cli.run([]string{"admin", "adduser", "-username", "awe", "-email", "awe@test.in", "-admin"}); err != nil {
		t.Fatalf("cli.run() failed: %v", err)
	}
	usr, err = usrRepo.GetUser(ctx, user.GetFilter{Username: "awe"})
	if err != nil {
		t.Fatalf("GetUser() failed: %v", err)
	}
	if !usr.IsAdmin() {
		t.Error("rerun with -admin should grant admin roles")
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	if err := cli.run([]string{"admin", "adduser", "-username", "awe", "-email", "awe@test.in"}); err != nil {
		t.Fatalf("cli.run() failed: %v", err)
	}

	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("NewPass123"), nil }

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "unknown user", args: []string{"resetpassword", "-username", "nobody"}, wantErrStr: user.ErrNotFound.Error()},
		{name: "by username", args: []string{"resetpassword", "-username", "awe"}},
		{name: "by email", args: []string{"resetpassword", "-username", "awe@test.in"}},
	}
	runCliTests(t, cli, tests)

	usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{Username: "awe"})
	if err != nil {
		t.Fatalf("GetUser() failed: %v", err)
	}
	if err := usr.CheckPassword("NewPass123"); err != nil {
		t.Errorf("CheckPassword() failed: %v", err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to requires a VERSION argument"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	runCliTests(t, cli, tests)
}
