package cli_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/okian/vauva/internal/adapters/http/api"
	"github.com/okian/vauva/internal/adapters/repository"
	service "github.com/okian/vauva/internal/app"
	"github.com/okian/vauva/internal/cli"
	"github.com/okian/vauva/internal/client"
	"github.com/okian/vauva/internal/config"
	"github.com/okian/vauva/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := service.New(
		service.WithAccounts([]config.Account{
			{Login: "acc1", Password: "secret", Usernames: []string{"A", "B"}},
			{Login: "solo", Password: "secret", Usernames: []string{"S"}},
		}),
		service.WithStoreDriver(repository.DriverSQLite, "", true),
		service.WithLogger(logger.Nop()),
	)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(svc.Stop)

	mux := http.NewServeMux()
	api.NewServer(svc, svc, api.WithSessionSecret("0123456789abcdef0123456789abcdef")).
		Register(context.Background(), mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRun(t *testing.T) {
	Convey("Given a running API and a preferences file", t, func() {
		ctx := context.Background()
		t.Setenv(cli.PasswordEnv, "")
		srv := newServer(t)
		base := cli.Config{
			BaseURL:   srv.URL,
			Account:   "acc1",
			Password:  "secret",
			PrefsPath: filepath.Join(t.TempDir(), "prefs.yaml"),
		}
		run := func(cfg cli.Config, args ...string) (string, error) {
			var out bytes.Buffer
			err := cli.Run(ctx, &cfg, logger.Nop(), args, &out)
			return out.String(), err
		}
		with := func(mut func(*cli.Config)) cli.Config {
			cfg := base
			mut(&cfg)
			return cfg
		}

		Convey("When no command is given", func() {
			_, err := run(base)
			So(errors.Is(err, cli.ErrUsage), ShouldBeTrue)
		})

		Convey("When the command is unknown", func() {
			_, err := run(base, "vote")
			So(errors.Is(err, cli.ErrUnknownCommand), ShouldBeTrue)
		})

		Convey("When names are listed", func() {
			out, err := run(cli.Config{BaseURL: srv.URL}, "names", "boys", "abc")

			Convey("Then a page prints without logging in", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "Aapo")
				So(out, ShouldContainSubstring, "boys/abc page 1 of")
			})
		})

		Convey("When names get a bad argument", func() {
			_, err := run(base, "names", "teal")
			So(errors.Is(err, cli.ErrUsage), ShouldBeTrue)
		})

		Convey("When credentials are missing", func() {
			_, err := run(with(func(c *cli.Config) { c.Password = "" }), "results")
			So(errors.Is(err, cli.ErrNoCredentials), ShouldBeTrue)
		})

		Convey("When the password comes from the environment", func() {
			t.Setenv(cli.PasswordEnv, "secret")
			out, err := run(with(func(c *cli.Config) { c.Password = "" }), "results")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "no hearts yet")
		})

		Convey("When the password is wrong", func() {
			_, err := run(with(func(c *cli.Config) { c.Password = "nope" }), "results")
			So(client.IsUnauthorized(err), ShouldBeTrue)
		})

		Convey("When rating with several raters and none chosen", func() {
			_, err := run(base, "rate", "Aino", "4")
			So(errors.Is(err, cli.ErrNoActiveRater), ShouldBeTrue)
		})

		Convey("When the account has a single rater", func() {
			out, err := run(with(func(c *cli.Config) { c.Account = "solo" }), "rate", "Aino", "2")

			Convey("Then it is selected implicitly", func() {
				So(err, ShouldBeNil)
				So(out, ShouldEqual, "S: Aino ♥♥\n")
			})
		})

		Convey("When the score is not a number", func() {
			_, err := run(with(func(c *cli.Config) { c.Rater = "A" }), "rate", "Aino", "lots")
			So(errors.Is(err, cli.ErrUsage), ShouldBeTrue)
		})

		Convey("When A hearts a name", func() {
			out, err := run(with(func(c *cli.Config) { c.Rater = "A" }), "rate", "Aino", "4")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "A: Aino ♥♥♥♥\n")

			Convey("Then the next invocation remembers the rater", func() {
				out, err := run(base, "results")
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "A\n")
				So(out, ShouldContainSubstring, "Aino")
			})

			Convey("Then the same score again removes the heart", func() {
				out, err := run(base, "rate", "Aino", "4")
				So(err, ShouldBeNil)
				So(out, ShouldEqual, "A: Aino not rated\n")
			})

			Convey("Then round scoring needs a round", func() {
				_, err := run(base, "round", "Aino", "5")
				So(errors.Is(err, cli.ErrUsage), ShouldBeTrue)
			})

			Convey("Then a round score shows in the matrix", func() {
				inRound := with(func(c *cli.Config) { c.Round = 1 })
				out, err := run(inRound, "round", "Aino", "5")
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "round 1")
				So(out, ShouldContainSubstring, "Aino")

				out, err = run(base, "rounds")
				So(err, ShouldBeNil)
				So(out, ShouldEqual, "round 1\nnext 2\n")

				out, err = run(inRound, "results")
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "1.")
				So(out, ShouldContainSubstring, "Aino*")
			})

			Convey("Then delete removes it on the server", func() {
				out, err := run(base, "delete", "Aino")
				So(err, ShouldBeNil)
				So(out, ShouldEqual, "removed 1\n")

				out, err = run(base, "results")
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "no hearts yet")
			})
		})

		Convey("When delete is given no names", func() {
			_, err := run(with(func(c *cli.Config) { c.Rater = "A" }), "delete")
			So(errors.Is(err, cli.ErrUsage), ShouldBeTrue)
		})

		Convey("When logging out", func() {
			out, err := run(base, "logout")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "logged out (logged in: false)\n")
		})

		Convey("When there are no rounds", func() {
			out, err := run(base, "rounds")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "no rounds yet\nnext 1\n")
		})
	})
}

func TestShowHelp(t *testing.T) {
	Convey("Given the help text", t, func() {
		var out bytes.Buffer
		cli.ShowHelp(&out)
		So(out.String(), ShouldContainSubstring, "round NAME SCORE")
		So(out.String(), ShouldContainSubstring, "-prefs")
	})
}
