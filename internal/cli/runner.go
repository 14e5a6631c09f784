package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/okian/vauva/internal/catalog"
	"github.com/okian/vauva/internal/client"
	"github.com/okian/vauva/internal/prefs"
	"github.com/okian/vauva/internal/voting"
	"github.com/okian/vauva/pkg/logger"
)

type runner struct {
	cfg     *Config
	client  *client.Client
	session *voting.Session
	out     io.Writer
	log     logger.Logger
}

// Run executes the command in args and prints its outcome to out.
func Run(ctx context.Context, cfg *Config, log logger.Logger, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", ErrUsage)
	}
	if log == nil {
		log = logger.Nop()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c, err := client.New(baseURL, client.WithTimeout(timeout), client.WithLogger(log))
	if err != nil {
		return err
	}
	r := &runner{cfg: cfg, client: c, out: out, log: log}

	cmd, rest := args[0], args[1:]
	log.Debug(ctx, "running command", logger.String("command", cmd), logger.Strings("args", rest))
	switch cmd {
	case "names":
		return r.names(ctx, rest)
	case "rate", "round", "results", "delete", "rounds", "logout":
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}

	if err := r.open(ctx); err != nil {
		return err
	}
	switch cmd {
	case "rate":
		return r.rate(ctx, rest)
	case "round":
		return r.round(ctx, rest)
	case "results":
		return r.results()
	case "delete":
		return r.remove(ctx, rest)
	case "rounds":
		return r.rounds()
	default:
		return r.logout(ctx)
	}
}

// open logs in, selects the rater and loads the working set.
func (r *runner) open(ctx context.Context) error {
	password := r.cfg.Password
	if password == "" {
		password = os.Getenv(PasswordEnv)
	}
	if r.cfg.Account == "" || password == "" {
		return ErrNoCredentials
	}
	if err := r.client.Login(ctx, r.cfg.Account, password); err != nil {
		return err
	}
	acc, err := r.client.User(ctx)
	if err != nil {
		return err
	}

	opts := []voting.SessionOption{
		voting.WithPersistence(r.client),
		voting.WithAccount(acc),
		voting.WithLogger(r.log.Named("session")),
	}
	if p := r.openPrefs(ctx); p != nil {
		opts = append(opts, voting.WithPreferences(p))
	}
	r.session = voting.NewSession(opts...)

	switch {
	case r.cfg.Rater != "":
		if err := r.session.SelectRater(ctx, r.cfg.Rater); err != nil {
			return err
		}
	case r.session.Restore(ctx) != "":
	case len(acc.Usernames) == 1:
		if err := r.session.SelectRater(ctx, acc.Usernames[0]); err != nil {
			return err
		}
	}

	if err := r.session.Load(ctx); err != nil {
		return err
	}
	if r.cfg.Round > 0 {
		r.session.EnterRound(ctx, r.cfg.Round)
	}
	return nil
}

// openPrefs returns nil when no preferences file can be used; the rater is
// then not remembered.
func (r *runner) openPrefs(ctx context.Context) *prefs.File {
	path := r.cfg.PrefsPath
	if path == "" {
		path = prefs.DefaultPath()
	}
	f, err := prefs.Open(path)
	if err != nil {
		r.log.Warn(ctx, "preferences unavailable", logger.String("path", path), logger.Error(err))
		return nil
	}
	return f
}

func (r *runner) requireRater() error {
	if r.session.State().ActiveUsername == "" {
		return fmt.Errorf("%w (one of %v)", ErrNoActiveRater, r.session.Account().Usernames)
	}
	return nil
}

func (r *runner) saveIfPending(ctx context.Context) error {
	if !r.session.Pending() {
		return nil
	}
	return r.session.Save(ctx)
}

func (r *runner) rate(ctx context.Context, args []string) error {
	name, score, err := nameScore("rate", args)
	if err != nil {
		return err
	}
	if err := r.requireRater(); err != nil {
		return err
	}
	if err := r.session.Rate(ctx, name, score); err != nil {
		return err
	}
	if err := r.saveIfPending(ctx); err != nil {
		return err
	}
	printRating(r.out, r.session.State().ActiveUsername, name, r.session.Rating(name))
	return nil
}

func (r *runner) round(ctx context.Context, args []string) error {
	name, score, err := nameScore("round", args)
	if err != nil {
		return err
	}
	if err := r.requireRater(); err != nil {
		return err
	}
	if r.cfg.Round < 1 {
		return fmt.Errorf("%w: round needs -round N (next is %d)", ErrUsage, voting.NextRound(r.session.State().Hearts))
	}
	if err := r.session.RateRound(ctx, name, score); err != nil {
		return err
	}
	if err := r.saveIfPending(ctx); err != nil {
		return err
	}
	printMatrix(r.out, r.session.Matrix())
	return nil
}

func (r *runner) results() error {
	if r.session.State().ActiveRound == 0 {
		printGroups(r.out, r.session.Results())
		return nil
	}
	printMatrix(r.out, r.session.Matrix())
	_, _ = fmt.Fprintln(r.out)
	printStanding(r.out, r.session.Standing())
	return nil
}

func (r *runner) remove(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("%w: delete NAME...", ErrUsage)
	}
	if err := r.requireRater(); err != nil {
		return err
	}
	before := len(r.session.State().Hearts)
	if err := r.session.DeleteNames(ctx, names...); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(r.out, "removed %d\n", before-len(r.session.State().Hearts))
	return nil
}

func (r *runner) rounds() error {
	rounds := r.session.Rounds()
	if len(rounds) == 0 {
		_, _ = fmt.Fprintln(r.out, "no rounds yet")
	}
	for _, n := range rounds {
		_, _ = fmt.Fprintf(r.out, "round %d\n", n)
	}
	_, _ = fmt.Fprintf(r.out, "next %d\n", voting.NextRound(r.session.State().Hearts))
	return nil
}

func (r *runner) logout(ctx context.Context) error {
	acc, err := r.client.Logout(ctx)
	if err != nil {
		return err
	}
	r.session.Logout(ctx)
	_, _ = fmt.Fprintf(r.out, "logged out (logged in: %t)\n", acc.IsLoggedIn)
	return nil
}

func (r *runner) names(ctx context.Context, args []string) error {
	q := catalog.Query{View: catalog.Girls, Order: catalog.Common}
	for _, a := range args {
		switch v := catalog.View(a); v {
		case catalog.Girls, catalog.Boys:
			q.View = v
			continue
		}
		switch o := catalog.Order(a); o {
		case catalog.Common, catalog.Rare, catalog.ABC, catalog.CBA:
			q.Order = o
			continue
		}
		page, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("%w: names [girls|boys] [common|rare|abc|cba] [page]: %q", ErrUsage, a)
		}
		q.Page = page
	}
	page, err := r.client.Names(ctx, q)
	if err != nil {
		return err
	}
	printNames(r.out, page)
	return nil
}

func nameScore(cmd string, args []string) (string, int, error) {
	if len(args) != 2 {
		return "", 0, fmt.Errorf("%w: %s NAME SCORE", ErrUsage, cmd)
	}
	score, err := strconv.Atoi(args[1])
	if err != nil {
		return "", 0, fmt.Errorf("%w: %s NAME SCORE: %w", ErrUsage, cmd, err)
	}
	return args[0], score, nil
}
