package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/vauva/internal/cli"
	"github.com/okian/vauva/pkg/logger"
)

func main() {
	var (
		baseURL   = flag.String("url", cli.DefaultBaseURL, "Base URL of the service")
		account   = flag.String("account", "", "Login")
		password  = flag.String("password", "", "Password (default: $"+cli.PasswordEnv+")")
		rater     = flag.String("rater", "", "Rater to act as; remembered for later invocations")
		round     = flag.Int("round", 0, "Extension round, 0 for the base round")
		prefsPath = flag.String("prefs", "", "Preferences file (default: user config dir)")
		timeout   = flag.Duration("timeout", cli.DefaultTimeout, "HTTP request timeout")
		verbose   = flag.Bool("verbose", false, "Enable debug logging")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help || flag.NArg() == 0 {
		cli.ShowHelp(os.Stdout)
		return
	}

	if err := cli.SetupLogging(*verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &cli.Config{
		BaseURL:   *baseURL,
		Account:   *account,
		Password:  *password,
		Rater:     *rater,
		Round:     *round,
		PrefsPath: *prefsPath,
		Timeout:   *timeout,
		Verbose:   *verbose,
	}
	if err := cli.Run(ctx, cfg, logger.Get(), flag.Args(), os.Stdout); err != nil {
		os.Stderr.WriteString("vauvactl: " + err.Error() + "\n")
		if errors.Is(err, cli.ErrUsage) || errors.Is(err, cli.ErrUnknownCommand) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
