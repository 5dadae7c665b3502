package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/cmdclient/internal/client"
	"github.com/danmuck/cmdclient/internal/observability"
	"github.com/danmuck/cmdclient/internal/protocol/command"
	"github.com/rs/zerolog/log"
)

type options struct {
	configPath string
	server     string
	name       string
	typ        string
	metadata   string
	async      bool
	login      bool
	exit       bool
	check      bool
	timeout    time.Duration
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("cmdctl", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "client config path (optional)")
	fs.StringVar(&opts.server, "server", "", "server address, overrides config")
	fs.StringVar(&opts.name, "name", "", "network name, overrides config")
	fs.StringVar(&opts.typ, "type", "message", "command type name or ordinal")
	fs.StringVar(&opts.metadata, "meta", "", "command metadata (utf-8 text)")
	fs.BoolVar(&opts.async, "async", false, "send through the dispatch queue")
	fs.BoolVar(&opts.login, "login", true, "announce the network name before sending")
	fs.BoolVar(&opts.exit, "exit", true, "send user_exit before disconnecting")
	fs.BoolVar(&opts.check, "check", false, "load and print the config, then exit")
	fs.DurationVar(&opts.timeout, "timeout", 10*time.Second, "overall deadline")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func resolveConfig(opts options) (client.Config, error) {
	cfg := client.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := loadClientConfig(opts.configPath)
		if err != nil {
			return client.Config{}, err
		}
		cfg = loaded
	}
	if v := strings.TrimSpace(opts.server); v != "" {
		cfg.ServerAddress = v
	}
	if v := strings.TrimSpace(opts.name); v != "" {
		cfg.NetworkName = v
	}
	if cfg.NetworkName == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.NetworkName = host
		}
	}
	return cfg, nil
}

func run(opts options) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}
	if opts.check {
		fmt.Printf("server=%s name=%s tls=%v queue=%d attempts=%d\n",
			cfg.ServerAddress, cfg.NetworkName, cfg.Session.TLS.Enabled, cfg.Dispatch.QueueSize, cfg.Dispatch.MaxAttempts)
		return nil
	}
	typ, err := command.ParseType(opts.typ)
	if err != nil {
		return err
	}

	c, err := client.New(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		_ = c.Close(ctx)
		return err
	}

	if opts.login {
		if err := c.Login(); err != nil {
			_ = c.Close(ctx)
			return err
		}
	}

	var meta []byte
	if opts.metadata != "" {
		meta = []byte(opts.metadata)
	}
	cmd := c.NewCommand(typ, meta)
	if opts.async {
		id, err := c.Send(cmd)
		if err != nil {
			_ = c.Close(ctx)
			return err
		}
		log.Info().Str("id", id.String()).Str("type", typ.String()).Msg("command queued")
	} else {
		if err := c.SendUnthreaded(cmd); err != nil {
			_ = c.Close(ctx)
			return err
		}
		log.Info().Str("type", typ.String()).Int("bytes", command.FrameLen(cmd)).Msg("command sent")
	}

	var closeErr error
	if opts.exit && typ != command.UserExit {
		closeErr = c.Disconnect(ctx)
	} else {
		closeErr = c.Close(ctx)
	}
	if failed := c.Failed(); len(failed) > 0 {
		return errors.Join(closeErr, fmt.Errorf("%d queued command(s) not delivered: %w", len(failed), failed[0].Err))
	}
	return closeErr
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	observability.InitLogger("cmdctl")
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "cmdctl: %v\n", err)
		os.Exit(1)
	}
}
