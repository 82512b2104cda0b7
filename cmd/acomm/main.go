// Command acomm is the bridge's single entry point: the broker daemon,
// the plain terminal clients, and the chat-platform adapters are all
// reachable from one binary, selected by flag rather than by verb.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/yuiseki/acomm/internal/broker"
	"github.com/yuiseki/acomm/internal/buildinfo"
	"github.com/yuiseki/acomm/internal/config"
	"github.com/yuiseki/acomm/internal/discordgw"
	"github.com/yuiseki/acomm/internal/ntfyadapter"
	"github.com/yuiseki/acomm/internal/session"
	"github.com/yuiseki/acomm/internal/slackadapter"
	"github.com/yuiseki/acomm/internal/termclient"
)

func main() {
	app := &cli.Command{
		Name:  "acomm",
		Usage: "local conversational event-hub bridge for pluggable AI-agent backends",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to config file"},
			&cli.BoolFlag{Name: "bridge", Usage: "run the broker"},
			&cli.StringFlag{Name: "publish", Usage: "publish one Prompt; \"-\" reads stdin to EOF"},
			&cli.StringFlag{Name: "channel", Usage: "channel for --publish"},
			&cli.BoolFlag{Name: "subscribe", Aliases: []string{"s"}, Usage: "stream broker events to stdout"},
			&cli.BoolFlag{Name: "dump", Usage: "drain available backlog and exit"},
			&cli.BoolFlag{Name: "reset", Usage: "publish /clear on channel bridge"},
			&cli.BoolFlag{Name: "slack", Usage: "run the Slack adapter, or target Slack for --agent"},
			&cli.BoolFlag{Name: "ntfy", Usage: "run the ntfy adapter, or target ntfy for --agent"},
			&cli.BoolFlag{Name: "discord", Usage: "run the Discord adapter, or target Discord for --agent"},
			&cli.StringFlag{Name: "agent", Usage: "send a proactive platform message, bypassing the broker"},
			&cli.BoolFlag{Name: "version", Usage: "print version and build metadata"},
		},
		Action: run,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "acomm:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *cli.Command) error {
	if c.Bool("version") {
		info := buildinfo.BuildInfo()
		fmt.Println(buildinfo.String())
		for _, k := range []string{"go_version", "os", "arch"} {
			fmt.Printf("  %-12s %s\n", k+":", info[k])
		}
		return nil
	}

	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)

	if agentText := c.String("agent"); agentText != "" {
		return runAgent(logger, cfg, agentText, c.Bool("discord"), c.Bool("slack"), c.Bool("ntfy"))
	}

	if c.Bool("bridge") {
		return runBridge(ctx, logger, cfg)
	}

	if c.Bool("reset") {
		return termclient.Publish(cfg.Socket.Path, "bridge", "/clear", nil)
	}

	if msg := c.String("publish"); msg != "" {
		return termclient.Publish(cfg.Socket.Path, c.String("channel"), msg, os.Stdin)
	}

	if c.Bool("subscribe") {
		return termclient.Subscribe(ctx, cfg.Socket.Path, os.Stdout)
	}

	if c.Bool("dump") {
		return termclient.Dump(ctx, cfg.Socket.Path, os.Stdout)
	}

	if c.Bool("discord") {
		return discordgw.NewAdapter(discordConfig(logger, cfg)).Run(ctx)
	}
	if c.Bool("slack") {
		return slackadapter.NewAdapter(slackConfig(logger, cfg)).Run(ctx)
	}
	if c.Bool("ntfy") {
		return ntfyadapter.NewAdapter(ntfyConfig(logger, cfg)).Run(ctx)
	}

	return fmt.Errorf("no action specified; see --help")
}

func loadConfig(explicit string) (*config.Config, error) {
	path, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, err
		}
		return config.Default(), nil
	}
	return config.Load(path)
}

func newLogger(level string) *slog.Logger {
	lvl, err := config.ParseLogLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       lvl,
		ReplaceAttr: config.ReplaceLogLevelNames,
	})
	return slog.New(handler)
}

func runBridge(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	memTool := session.NewMemoryTool()
	b := broker.New(broker.Config{
		SocketPath: cfg.Socket.Path,
		MaxBacklog: cfg.Backlog.MaxEntries,
		MemoryTool: memTool,
		ContextFunc: func(ctx context.Context) string {
			today, err := memTool.Today(ctx)
			if err != nil {
				return ""
			}
			return today
		},
		Logger: logger,
	})
	return b.Run(ctx)
}

func discordConfig(logger *slog.Logger, cfg *config.Config) discordgw.Config {
	var allowlist []string
	if csv := os.Getenv("DISCORD_ALLOWED_USER_IDS"); csv != "" {
		allowlist = splitCSV(csv)
	}
	return discordgw.Config{
		Token:           os.Getenv("DISCORD_BOT_TOKEN"),
		SocketPath:      cfg.Socket.Path,
		AllowedUserIDs:  allowlist,
		NotifyChannelID: os.Getenv("DISCORD_NOTIFY_CHANNEL_ID"),
		Logger:          logger,
	}
}

func slackConfig(logger *slog.Logger, cfg *config.Config) slackadapter.Config {
	return slackadapter.Config{
		AppToken:   os.Getenv("SLACK_APP_TOKEN"),
		BotToken:   os.Getenv("SLACK_BOT_TOKEN"),
		SocketPath: cfg.Socket.Path,
		Logger:     logger,
	}
}

func ntfyConfig(logger *slog.Logger, cfg *config.Config) ntfyadapter.Config {
	return ntfyadapter.Config{
		Topic:      os.Getenv("NTFY_TOPIC"),
		SocketPath: cfg.Socket.Path,
		Logger:     logger,
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// runAgent implements `--agent <text> [--discord|--slack|--ntfy]`: a
// proactive platform message that bypasses the broker entirely. With
// no explicit target, every adapter is tried and a missing
// prerequisite (token/topic/env var) is a skip; with explicit targets,
// any failure is fatal.
func runAgent(logger *slog.Logger, cfg *config.Config, text string, discordTarget, slackTarget, ntfyTarget bool) error {
	anyTarget := discordTarget || slackTarget || ntfyTarget

	notify := func(name string, wanted bool, fn func() error) error {
		if !anyTarget || wanted {
			if err := fn(); err != nil {
				if anyTarget {
					return fmt.Errorf("%s: %w", name, err)
				}
				fmt.Fprintf(os.Stderr, "%s: skipped (%v)\n", name, err)
				return nil
			}
			fmt.Printf("%s: sent.\n", name)
		}
		return nil
	}

	if err := notify("Discord", discordTarget, func() error {
		return discordgw.NewAdapter(discordConfig(logger, cfg)).Notify(text)
	}); err != nil {
		return err
	}
	if err := notify("Slack", slackTarget, func() error {
		return slackadapter.NewAdapter(slackConfig(logger, cfg)).Notify(text)
	}); err != nil {
		return err
	}
	if err := notify("ntfy", ntfyTarget, func() error {
		return ntfyadapter.NewAdapter(ntfyConfig(logger, cfg)).Notify(text)
	}); err != nil {
		return err
	}
	return nil
}
