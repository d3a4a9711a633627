package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pelusa-v/pelusa-im/internal/chat"
	"github.com/pelusa-v/pelusa-im/internal/contacts"
	"github.com/pelusa-v/pelusa-im/internal/handlers"
	"github.com/pelusa-v/pelusa-im/internal/identity"
	"github.com/pelusa-v/pelusa-im/internal/relay"
	"github.com/pelusa-v/pelusa-im/internal/sidebar"
)

var selfAccount int64

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat shell and its view API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int64Var(&selfAccount, "account", 0, "self account to use until the relay reports a login")
}

// networkFunc adapts a late-bound relay client to chat.Network.
type networkFunc func(target int64, content string) error

func (f networkFunc) SendFriendMessage(target int64, content string) error { return f(target, content) }

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := contacts.Open(cfg.DBPath(), logger.Named("contacts"))
	if err != nil {
		return err
	}
	defer store.Close()

	var (
		rc   *relay.Client
		loop *chat.Loop
	)
	id := identity.New()
	post := func(ctx context.Context, ev chat.Event) error { return loop.Post(ctx, ev) }

	sbOpts := sidebar.Options{
		Names:     store,
		Refresher: store,
		Post:      post,
		Timeout:   cfg.Relay.RefreshTimeout,
		Logger:    logger.Named("sidebar"),
	}
	if cfg.Relay.HTTP != "" {
		sbOpts.Source = relay.NewSource(cfg.Relay.HTTP, nil)
	}
	sb := sidebar.New(sbOpts)
	defer sb.Wait()

	registry := chat.NewRegistry(id, store, logger.Named("registry"))
	dispatcher := chat.NewDispatcher(registry, chat.DispatcherOptions{
		Sidebar:  sb,
		Identity: id,
		Backlog:  cfg.Loop.Backlog,
		Logger:   logger.Named("dispatcher"),
		Network: networkFunc(func(target int64, content string) error {
			if rc == nil {
				return relay.ErrClosed
			}
			return rc.SendFriendMessage(target, content)
		}),
	})
	hub := handlers.NewHub(store, logger.Named("view"))
	loop = chat.NewLoop(dispatcher, hub, cfg.Loop.Queue, logger.Named("loop"))

	if cfg.Relay.URL != "" {
		rc, err = relay.Dial(ctx, cfg.Relay.URL, relay.Options{
			Poster:     loop,
			Accounts:   store,
			SendBuffer: cfg.Relay.SendBuffer,
			Logger:     logger.Named("relay"),
		})
		if err != nil {
			return err
		}
		go func() {
			if err := rc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("relay connection closed", zap.Error(err))
			}
		}()
	}

	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	if err := seedIdentity(ctx, store, loop); err != nil {
		return err
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handlers.New(loop, hub, sb, logger.Named("http")).Register(app)

	go func() {
		<-ctx.Done()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	logger.Info("listening", zap.String("addr", cfg.Listen), zap.Bool("relay", cfg.Relay.URL != ""))
	if err := app.Listen(cfg.Listen); err != nil {
		return err
	}
	stop()
	if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// seedIdentity sets the self account from --account, or from the last login
// when no relay is configured. With a relay the login frame sets it.
func seedIdentity(ctx context.Context, store *contacts.Store, loop *chat.Loop) error {
	account := selfAccount
	if account == 0 && cfg.Relay.URL == "" {
		last, err := store.LastAccount(ctx)
		switch {
		case errors.Is(err, contacts.ErrNotFound):
		case err != nil:
			logger.Warn("read last account", zap.Error(err))
		default:
			account = last
		}
	}
	if account == 0 {
		return nil
	}
	return loop.Post(ctx, chat.IdentityReady{Account: account})
}
