package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"auracal/internal/capture"
	"auracal/internal/commands"
	"auracal/internal/config"
	"auracal/internal/daily"
	appLog "auracal/internal/log"
	"auracal/internal/memorial"
	"auracal/internal/notify"
	"auracal/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := commands.HashPassword(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	appLog.Info("auracal starting", "version", version)

	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		appLog.Error("failed to read .env", err)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.debug {
		conf.UseDevPaths()
	}

	loc := resolveLocationOrLocal(conf.Timezone)

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"refresh", conf.RefreshCron,
		"store_driver", conf.Store.Driver,
		"store_path", conf.Store.Path,
		"cache_dir", conf.CacheDir,
		"model", conf.AI.Model,
		"telegram", conf.TelegramEnabled(),
		"once", flags.once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, loc, flags.once); err != nil {
		appLog.Error("auracal exited with error", err)
		os.Exit(1)
	}
	appLog.Info("auracal exiting")
}

func run(ctx context.Context, conf *config.Config, loc *time.Location, once bool) error {
	repo, err := memorial.Open(conf.Store.Driver, conf.Store.Path)
	if err != nil {
		return err
	}
	if c, ok := repo.(io.Closer); ok {
		defer c.Close()
	}
	store := memorial.NewStore(repo)
	if err := store.Load(ctx); err != nil {
		return err
	}

	apiKey := conf.APIKey()
	if apiKey == "" {
		return errors.New("no API key: set ai.api_key or GEMINI_API_KEY")
	}
	provider, err := daily.NewGeminiProvider(ctx, daily.GeminiOptions{
		APIKey:     apiKey,
		TextModel:  conf.AI.Model,
		ImageModel: conf.AI.ImageModel,
	})
	if err != nil {
		return err
	}

	svc := daily.NewService(provider, daily.Options{
		Location: loc,
		Timeout:  time.Duration(conf.AI.TimeoutSeconds) * time.Second,
		Cache:    daily.NewCache(conf.CacheDir),
	})

	poster := capture.NewPoster(nil, capture.CaptureOptions{
		Width:   conf.Poster.Width,
		Scale:   conf.Poster.Scale,
		Settle:  time.Duration(conf.Poster.SettleMillis) * time.Millisecond,
		Timeout: time.Duration(conf.Poster.TimeoutSeconds) * time.Second,
	})

	srv := web.NewServer(web.Options{
		Config: conf,
		Store:  store,
		Daily:  svc,
		Poster: poster,
	})

	var notifier *notify.Notifier
	if conf.TelegramEnabled() {
		notifier, err = notify.NewTelegram(conf.Telegram.Token, conf.Telegram.ChatID)
		if err != nil {
			// Delivery is optional; the calendar keeps working without it.
			appLog.Error("telegram disabled", err)
			notifier = nil
		}
	}

	d := &digest{conf: conf, store: store, daily: svc, server: srv, notifier: notifier}

	if once {
		if _, err := svc.Refresh(ctx); err != nil {
			return err
		}
		d.send(ctx)
		fmt.Println(d.text())
		return nil
	}

	go func() {
		if _, err := svc.Refresh(ctx); err != nil {
			appLog.Error("initial daily refresh failed", err)
		}
	}()

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(conf.RefreshCron, func() {
		if _, err := svc.Refresh(ctx); err != nil {
			appLog.Error("scheduled daily refresh failed", err)
			return
		}
		d.send(ctx)
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", conf.RefreshCron, err)
	}
	c.Start()
	defer func() {
		<-c.Stop().Done()
	}()

	return srv.Run(ctx)
}

// digest pushes the daily summary after a scheduled refresh.
type digest struct {
	conf     *config.Config
	store    *memorial.Store
	daily    *daily.Service
	server   *web.Server
	notifier *notify.Notifier
}

func (d *digest) text() string {
	snap := d.daily.Snapshot()
	return notify.FormatDigest(snap.Info, d.store.ListNearest(d.daily.Today(), d.conf.CountdownCount))
}

func (d *digest) send(ctx context.Context) {
	if d.notifier == nil || !d.daily.Snapshot().Ready() {
		return
	}

	var png []byte
	if d.conf.Telegram.SendPoster {
		var err error
		png, err = d.server.CapturePoster(ctx)
		if err != nil {
			appLog.Error("digest poster capture failed; sending text only", err)
			png = nil
		}
	}

	if err := d.notifier.SendDigest(ctx, d.text(), png); err != nil {
		appLog.Error("digest delivery failed", err)
		return
	}
	appLog.Info("digest delivered", "chat_id", d.conf.Telegram.ChatID, "poster", png != nil)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/auracal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Refresh today's data, print the digest and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Debug logging and ./cache paths")

	flag.Parse()

	return cfg
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}
