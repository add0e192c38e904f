package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/arezvov/voicemesh/internal/client"
	"github.com/arezvov/voicemesh/internal/config"
	"github.com/arezvov/voicemesh/internal/domain"
	"github.com/arezvov/voicemesh/internal/media"
	"github.com/arezvov/voicemesh/internal/playback"
	"github.com/arezvov/voicemesh/internal/rtc"
	"github.com/arezvov/voicemesh/internal/signaling"
	router "github.com/arezvov/voicemesh/internal/transport/http"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	fs := pflag.NewFlagSet("voicemesh", pflag.ContinueOnError)
	var (
		room     = fs.StringP("room", "r", "", "room to join")
		user     = fs.StringP("user", "u", "", "participant id (generated when empty)")
		logLevel = fs.StringP("log-level", "l", "info", "log level")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("failed to parse command line arguments")
	}
	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	zerolog.SetGlobalLevel(lvl)

	if *room == "" {
		log.Fatal().Msg("--room is required")
	}
	if *user == "" {
		*user = uuid.NewString()
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	signalURL := cfg.SignalURL
	if signalURL == "" {
		signalURL, err = signaling.URLFromOrigin(cfg.Origin)
		if err != nil {
			log.Fatal().Err(err).Msg("cannot derive signaling endpoint")
		}
	}

	channel := signaling.NewChannel(signalURL, cfg.ReconnectDelay, cfg.PingPeriod)
	c := client.New(client.Options{
		Signal:      channel,
		Source:      &media.SyntheticSource{},
		Player:      playback.NewRTPDrain(),
		WebRTC:      rtc.Config(cfg.STUNServers),
		Constraints: media.DefaultConstraints(),
	})
	channel.OnMessage(c.HandleSignal)
	channel.OnOpen(c.Announce)
	go channel.Run(ctx)

	if err := c.JoinRoom(ctx, domain.RoomID(*room), domain.UserID(*user)); err != nil {
		log.Fatal().Err(err).Msg("join failed")
	}

	srv := &http.Server{
		Addr:    cfg.DebugAddr,
		Handler: router.SetupRouter(cfg, c),
	}
	go func() {
		log.Info().Str("addr", cfg.DebugAddr).Msg("voicemesh client started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("debug server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	c.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("Exited gracefully")
}
