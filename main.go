package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"elevdispatch/config"
	"elevdispatch/controller"
	"elevdispatch/controller/server"
	"elevdispatch/rblog"
)

var Log = rblog.Logger("main")

type cmdArgs struct {
	yamlPath string
	envPath  string
	demo     bool
}

func processCmdArgs() cmdArgs {
	var args cmdArgs
	flag.StringVar(&args.yamlPath, "config", "config/fleet.yaml", "fleet description (yaml), empty for built-in defaults")
	flag.StringVar(&args.envPath, "env", "", "optional .env file with DISPATCH_* overrides")
	flag.BoolVar(&args.demo, "demo", true, "press a few buttons on the first car at startup")
	flag.Parse()
	return args
}

func main() {
	args := processCmdArgs()

	cfg, err := config.Load(args.yamlPath, args.envPath)
	if err != nil {
		Log.Fatal().Err(err).Msg("could not load configuration")
	}
	rblog.SetLevel(rblog.ParseLevel(cfg.LogLevel))

	ctrl, err := controller.FromConfig(cfg)
	if err != nil {
		Log.Fatal().Err(err).Msg("could not build fleet")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := ctrl.Start(ctx); err != nil {
		Log.Error().Err(err).Msg("fleet started with errors")
	}

	var serverDone chan error
	if cfg.PanelPort > 0 {
		listener, err := server.Listen(cfg.PanelPort)
		if err != nil {
			Log.Fatal().Err(err).Int("port", cfg.PanelPort).Msg("could not open panel port")
		}
		srv := server.New(listener, ctrl)
		serverDone = make(chan error, 1)
		go func() { serverDone <- srv.Serve(ctx) }()
	}

	if args.demo && len(cfg.Cars) > 0 {
		first := cfg.Cars[0].ID
		for _, floor := range []int{7, 9, 1, -10} {
			if err := ctrl.RouteRequest(first, floor); err != nil {
				Log.Error().Err(err).Msg("demo request rejected")
			}
		}
	}

	for {
		select {
		case ev := <-ctrl.Events():
			Log.Debug().Str("car", ev.CarID).Int("floor", ev.Floor).Str("direction", ev.Direction.String()).Msg(ev.Event)
		case <-ctx.Done():
			ctrl.Stop()
			if serverDone != nil {
				if err := <-serverDone; err != nil {
					Log.Error().Err(err).Msg("panel server failed")
				}
			}
			return
		}
	}
}
