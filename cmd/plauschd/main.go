package main

import (
	"flag"

	"go.uber.org/fx"

	"github.com/fhuebner/plausch/internal/server"
)

func main() {
	configFlag := flag.String("config", "", "config file path (default: ~/.plausch/config.toml)")
	listenFlag := flag.String("listen", "", "listen address (overrides config)")
	flag.Parse()

	app := fx.New(
		server.Module(server.Params{
			ConfigPath: *configFlag,
			ListenAddr: *listenFlag,
		}),
	)

	app.Run()
}
