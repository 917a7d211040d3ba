package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/skyhook-labs/botkeeper"
	"github.com/skyhook-labs/botkeeper/api"
	"github.com/skyhook-labs/botkeeper/config"
	"github.com/skyhook-labs/botkeeper/llm"
	"github.com/skyhook-labs/botkeeper/telegram"
)

func main() {
	app := cli.NewApp()
	app.Name = "botkeeper"
	app.Usage = "telegram chat bot with an HTTP run-state control surface"
	app.Commands = []cli.Command{
		serveCommand(),
		checkCommand(),
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func serveCommand() cli.Command {
	const envFileFlag = "env-file"
	return cli.Command{
		Name:  "serve",
		Usage: "start the bot worker and the control API server",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  envFileFlag,
				Usage: "path to an optional .env file",
			},
		},
		Action: func(c *cli.Context) error {
			if envFile := c.String(envFileFlag); envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return cli.NewExitError("env file: "+err.Error(), 1)
				}
			}

			cfg, err := config.FromEnv()
			if err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			if err := cfg.Validate(); err != nil {
				return cli.NewExitError("invalid configuration: "+err.Error(), 1)
			}

			logger, err := cfg.Logger()
			if err != nil {
				return cli.NewExitError(err.Error(), 1)
			}

			return serve(cfg, logger)
		},
	}
}

func serve(cfg config.Config, logger *logrus.Entry) error {
	var completer llm.Completer
	if cfg.GroqAPIKey != "" {
		completer = llm.New("", cfg.GroqAPIKey, cfg.GroqModel)
		logger.Info("completion client initialized")
	} else {
		logger.Warn("GROQ_API_KEY not set, falling back to echo replies")
	}

	supervisor, err := botkeeper.NewSupervisor(nil, logger, botkeeper.Opts{
		StopGracePeriod: cfg.StopGracePeriod,
		StartTimeout:    cfg.StartTimeout,
	})
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	factory := telegram.NewFactory(telegram.SessionConfig{
		Token:       cfg.BotToken,
		PollTimeout: cfg.PollTimeout,
		Completer:   completer,
		Status:      supervisor.Status,
		Logger:      logger,
	})
	supervisor.SetFactory(factory)

	// The bot starts with the process; a boot failure is recoverable
	// through POST /bot/restart, so it must not kill the service.
	if contextID, err := supervisor.Start(); err != nil {
		logger.WithError(err).Error("bot failed to start at boot")
	} else {
		logger.WithField("context_id", contextID).Info("bot started")
	}

	router := api.NewRouter(supervisor, api.RouterConfig{
		TokenConfigured: cfg.BotToken != "",
	}, logger)
	server := api.NewServer(cfg.APIConfig(), router)

	logger.WithField("addr", cfg.APIConfig().TCPAddr()).Info("starting control API server")
	return botkeeper.NewApp(supervisor, server, logger).Run()
}

func checkCommand() cli.Command {
	const addrFlag = "addr"
	return cli.Command{
		Name:  "check",
		Usage: "probe the health endpoint of a running instance",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  addrFlag,
				Usage: "base address of the running instance",
				Value: "http://127.0.0.1:5000",
			},
		},
		Action: func(c *cli.Context) error {
			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(c.String(addrFlag) + "/health")
			if err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			defer func() { _ = resp.Body.Close() }()

			var health struct {
				Status    string `json:"status"`
				BotStatus string `json:"bot_status"`
				Uptime    int64  `json:"uptime"`
				LastError string `json:"last_error"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
				return cli.NewExitError("invalid response: "+err.Error(), 1)
			}

			fmt.Printf("service: %s, bot: %s, uptime: %ds\n",
				health.Status, health.BotStatus, health.Uptime)
			if health.BotStatus != "running" {
				return cli.NewExitError("bot worker is not active", 7)
			}
			return nil
		},
	}
}
