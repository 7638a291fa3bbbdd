// Command autoplay joins or creates a Battleship game over the REST API and
// plays it to the end with a hunt/target strategy. Run two of them to watch
// a full game, or one against a human opponent.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("autoplay failed")
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "autoplay",
		Usage: "play a Battleship game automatically",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "game server URL", Sources: cli.EnvVars("BATTLESHIP_URL")},
			&cli.StringFlag{Name: "name", Value: "autoplay", Usage: "player name"},
			&cli.StringFlag{Name: "join", Usage: "join this game code instead of creating a game"},
			&cli.DurationFlag{Name: "poll", Value: 500 * time.Millisecond, Usage: "state polling interval while waiting"},
			&cli.DurationFlag{Name: "delay", Usage: "pause after every shot"},
			&cli.BoolFlag{Name: "v", Usage: "log every shot"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			level := zerolog.InfoLevel
			if cmd.Bool("v") {
				level = zerolog.DebugLevel
			}
			logger := log.Logger.Level(level)

			client := NewClient(cmd.String("url"))
			if code := cmd.String("join"); code != "" {
				if _, err := client.JoinGame(ctx, code, cmd.String("name")); err != nil {
					return err
				}
				logger.Info().Str("game", client.code).Msg("joined game")
			} else {
				if _, err := client.CreateGame(ctx, cmd.String("name")); err != nil {
					return err
				}
				logger.Info().Str("game", client.code).Msg("game created, waiting for an opponent")
			}

			bot := NewBot(client, NewHuntTarget(nil), cmd.Duration("poll"), cmd.Duration("delay"), logger.With().Str("game", client.code).Logger())
			_, err := bot.Play(ctx)
			return err
		},
	}
}
