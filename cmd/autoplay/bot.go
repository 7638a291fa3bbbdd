package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wricardo/mcp-training/battleship/game/engine"
	"github.com/wricardo/mcp-training/battleship/game/service"
)

// Bot plays one seat of a game to the end
type Bot struct {
	client   *Client
	strategy *HuntTarget
	poll     time.Duration
	delay    time.Duration
	log      zerolog.Logger
}

func NewBot(client *Client, strategy *HuntTarget, poll, delay time.Duration, logger zerolog.Logger) *Bot {
	return &Bot{
		client:   client,
		strategy: strategy,
		poll:     poll,
		delay:    delay,
		log:      logger,
	}
}

// Play places a random fleet when the game allows it, then fires whenever it
// is this seat's turn. It returns the final view once the game is finished.
func (b *Bot) Play(ctx context.Context) (*service.GameStateView, error) {
	view, err := b.client.State(ctx)
	if err != nil {
		return nil, err
	}
	b.strategy.Resume(view.You.Shots)

	shots := 0
	for {
		switch view.Game.Status {
		case engine.StatusFinished:
			b.log.Info().
				Str("winner", string(view.Game.Winner)).
				Bool("won", view.Game.Winner == view.You.Slot).
				Int("shots", shots).
				Msg("game over")
			return view, nil

		case engine.StatusPlacing:
			if !view.You.Ready {
				fleet, err := engine.RandomFleet(b.strategy.rng)
				if err != nil {
					return nil, err
				}
				if err := b.client.PlaceShips(ctx, fleet); err != nil {
					return nil, err
				}
				b.log.Info().Msg("ships placed")
			}

		case engine.StatusPlaying:
			if view.IsYourTurn {
				target, ok := b.strategy.Next()
				if !ok {
					return nil, errors.New("no cells left to fire at")
				}
				result, err := b.client.Fire(ctx, target)
				var apiErr *APIError
				if errors.As(err, &apiErr) && apiErr.Message == "Already fired at this position" {
					b.strategy.Observe(target, false, "")
					continue
				}
				if err != nil {
					return nil, err
				}

				sunk := ""
				if result.Sunk != nil {
					sunk = *result.Sunk
				}
				b.strategy.Observe(target, result.Hit, sunk)
				shots++
				b.log.Debug().Int("x", target.X).Int("y", target.Y).Bool("hit", result.Hit).Str("sunk", sunk).Msg("fired")

				if b.delay > 0 {
					if err := sleep(ctx, b.delay); err != nil {
						return nil, err
					}
				}
				if view, err = b.client.State(ctx); err != nil {
					return nil, err
				}
				continue
			}
		}

		if err := sleep(ctx, b.poll); err != nil {
			return nil, err
		}
		if view, err = b.client.State(ctx); err != nil {
			return nil, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("stopped waiting: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
