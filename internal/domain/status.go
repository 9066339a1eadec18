package domain

import "fmt"

// GameStatus is the overall event phase.
type GameStatus string

const (
	StatusWaiting  GameStatus = "WAITING"
	StatusStarted  GameStatus = "STARTED"
	StatusFinished GameStatus = "FINISHED"
)

// transitions lists the allowed targets per status. Restart (-> WAITING) is allowed from anywhere.
var transitions = map[GameStatus][]GameStatus{
	StatusWaiting:  {StatusStarted, StatusWaiting},
	StatusStarted:  {StatusFinished, StatusWaiting},
	StatusFinished: {StatusWaiting},
}

// Valid reports whether s is a known status.
func (s GameStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the state machine allows s -> to.
func (s GameStatus) CanTransition(to GameStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the config to status to, or returns ErrInvalidTransition.
func (c *GameConfig) Transition(to GameStatus) error {
	from := c.Status
	if from == "" {
		from = StatusWaiting
	}
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	c.Status = to
	return nil
}
