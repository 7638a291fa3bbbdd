package engine

// Status is a game lifecycle state
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlacing  Status = "placing"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Slot identifies a player's seat within a game
type Slot string

const (
	Player1 Slot = "player1"
	Player2 Slot = "player2"
)

// Valid reports whether the slot is one of the two seats
func (s Slot) Valid() bool {
	return s == Player1 || s == Player2
}

// Opponent returns the other seat
func (s Slot) Opponent() Slot {
	if s == Player1 {
		return Player2
	}
	return Player1
}

// lifecycle lists the only legal forward transitions
var lifecycle = map[Status]Status{
	StatusWaiting: StatusPlacing,
	StatusPlacing: StatusPlaying,
	StatusPlaying: StatusFinished,
}

// CanAdvanceTo reports whether the lifecycle allows moving from s to next.
// Transitions are strictly forward and finished is terminal.
func (s Status) CanAdvanceTo(next Status) bool {
	to, ok := lifecycle[s]
	return ok && to == next
}

// Terminal reports whether no further transition is possible
func (s Status) Terminal() bool {
	_, ok := lifecycle[s]
	return !ok
}
