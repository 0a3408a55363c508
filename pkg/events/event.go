package events

// EventType classifies outbound events for transport-specific encoding.
type EventType int

const (
	EvNotice   EventType = iota // Plain text reply
	EvSpawn                     // Wild spawn announcement card
	EvCatch                     // A spawn was caught
	EvEscape                    // A spawn timed out
	EvTrade                     // Trade completed
	EvTraining                  // Training finished
	EvShow                      // Creature detail card
	EvShutdown                  // Server is going down
)

// String returns a human-readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EvNotice:
		return "notice"
	case EvSpawn:
		return "spawn"
	case EvCatch:
		return "catch"
	case EvEscape:
		return "escape"
	case EvTrade:
		return "trade"
	case EvTraining:
		return "training"
	case EvShow:
		return "show"
	case EvShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Card is a structured embed: title, description, accent color, image.
type Card struct {
	Title       string
	Description string
	Color       int
	ImageURL    string
}

// Event is a structured outbound message that flows through the bus.
// Channel selects channel subscribers, User selects a single user's
// subscribers (private notice); either may be empty. Source is the acting
// user, recorded by the activity ledger.
type Event struct {
	Type    EventType
	Channel string
	User    string
	Source  string
	Text    string
	Card    *Card
}
