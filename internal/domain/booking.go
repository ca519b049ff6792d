package domain

// Step identifies the current state of a booking conversation.
type Step string

const (
	StepIdle         Step = "IDLE"
	StepAskSpecialty Step = "ASK_SPECIALTY"
	StepAskDay       Step = "ASK_DAY"
	StepAskSlot      Step = "ASK_SLOT"
	StepAskName      Step = "ASK_NAME"
	StepConfirm      Step = "CONFIRM"
)

// Slot is a bookable appointment opening proposed by the scheduling gateway.
type Slot struct {
	Label    string `json:"label"`
	StartISO string `json:"startISO"`
	EndISO   string `json:"endISO"`
}

// BookingData is the payload accumulated across steps of one booking flow.
type BookingData struct {
	Specialty  string
	DayText    string
	TimeText   string
	Candidates []Slot // non-empty only while Step == StepAskSlot
	Chosen     *Slot  // always an element of the current Candidates generation
	Name       string
	RequestID  string // idempotency key for the book call, minted on entering CONFIRM
}

// Session is the per-user conversation state. It is owned and mutated
// exclusively by the booking engine while one inbound message is handled.
type Session struct {
	UserID string
	Step   Step
	Data   BookingData
}

// NewSession returns a fresh IDLE session for the given user.
func NewSession(userID string) *Session {
	return &Session{UserID: userID, Step: StepIdle}
}

// SessionStore maps user identifiers to conversation state.
// Get never fails: an unseen user gets a fresh IDLE session.
type SessionStore interface {
	Get(userID string) *Session
	Reset(userID string)
	Delete(userID string)
	Count() int
}
