package bridge

// echoCapacity bounds the suppressor to the immediately preceding
// context; anything older gets quoted again.
const echoCapacity = 2

type echoEntry struct {
	id     string
	author string
}

// An EchoSuppressor is a fixed-capacity ring of recently relayed
// message identities. It decides whether a quoted original was "just
// said" and would be redundant to repeat.
type EchoSuppressor struct {
	entries [echoCapacity]echoEntry
	next    int
}

// Push records a relayed message's identity and author, evicting the
// oldest entry.
func (e *EchoSuppressor) Push(id, author string) {
	e.entries[e.next] = echoEntry{id: id, author: author}
	e.next = (e.next + 1) % echoCapacity
}

// Contains reports whether id was one of the last relayed messages.
func (e *EchoSuppressor) Contains(id string) bool {
	if id == "" {
		return false
	}
	for _, entry := range e.entries {
		if entry.id == id {
			return true
		}
	}
	return false
}
