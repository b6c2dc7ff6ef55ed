package orders

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusCanceled   Status = "canceled"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCanceled: true},
	StatusProcessing: {StatusPending: true, StatusCanceled: true, StatusDone: true},
	StatusDone:       {},
	StatusCanceled:   {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Terminal() bool { return s == StatusDone || s == StatusCanceled }

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}
