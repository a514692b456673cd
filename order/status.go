package order

// Status is a node in the order status graph.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusConfirmed Status = "confirmed"
	StatusSentToErp Status = "sent_to_erp"
	StatusError     Status = "error"
	StatusInvoiced  Status = "invoiced"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

// Transitions is the single source of truth for allowed status edges.
// confirmed -> error parks a failed first ERP hand-off; confirmed -> invoiced
// covers local invoicing without the ERP.
var Transitions = map[Status][]Status{
	StatusDraft:     {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusSentToErp, StatusCancelled, StatusRejected, StatusError, StatusInvoiced},
	StatusSentToErp: {StatusInvoiced, StatusError},
	StatusError:     {StatusSentToErp},
	StatusInvoiced:  {},
	StatusCancelled: {},
	StatusRejected:  {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := Transitions[s]
	return ok
}

// Terminal reports whether no edge leaves s.
func (s Status) Terminal() bool {
	return len(Transitions[s]) == 0
}

// CanTransition reports whether from -> to is an edge of the graph.
func CanTransition(from, to Status) bool {
	for _, next := range Transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseStatus converts s into a Status, reporting false when unknown.
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	return st, st.Valid()
}
