package transcript

// Event is a state transition applied to the exchange list by Reduce.
type Event interface {
	isEvent()
}

// HistoryLoaded replaces the whole list with server-held history.
type HistoryLoaded struct {
	Exchanges []Exchange
}

// QuestionAsked appends a pending exchange.
type QuestionAsked struct {
	ID       string
	Question string
}

// AnswerReceived fills the pending exchange with the given ID.
type AnswerReceived struct {
	ID     string
	Answer string
	Images []string
}

// AskFailed marks the pending exchange with the given ID as failed.
type AskFailed struct {
	ID string
}

// HistoryCleared empties the list.
type HistoryCleared struct{}

func (HistoryLoaded) isEvent()  {}
func (QuestionAsked) isEvent()  {}
func (AnswerReceived) isEvent() {}
func (AskFailed) isEvent()      {}
func (HistoryCleared) isEvent() {}

// Reduce returns the exchange list that results from applying ev to exchanges.
// The input slice is never modified. Only pending exchanges can be resolved;
// events addressing an unknown or already resolved ID leave the list as is.
func Reduce(exchanges []Exchange, ev Event) []Exchange {
	switch e := ev.(type) {
	case HistoryLoaded:
		return copyExchanges(e.Exchanges)

	case QuestionAsked:
		out := make([]Exchange, 0, len(exchanges)+1)
		out = append(out, copyExchanges(exchanges)...)
		return append(out, Exchange{
			ID:       e.ID,
			Question: e.Question,
			Images:   []string{},
			Status:   StatusPending,
		})

	case AnswerReceived:
		return resolve(exchanges, e.ID, func(x *Exchange) {
			x.Answer = e.Answer
			x.Images = append([]string{}, e.Images...)
			x.Status = StatusAnswered
		})

	case AskFailed:
		return resolve(exchanges, e.ID, func(x *Exchange) {
			x.Status = StatusFailed
		})

	case HistoryCleared:
		return []Exchange{}
	}
	return copyExchanges(exchanges)
}

func resolve(exchanges []Exchange, id string, apply func(*Exchange)) []Exchange {
	out := copyExchanges(exchanges)
	for i := range out {
		if out[i].ID != id {
			continue
		}
		if out[i].Status == StatusPending {
			apply(&out[i])
		}
		break
	}
	return out
}

func copyExchanges(in []Exchange) []Exchange {
	out := make([]Exchange, len(in))
	for i, e := range in {
		out[i] = e.clone()
	}
	return out
}
