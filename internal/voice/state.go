package voice

import "github.com/ashureev/askvoice/internal/backend"

// Panel is the single result area the UI renders.
type Panel int

const (
	PanelNone Panel = iota
	PanelLoading
	PanelError
	PanelAnswer
)

func (p Panel) String() string {
	switch p {
	case PanelLoading:
		return "loading"
	case PanelError:
		return "error"
	case PanelAnswer:
		return "answer"
	default:
		return "none"
	}
}

// State is a snapshot of the query session.
type State struct {
	Question  string
	Answer    string
	Route     string
	Sources   []backend.Source
	Listening bool
	Loading   bool
	Error     string
}

// Panel decides which result area is visible. Loading wins over an error,
// an error wins over a previous answer.
func (s State) Panel() Panel {
	switch {
	case s.Loading:
		return PanelLoading
	case s.Error != "":
		return PanelError
	case s.Answer != "":
		return PanelAnswer
	default:
		return PanelNone
	}
}

func (s State) clone() State {
	if s.Sources != nil {
		s.Sources = append([]backend.Source(nil), s.Sources...)
	}
	return s
}
