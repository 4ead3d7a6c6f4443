package queue

import "github.com/fsnotify/fsnotify"

// Kind classifies a filesystem notification.
type Kind int

const (
	Created Kind = iota + 1
	Written
	Removed
	Renamed
	Chmod
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "create"
	case Written:
		return "write"
	case Removed:
		return "remove"
	case Renamed:
		return "rename"
	case Chmod:
		return "chmod"
	default:
		return "unknown"
	}
}

// Event is one change observed in the queue directory.
type Event struct {
	Path string
	Kind Kind
}

// kindOf maps an fsnotify op to a Kind. When several bits are set the one
// most relevant to ingestion wins.
func kindOf(op fsnotify.Op) Kind {
	switch {
	case op.Has(fsnotify.Create):
		return Created
	case op.Has(fsnotify.Write):
		return Written
	case op.Has(fsnotify.Rename):
		return Renamed
	case op.Has(fsnotify.Remove):
		return Removed
	default:
		return Chmod
	}
}
