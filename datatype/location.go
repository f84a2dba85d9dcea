package datatype

import (
	"fmt"
	"time"
)

// LocationReference describes where a visit happened.
type LocationReference interface {
	Description() string
}

// PlacenameLocationReference is a free-text place name.
type PlacenameLocationReference struct {
	Name string
}

func (p PlacenameLocationReference) Description() string {
	return fmt.Sprintf("PLACE(name=%s)", p.Name)
}

// Location records time spent at a place.
type Location struct {
	Reference  LocationReference
	Start, End time.Time
}

func (l Location) String() string {
	ref := "null"
	if l.Reference != nil {
		ref = l.Reference.Description()
	}
	return fmt.Sprintf("%s:[from=%s,to=%s]", ref, l.Start.Format(time.RFC3339), l.End.Format(time.RFC3339))
}
