package bot

import (
	"strings"
)

type CallbackAction string

const (
	CallbackActionActivate CallbackAction = "activate"
)

func (a CallbackAction) String() string {
	return string(a)
}

// DataMatches reports whether raw callback data was produced by a button
// created with this action as its unique.
func (a CallbackAction) DataMatches(data string) bool {
	prefix := "\f" + a.String()
	return data == prefix || strings.HasPrefix(data, prefix+"|")
}
