package prefs

import "errors"

var (
	ErrNoPath  = errors.New("preferences path is empty")
	ErrCorrupt = errors.New("preferences file is not valid YAML")
)
