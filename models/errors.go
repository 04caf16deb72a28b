package models

import "errors"

var ErrDeckNotFound = errors.New("deck not found")
