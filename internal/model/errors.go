package model

import (
	"errors"
)

var ErrConfig = errors.New("invalid configuration")
