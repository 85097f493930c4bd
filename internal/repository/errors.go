package repository

import "errors"

var (
	ErrNotFound      = errors.New("search term not found")
	ErrDuplicateTerm = errors.New("search term already exists")
)
