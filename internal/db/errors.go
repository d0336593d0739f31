package db

import (
	"errors"
	"fmt"
)

// Storage errors callers branch on.
var (
	ErrKeyNotFound   = errors.New("key not found")
	ErrIndexNotFound = errors.New("index not found")
	ErrIndexExists   = errors.New("index already exists")
)

// Command names recorded in Error.Op.
const (
	OpCreateIndex = "FT.CREATE"
	OpDropIndex   = "FT.DROPINDEX"
	OpSearch      = "FT.SEARCH"
	OpHSet        = "HSET"
	OpGet         = "GET"
	OpSet         = "SET"
)

// Error is a failed storage command.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("%s failed: %v", e.Op, e.Err) }

func (e *Error) Unwrap() error { return e.Err }
