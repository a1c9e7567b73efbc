package engine

import "errors"

var (
	// ErrUnresponsive means the interpreter did not answer within the
	// binding's deadline. The session stays alive; the caller may retry or
	// restart the game.
	ErrUnresponsive = errors.New("engine unresponsive")

	// ErrLoadFailed means the interpreter could not initialize for a game.
	ErrLoadFailed = errors.New("engine failed to load game")

	// ErrInvalidAction means the interpreter rejected a submitted command
	// outright (as opposed to the in-game parser politely refusing it).
	ErrInvalidAction = errors.New("invalid action")

	// ErrBadState means a checkpoint blob was rejected by the interpreter.
	ErrBadState = errors.New("invalid engine state blob")
)
