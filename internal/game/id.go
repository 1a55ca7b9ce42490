package game

import "github.com/google/uuid"

func newId() string { return uuid.NewString() }
