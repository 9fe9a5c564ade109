package repository

import "errors"

// ErrSlotTaken на это время у врача уже есть не отменённая запись
var ErrSlotTaken = errors.New("slot already taken")
