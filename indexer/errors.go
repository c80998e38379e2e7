package indexer

import "errors"

// ErrLocalHeadUnavailable is the fatal error that moves the machine to the
// Failed state: the one unrecoverable failure in the state machine's error
// taxonomy. Every other failure returns to PollChainHead.
var ErrLocalHeadUnavailable = errors.New("indexer: could not load local head from store")
