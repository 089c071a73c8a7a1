package inference

import "errors"

// errSessionVanished is returned in a task's GenerationOutcome when the
// session was closed between Enqueue and the worker picking it up.
var errSessionVanished = errors.New("session closed before generation started")
