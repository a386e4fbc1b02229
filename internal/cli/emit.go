package cli

import "github.com/vburojevic/ttycast/internal/output"

// newEmitter routes status events for the current output format.
func newEmitter(globals *Globals) *output.Emitter {
	return output.NewEmitter(globals.Format, globals.Stdout, globals.stderrSyncer(), globals.Quiet)
}
