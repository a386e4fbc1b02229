package cli

// validateFlags centralizes common flag combinations to keep behavior consistent.
func validateFlags(globals *Globals, interactive bool, tmux bool) error {
	if interactive && tmux {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--ui cannot be combined with --tmux", "drop one of them")
	}
	// the attach command is the only output of a detached replay
	if tmux && globals != nil && globals.Quiet {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--tmux cannot be combined with --quiet", "drop --quiet to see the attach command")
	}
	// quiet + text is confusing for scripts; steer to ndjson
	if globals != nil && globals.Format == "text" && globals.Quiet {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--quiet is only supported with ndjson output", "switch to --format ndjson or drop --quiet")
	}
	return nil
}
