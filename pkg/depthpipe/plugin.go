package depthpipe

// Plugin lets an external implementation short-circuit any stage (§4.6).
// Each method returns true if it fully produced out and the stage's
// built-in compute must be skipped, false to fall through.
type Plugin interface {
	OnRectify(in *StageInput, out *StageOutput) bool
	OnDisparity(in *StageInput, out *StageOutput) bool
	OnDisparityNormalized(in *StageInput, out *StageOutput) bool
	OnPoints(in *StageInput, out *StageOutput) bool
	OnDepth(in *StageInput, out *StageOutput) bool
}

// gatedHook builds the ProcessHook a stage installs (§4.1, §4.6): first
// consult the plugin method for this stage, if any; otherwise, if none of
// the gated streams are actually SYNTHETIC (the device produces all of
// them natively), act as a pure router and pass the input through
// unchanged; otherwise fall through to the stage's built-in compute so
// the half(ves) still owed synthetically get produced. A stage declares
// one gate per target stream it owns; Rectify declares two (its left and
// right halves can independently go NATIVE, §4.3), everything else one.
func gatedHook(reg *Registry, gates []Stream, call func(Plugin, *StageInput, *StageOutput) bool, getPlugin func() Plugin) ProcessHook {
	return func(in *StageInput, out *StageOutput, _ *StageBase) (bool, error) {
		if p := getPlugin(); p != nil {
			if call(p, in, out) {
				return true, nil
			}
		}
		anySynthetic := false
		for _, gate := range gates {
			if reg.EnabledMode(gate) == ModeSynthetic {
				anySynthetic = true
				break
			}
		}
		if !anySynthetic {
			*out = *in
			return true, nil
		}
		return false, nil
	}
}
