package protocol

// InputState maps named control identifiers to their current values. Values
// are booleans for digital controls and numbers for analog ones, matching the
// JSON the wire carries.
type InputState map[string]any

// DefaultInput returns the control set every participant starts with
func DefaultInput() InputState {
	return InputState{
		"up":    false,
		"down":  false,
		"left":  false,
		"right": false,
		"jump":  false,
	}
}

// Merge applies a partial update key by key. Existing controls absent from
// the update keep their values; the state is never replaced wholesale.
func (s InputState) Merge(update InputState) {
	for key, value := range update {
		s[key] = value
	}
}

// Clone returns an independent copy of the state
func (s InputState) Clone() InputState {
	out := make(InputState, len(s))
	for key, value := range s {
		out[key] = value
	}
	return out
}
