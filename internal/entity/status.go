package entity

import "fmt"

// Status is the mutable observed state of an entity, owned by the runtime
// that executes it.
type Status struct {
	State   State
	Message string
	Results map[string]any
	Outputs map[string]any

	// Extra carries backend-specific keys.
	Extra map[string]any
}

// StatusFromMap decodes status params. An absent or null state becomes
// CREATED; a present state must be a member of State.
func StatusFromMap(params map[string]any) (Status, error) {
	st := Status{State: StateCreated}

	for key, v := range params {
		switch key {
		case "state":
			if v == nil {
				continue
			}
			s, ok := v.(string)
			if !ok {
				return Status{}, fmt.Errorf("%w: state must be a string, got %T", ErrInvalidState, v)
			}
			state, err := ParseState(s)
			if err != nil {
				return Status{}, err
			}
			st.State = state
		case "message":
			if v == nil {
				continue
			}
			s, ok := v.(string)
			if !ok {
				return Status{}, fmt.Errorf("message must be a string, got %T", v)
			}
			st.Message = s
		case "results":
			m, err := mapField(key, v)
			if err != nil {
				return Status{}, err
			}
			st.Results = m
		case "outputs":
			m, err := mapField(key, v)
			if err != nil {
				return Status{}, err
			}
			st.Outputs = m
		default:
			if st.Extra == nil {
				st.Extra = make(map[string]any)
			}
			st.Extra[key] = cloneValue(v)
		}
	}
	return st, nil
}

// TransitionTo moves the status to a new state, replacing the message.
func (s *Status) TransitionTo(to State, message string) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, to)
	}
	if !s.State.CanTransitionTo(to) {
		return fmt.Errorf("%w: from %s to %s", ErrInvalidTransition, s.State, to)
	}
	s.State = to
	s.Message = message
	return nil
}

// Map encodes the status.
func (s Status) Map() map[string]any {
	out := CloneMap(s.Extra)
	if out == nil {
		out = make(map[string]any)
	}
	out["state"] = string(s.State)
	if s.Message != "" {
		out["message"] = s.Message
	}
	if s.Results != nil {
		out["results"] = CloneMap(s.Results)
	}
	if s.Outputs != nil {
		out["outputs"] = CloneMap(s.Outputs)
	}
	return out
}

func mapField(key string, v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must be a map, got %T", key, v)
	}
	return CloneMap(m), nil
}
