package registry

import "fmt"

// Tracking is the change-tracking mode a spec asks of the query.
type Tracking int

const (
	// TrackingDefault leaves the query's change tracking unchanged.
	TrackingDefault Tracking = iota
	// TrackingIdentityResolution disables change tracking but keeps
	// identity resolution of loaded entities.
	TrackingIdentityResolution
	// TrackingNone disables change tracking.
	TrackingNone
)

var trackingNames = [...]string{
	TrackingDefault:            "default",
	TrackingIdentityResolution: "identity-resolution",
	TrackingNone:               "none",
}

func (t Tracking) String() string {
	if int(t) >= 0 && int(t) < len(trackingNames) {
		return trackingNames[t]
	}
	return fmt.Sprintf("tracking(%d)", int(t))
}

// ParseTracking parses a tracking mode name. The empty string is
// TrackingDefault.
func ParseTracking(s string) (Tracking, error) {
	if s == "" {
		return TrackingDefault, nil
	}
	for i, name := range trackingNames {
		if name == s {
			return Tracking(i), nil
		}
	}
	return TrackingDefault, fmt.Errorf("unknown tracking mode %q (want default, identity-resolution or none)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Tracking) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tracking) UnmarshalText(text []byte) error {
	v, err := ParseTracking(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Options are the query-shaping options of a spec.
type Options struct {
	// Split loads each include with its own statement.
	Split bool `json:"split"`

	Tracking Tracking `json:"tracking"`
}

// MergeOptions combines the options of specs applied to one query: split if
// any spec splits, and the most restrictive tracking mode.
func MergeOptions(specs ...*Spec) Options {
	var out Options
	for _, s := range specs {
		out.Split = out.Split || s.opts.Split
		out.Tracking = max(out.Tracking, s.opts.Tracking)
	}
	return out
}
