package overlay

// SurfaceFlags control how the host lays out and prioritizes a surface.
type SurfaceFlags uint32

const (
	// FlagSystemAlert requests the legacy system-alert surface type.
	FlagSystemAlert SurfaceFlags = 1 << iota
	// FlagApplicationOverlay requests the modern overlay surface type.
	FlagApplicationOverlay
	// FlagLayoutInScreen makes the surface span the full screen.
	FlagLayoutInScreen
	// FlagNotTouchModal lets touches outside the surface pass through.
	FlagNotTouchModal
	// FlagKeepScreenOn prevents the host from dimming while visible.
	FlagKeepScreenOn
)

// Profile describes how the overlay surface must be created on a range
// of host versions. The host privilege model changed twice: newer
// versions replaced the system-alert surface type with the application
// overlay, and the strictest ones additionally demand that a visible
// surface already exist before a background process may elevate itself
// (staged creation).
type Profile struct {
	MinVersion     int
	MaxVersion     int // 0 = open-ended
	Flags          SurfaceFlags
	StagedCreation bool
}

var profiles = []Profile{
	{MinVersion: 0, MaxVersion: 25,
		Flags: FlagSystemAlert | FlagLayoutInScreen | FlagNotTouchModal | FlagKeepScreenOn},
	{MinVersion: 26, MaxVersion: 28,
		Flags: FlagApplicationOverlay | FlagLayoutInScreen | FlagNotTouchModal | FlagKeepScreenOn},
	{MinVersion: 29, MaxVersion: 0,
		Flags:          FlagApplicationOverlay | FlagLayoutInScreen | FlagNotTouchModal | FlagKeepScreenOn,
		StagedCreation: true},
}

// ProfileFor returns the creation profile for a host version. The lookup
// happens once at manager construction, never per call.
func ProfileFor(version int) Profile {
	for _, p := range profiles {
		if version >= p.MinVersion && (p.MaxVersion == 0 || version <= p.MaxVersion) {
			return p
		}
	}
	// Unmatched versions get the strictest treatment.
	return profiles[len(profiles)-1]
}
