package policy

// SteamPolicy blocks the Steam client.
type SteamPolicy struct{}

// NewSteamPolicy creates the Steam preset.
func NewSteamPolicy() *SteamPolicy {
	return &SteamPolicy{}
}

func (p *SteamPolicy) ID() string {
	return "steam"
}

func (p *SteamPolicy) Name() string {
	return "Steam"
}

// ApplicationIDs returns the Steam bundle id and its known process names.
func (p *SteamPolicy) ApplicationIDs() []string {
	return []string{
		// macOS bundle
		"com.valvesoftware.steam",
		"com.valvesoftware.steam.helper",

		// Linux process names
		"steam",
		"steamwebhelper",
		"steam_osx",
	}
}

// Ensure SteamPolicy implements AppPreset.
var _ AppPreset = (*SteamPolicy)(nil)
