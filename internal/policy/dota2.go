package policy

// Dota2Policy blocks Dota 2.
type Dota2Policy struct{}

// NewDota2Policy creates the Dota 2 preset.
func NewDota2Policy() *Dota2Policy {
	return &Dota2Policy{}
}

func (p *Dota2Policy) ID() string {
	return "dota2"
}

func (p *Dota2Policy) Name() string {
	return "Dota 2"
}

// ApplicationIDs returns Dota 2 identifiers. Dota 2 is launched through
// Steam, so blocking Steam alone does not cover a running game.
func (p *Dota2Policy) ApplicationIDs() []string {
	return []string{
		"com.valvesoftware.dota2",
		"dota2",
		"dota_osx64",
		"dota2_launcher",
	}
}

// Ensure Dota2Policy implements AppPreset.
var _ AppPreset = (*Dota2Policy)(nil)
