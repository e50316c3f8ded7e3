package domain

// CharacterProfile is one entry of the sitcom character catalog.
type CharacterProfile struct {
	Name        string   `json:"name" yaml:"name"`
	Show        string   `json:"show" yaml:"show"`
	Traits      []string `json:"traits" yaml:"traits"`
	Description string   `json:"description" yaml:"description"`
}
