package domain

import "strings"

// PartyKind distinguishes individuals from teams and routing targets.
type PartyKind string

const (
	PartyIndividual PartyKind = "individual"
	PartyTeam       PartyKind = "team"
)

// Party identifies a chat user or a team handle.
type Party struct {
	ID   string    `cbor:"1,keyasint" json:"id"`
	Name string    `cbor:"2,keyasint,omitempty" json:"name,omitempty"`
	Kind PartyKind `cbor:"3,keyasint" json:"kind"`
}

// Individual builds an individual party.
func Individual(id, name string) Party {
	return Party{ID: id, Name: name, Kind: PartyIndividual}
}

// Team builds a team party.
func Team(id, name string) Party {
	return Party{ID: id, Name: name, Kind: PartyTeam}
}

// DisplayName prefers the resolved name and falls back to the id.
func (p Party) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// Target builds the party for a configured routing id. User group ids
// start with "S"; anything else is a single account.
func Target(id, name string) Party {
	if strings.HasPrefix(id, "S") {
		return Team(id, name)
	}
	return Individual(id, name)
}
