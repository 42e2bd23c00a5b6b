package domain

// Tag is a category label assigned by the classifier.
type Tag string

const (
	TagSecurity   Tag = "SECURITY"
	TagRegulation Tag = "REGULATION"
	TagIncident   Tag = "INCIDENT"
	TagSoftware   Tag = "SOFTWARE"
	TagOther      Tag = "OTHER"
)

// UnknownRank orders unrecognised tags after every known one.
const UnknownRank = 99

var tagRanks = map[Tag]int{
	TagSecurity:   0,
	TagRegulation: 1,
	TagIncident:   2,
	TagSoftware:   3,
	TagOther:      4,
}

// Rank returns the fixed priority of the tag; lower sorts first.
func (t Tag) Rank() int {
	if rank, ok := tagRanks[t]; ok {
		return rank
	}
	return UnknownRank
}

// Known reports whether the tag belongs to the fixed set.
func (t Tag) Known() bool {
	_, ok := tagRanks[t]
	return ok
}
