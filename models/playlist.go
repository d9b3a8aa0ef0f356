package models

type PlaylistKind int

const (
	PlaylistKindVariant PlaylistKind = iota + 1
	PlaylistKindMedia
)

func (k PlaylistKind) String() string {
	switch k {
	case PlaylistKindVariant:
		return "variant"
	case PlaylistKindMedia:
		return "media"
	}
	return "unknown"
}

// Playlist holds exactly one of Variant or Media, selected by Kind.
type Playlist struct {
	Kind    PlaylistKind
	Variant *VariantPlaylist
	Media   *MediaPlaylist
}

type VariantPlaylist struct {
	URL      string
	Variants []*Variant
}

type Variant struct {
	Bandwidth  uint32
	Resolution string
	Codecs     string
	URI        string
}

type MediaPlaylist struct {
	URL            string
	MediaSequence  uint64
	TargetDuration float64
	Segments       []*Segment
}

type Segment struct {
	URI      string
	Duration float64
	Sequence uint64
	Key      *KeyRef
}

// Best returns the variant with the highest bandwidth.
// on ties the first one declared wins.
func (p *VariantPlaylist) Best() *Variant {
	var best *Variant
	for _, variant := range p.Variants {
		if variant == nil {
			continue
		}
		if best == nil || variant.Bandwidth > best.Bandwidth {
			best = variant
		}
	}
	return best
}

func (p *MediaPlaylist) Duration() float64 {
	var total float64
	for _, segment := range p.Segments {
		total += segment.Duration
	}
	return total
}
