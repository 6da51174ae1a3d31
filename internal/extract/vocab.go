package extract

import (
	"strings"

	"respondr/internal/domain"
)

// Vocabulary is the closed set of vehicle values an extraction may produce:
// the configured unit codes plus POV, Unknown and Not Responding.
type Vocabulary struct {
	units     []string
	canonical map[string]string
}

func NewVocabulary(units []string) *Vocabulary {
	v := &Vocabulary{canonical: map[string]string{}}
	for _, u := range units {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		v.units = append(v.units, u)
		v.canonical[foldToken(u)] = u
	}
	v.canonical[foldToken(domain.VehiclePOV)] = domain.VehiclePOV
	v.canonical["PERSONALVEHICLE"] = domain.VehiclePOV
	v.canonical["PERSONALLYOWNEDVEHICLE"] = domain.VehiclePOV
	v.canonical[foldToken(domain.VehicleNotResponding)] = domain.VehicleNotResponding
	return v
}

func (v *Vocabulary) Units() []string { return v.units }

// Normalize maps a free-form vehicle token onto the vocabulary. "sar 12",
// "SAR12" and "Sar-12" all collapse to the canonical "SAR-12"; anything that
// matches nothing collapses to Unknown.
func (v *Vocabulary) Normalize(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.VehicleUnknown
	}
	if c, ok := v.canonical[foldToken(token)]; ok {
		return c
	}
	return domain.VehicleUnknown
}

// foldToken uppercases and strips everything but letters and digits so
// spelling variants of the same unit compare equal.
func foldToken(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
