package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Clark-Hu/seances/internal/domain"
)

// DefaultVenues is the curated Paris cinema table, in display order.
func DefaultVenues() []domain.Venue {
	return []domain.Venue{
		{Name: "Filmothèque du Quartier Latin", ID: "C0020"},
		{Name: "Reflet Médicis", ID: "C0074"},
		{Name: "Le Champo", ID: "C0073"},
		{Name: "Le Grand Action", ID: "C0072"},
		{Name: "Écoles Cinéma Club", ID: "C0071"},
		{Name: "Christine Cinéma Club", ID: "C0015"},
		{Name: "La Cinémathèque Française", ID: "C1559"},
		{Name: "UGC Ciné Cité Les Halles", ID: "C0159"},
		{Name: "UGC Gobelins", ID: "C0150"},
		{Name: "UGC Ciné Cité Bercy", ID: "C0026"},
		{Name: "MK2 Quai de Seine", ID: "C0003"},
		{Name: "MK2 Quai de Loire", ID: "C1621"},
		{Name: "Le Grand Rex", ID: "C0065"},
		{Name: "Le Louxor", ID: "W7510"},
	}
}

// ParseVenues reads a "Name=ID;Name=ID" table. Names must be unique.
func ParseVenues(raw string) ([]domain.Venue, error) {
	var venues []domain.Venue
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, id, ok := strings.Cut(part, "=")
		name, id = strings.TrimSpace(name), strings.TrimSpace(id)
		if !ok || name == "" || id == "" {
			return nil, fmt.Errorf("entry %q must look like Name=ID", part)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("venue %q listed twice", name)
		}
		seen[name] = struct{}{}
		venues = append(venues, domain.Venue{Name: name, ID: id})
	}
	if len(venues) == 0 {
		return nil, errors.New("no venues configured")
	}
	return venues, nil
}
