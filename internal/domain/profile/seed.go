package profile

import "time"

// SeedCollection is written through the first time an empty backend is read.
func SeedCollection(now time.Time) Collection {
	return Collection{
		"aadikatyal": {
			Username:  "aadikatyal",
			Name:      "Aadi Katyal",
			Title:     "Founder at Tap",
			Image:     "/profile-aadi.jpg",
			Bio:       "i built tap to make digital networking seamless. let's connect!",
			Phone:     "+1 (732) 858-4219",
			Email:     "aadi@tapcards.us",
			Instagram: "aadikatyal",
			LinkedIn:  "aadikatyal",
			Links:     []Link{},
			Theme:     DefaultTheme,
			IsPublic:  true,
			CreatedAt: now,
			UpdatedAt: now,
		},
		"monty": {
			Username:  "monty",
			Name:      "Monty Katyal",
			Title:     "Labrador Retriever",
			Image:     DefaultImage,
			Bio:       "i love meeting new people. let's connect!",
			Links:     []Link{},
			Theme:     DefaultTheme,
			IsPublic:  true,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}
