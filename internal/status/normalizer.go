// Package status maps provider status vocabularies onto canonical states.
package status

import (
	"strings"

	"github.com/baharkarakas/pix-reconciler/internal/models"
)

var vocabulary = map[string]models.Canonical{
	"PAID":      models.CanonicalPaid,
	"COMPLETED": models.CanonicalPaid,
	"CONFIRMED": models.CanonicalPaid,
	"SUCCESS":   models.CanonicalPaid,
	"APPROVED":  models.CanonicalPaid,

	"EXPIRED":   models.CanonicalExpired,
	"CANCELLED": models.CanonicalExpired,
	"FAILED":    models.CanonicalExpired,
	"REJECTED":  models.CanonicalExpired,
}

// Normalize is total: anything outside the known synonyms is CanonicalUnknown.
func Normalize(raw string) models.Canonical {
	if c, ok := vocabulary[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return c
	}
	return models.CanonicalUnknown
}
