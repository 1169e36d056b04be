package validate

import (
	"strings"

	"github.com/baharkarakas/pix-reconciler/internal/models"
)

type ErrField struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

type Errs []ErrField

func (e Errs) Error() string { // error interface
	var b strings.Builder
	for i, ef := range e {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(ef.Field + ": " + ef.Msg)
	}
	return b.String()
}

// Add appends only non-nil results so helpers can be chained.
func (e *Errs) Add(fs ...*ErrField) {
	for _, f := range fs {
		if f != nil {
			*e = append(*e, *f)
		}
	}
}

// Err returns nil for an empty list, keeping callers free of typed-nil errors.
func (e Errs) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Helpers
func Required(field, value string) *ErrField {
	if strings.TrimSpace(value) == "" {
		return &ErrField{Field: field, Msg: "required"}
	}
	return nil
}

func MinAmount(field string, v, min models.Money) *ErrField {
	if v <= 0 {
		return &ErrField{Field: field, Msg: "must be greater than 0"}
	}
	if v < min {
		return &ErrField{Field: field, Msg: "must be >= " + min.String()}
	}
	return nil
}

// Digits strips the usual CPF/CNPJ punctuation.
func Digits(v string) string {
	var b strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TaxID accepts an empty value, or a CPF (11 digits) / CNPJ (14 digits) with optional punctuation.
func TaxID(field, value string) *ErrField {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if strings.Trim(value, "0123456789.-/ ") != "" {
		return &ErrField{Field: field, Msg: "must contain only digits"}
	}
	if n := len(Digits(value)); n != 11 && n != 14 {
		return &ErrField{Field: field, Msg: "must have 11 (CPF) or 14 (CNPJ) digits"}
	}
	return nil
}

func MaxLen(field, value string, max int) *ErrField {
	if len([]rune(value)) > max {
		return &ErrField{Field: field, Msg: "too long"}
	}
	return nil
}
