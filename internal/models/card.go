package models

import "fmt"

// CardType tags the kind of document on the uploaded image.
type CardType string

const (
	CardTypeIDCard     CardType = "id_card"
	CardTypePassport   CardType = "passport"
	CardTypeCreditCard CardType = "credit_card"
)

// CardTypeInfo is what the card picker renders for one tag.
type CardTypeInfo struct {
	ID          CardType `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
}

var cardTypes = []CardTypeInfo{
	{ID: CardTypeIDCard, Name: "ID Card", Description: "National ID, Driver's License"},
	{ID: CardTypePassport, Name: "Passport", Description: "International Passport"},
	{ID: CardTypeCreditCard, Name: "Credit Card", Description: "Bank Cards, Credit/Debit"},
}

// CardTypes lists the supported card types in picker order.
func CardTypes() []CardTypeInfo {
	out := make([]CardTypeInfo, len(cardTypes))
	copy(out, cardTypes)
	return out
}

// Valid reports whether t is one of the known tags.
func (t CardType) Valid() bool {
	switch t {
	case CardTypeIDCard, CardTypePassport, CardTypeCreditCard:
		return true
	}
	return false
}

// ParseCardType converts a raw tag, rejecting anything outside the enum.
func ParseCardType(s string) (CardType, error) {
	t := CardType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown card type %q", s)
	}
	return t, nil
}
