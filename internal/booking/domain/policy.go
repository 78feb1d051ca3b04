package domain

import "errors"

// ErrUnknownKind is returned for booking types without a registered policy.
var ErrUnknownKind = errors.New("unknown_booking_kind")

// Payment reference kinds. Direct tenders and gateway tenders number
// independently.
const (
	PaymentRefScopeDirect   = "payment.direct"
	PaymentRefScopeGateway  = "payment.gateway"
	PaymentRefPrefixDirect  = "PYD"
	PaymentRefPrefixGateway = "PYL"
	PaymentRefWidth         = 5
)

// KindPolicy parameterizes the shared settlement orchestrator per booking
// kind: numbering, allowed lines and which pipeline steps apply.
type KindPolicy struct {
	Kind             BookingType
	SequenceScope    string
	LivePrefix       string
	SandboxPrefix    string
	NumberWidth      int
	AllowedItemTypes []ItemType
	TracksInventory  bool
	AllowsPledge     bool
	Fulfillable      bool
}

var policies = map[BookingType]KindPolicy{
	BookingTypeSales: {
		Kind:             BookingTypeSales,
		SequenceScope:    "booking.sales",
		LivePrefix:       "SALE",
		SandboxPrefix:    "TSAL",
		NumberWidth:      5,
		AllowedItemTypes: []ItemType{ItemTypeProduct, ItemTypeAddon},
		TracksInventory:  true,
	},
	BookingTypeDonation: {
		Kind:             BookingTypeDonation,
		SequenceScope:    "booking.donation",
		LivePrefix:       "DONA",
		SandboxPrefix:    "TDON",
		NumberWidth:      5,
		AllowedItemTypes: []ItemType{ItemTypeDonation},
		AllowsPledge:     true,
	},
	BookingTypeBuddhaLamp: {
		Kind:             BookingTypeBuddhaLamp,
		SequenceScope:    "booking.buddha_lamp",
		LivePrefix:       "LAMP",
		SandboxPrefix:    "TLMP",
		NumberWidth:      8,
		AllowedItemTypes: []ItemType{ItemTypePackage, ItemTypeAddon},
	},
	BookingTypeHall: {
		Kind:             BookingTypeHall,
		SequenceScope:    "booking.hall",
		LivePrefix:       "HALL",
		SandboxPrefix:    "THAL",
		NumberWidth:      8,
		AllowedItemTypes: []ItemType{ItemTypeSession, ItemTypeAddon},
		Fulfillable:      true,
	},
}

// PolicyFor resolves the policy for a booking kind.
func PolicyFor(kind BookingType) (KindPolicy, error) {
	policy, ok := policies[kind]
	if !ok {
		return KindPolicy{}, ErrUnknownKind
	}
	return policy, nil
}

// BookingPrefix picks the environment-scoped number prefix.
func (p KindPolicy) BookingPrefix(production bool) string {
	if production {
		return p.LivePrefix
	}
	return p.SandboxPrefix
}

// AllowsItemType reports whether a line kind is valid for this booking kind.
func (p KindPolicy) AllowsItemType(t ItemType) bool {
	for _, allowed := range p.AllowedItemTypes {
		if allowed == t {
			return true
		}
	}
	return false
}
