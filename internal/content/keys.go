package content

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Namespaces bound at the storage level.
const (
	NamespaceGuides = "GUIDE_DATA"
	NamespaceSales  = "SALES_DATA"
	NamespaceUsers  = "USER_DATA"
)

// Kind is an entity kind. Every key starts with "<kind>:" so no kind's prefix
// can match keys of another kind.
type Kind string

const (
	KindGuide          Kind = "guide"
	KindWelcome        Kind = "welcome"
	KindOperatorButton Kind = "operator_button"
	KindProductPrice   Kind = "product_price"
	KindTrialStatus    Kind = "user_trial_status"
	KindVPNKey         Kind = "vpn_key"
	KindPayment        Kind = "payment"
)

const keySep = ":"

// MaxSegmentLength bounds identity segments so that every menu-action token
// built from them stays within the platform's 64-byte callback limit.
const MaxSegmentLength = 24

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,24}$`)

// ValidSegment reports whether s can be used as an identity segment of a key:
// 1 to MaxSegmentLength ASCII letters, digits, '_' or '-'.
func ValidSegment(s string) bool {
	return segmentPattern.MatchString(s)
}

// NormalizeCode upper-cases a group, operator or item-type code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func key(kind Kind, parts ...string) string {
	return string(kind) + keySep + strings.Join(parts, keySep)
}

// prefix returns the listing prefix for kind narrowed by leading parts. The
// result always ends at a delimiter boundary.
func prefix(kind Kind, parts ...string) string {
	if len(parts) == 0 {
		return string(kind) + keySep
	}
	return key(kind, parts...) + keySep
}

func guideKey(group string, step int) string {
	return key(KindGuide, group, strconv.Itoa(step))
}

func welcomeKey() string {
	return key(KindWelcome, "config")
}

func operatorKey(code string) string {
	return key(KindOperatorButton, code)
}

func priceKey(itemType, productID string) string {
	return key(KindProductPrice, itemType, productID)
}

func trialKey(userID int64) string {
	return key(KindTrialStatus, strconv.FormatInt(userID, 10))
}

func vpnKeyKey(operator, keyType, id string) string {
	return key(KindVPNKey, operator, keyType, id)
}

func paymentKey(id string) string {
	return key(KindPayment, id)
}

// splitKey returns the identity segments of a key of the given kind, or
// false when the key belongs to another kind or has the wrong arity.
func splitKey(kind Kind, k string, arity int) ([]string, bool) {
	rest, ok := strings.CutPrefix(k, string(kind)+keySep)
	if !ok {
		return nil, false
	}
	parts := strings.Split(rest, keySep)
	if len(parts) != arity {
		return nil, false
	}
	for _, p := range parts {
		if p == "" {
			return nil, false
		}
	}
	return parts, true
}

func validateCode(what, code string) error {
	if !ValidSegment(code) {
		return fmt.Errorf("content: invalid %s %q", what, code)
	}
	return nil
}
