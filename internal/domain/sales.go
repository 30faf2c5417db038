package domain

import "time"

// KeyStatus is the lifecycle state of a stocked VPN key.
type KeyStatus string

const (
	KeyAvailable KeyStatus = "available"
	KeySold      KeyStatus = "sold"
	KeyRevoked   KeyStatus = "revoked"
)

// VPNKey is one access key held in stock for an operator and key type. The
// identity fields live in the storage key, not in the stored value.
type VPNKey struct {
	Operator   string     `json:"-"`
	KeyType    string     `json:"-"`
	ID         string     `json:"-"`
	Secret     string     `json:"key"`
	Status     KeyStatus  `json:"status"`
	AssignedTo int64      `json:"assignedTo,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Active reports whether the key is held by a user.
func (k VPNKey) Active() bool {
	return k.Status == KeySold && k.AssignedTo != 0
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentApproved PaymentStatus = "approved"
	PaymentRejected PaymentStatus = "rejected"
)

// Payment is a purchase awaiting or past administrator review. ItemType and
// ProductID name the priced product; for operator products they double as
// the operator code and key type of the key handed out on approval.
type Payment struct {
	ID         string        `json:"-"`
	UserID     int64         `json:"userId"`
	Username   string        `json:"username,omitempty"`
	ItemType   string        `json:"itemType"`
	ProductID  string        `json:"productId"`
	Amount     int64         `json:"amount"`
	Status     PaymentStatus `json:"status"`
	ReceiptRef string        `json:"receiptRef,omitempty"`
	KeyID      string        `json:"keyId,omitempty"`
	DecidedBy  int64         `json:"decidedBy,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	DecidedAt  *time.Time    `json:"decidedAt,omitempty"`
}
