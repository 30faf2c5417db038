package content

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"guide-bot/internal/domain"
)

func validateKeyIdentity(k domain.VPNKey) error {
	if err := validateCode("operator code", k.Operator); err != nil {
		return err
	}
	if err := validateCode("key type", k.KeyType); err != nil {
		return err
	}
	return validateCode("key id", k.ID)
}

// PutKey stores a VPN key under its operator, key type and id. The operator
// code is upper-cased; the caller assigns the id.
func (r *Repository) PutKey(ctx context.Context, k domain.VPNKey) bool {
	k.Operator = NormalizeCode(k.Operator)
	if err := validateKeyIdentity(k); err != nil {
		slog.Error("refusing to store vpn key", "err", err)
		return false
	}
	if k.Status == "" {
		k.Status = domain.KeyAvailable
	}
	return r.store.Put(ctx, NamespaceSales, vpnKeyKey(k.Operator, k.KeyType, k.ID), k)
}

func (r *Repository) GetKey(ctx context.Context, operator, keyType, id string) (domain.VPNKey, bool) {
	operator = NormalizeCode(operator)
	if !ValidSegment(operator) || !ValidSegment(keyType) || !ValidSegment(id) {
		return domain.VPNKey{}, false
	}
	k, ok := load[domain.VPNKey](ctx, r.store, NamespaceSales, vpnKeyKey(operator, keyType, id))
	if !ok {
		return domain.VPNKey{}, false
	}
	k.Operator, k.KeyType, k.ID = operator, keyType, id
	return k, true
}

func (r *Repository) DeleteKey(ctx context.Context, k domain.VPNKey) bool {
	k.Operator = NormalizeCode(k.Operator)
	if err := validateKeyIdentity(k); err != nil {
		return false
	}
	return r.store.Delete(ctx, NamespaceSales, vpnKeyKey(k.Operator, k.KeyType, k.ID))
}

// ListKeys returns stocked keys narrowed by operator and key type. An empty
// operator lists every key; an empty key type lists every type of operator.
// The result is ordered by operator, key type, creation time and id.
func (r *Repository) ListKeys(ctx context.Context, operator, keyType string) []domain.VPNKey {
	var parts []string
	if operator != "" {
		operator = NormalizeCode(operator)
		if !ValidSegment(operator) {
			return nil
		}
		parts = append(parts, operator)
		if keyType != "" {
			if !ValidSegment(keyType) {
				return nil
			}
			parts = append(parts, keyType)
		}
	}
	keys := r.scanKeys(ctx, prefix(KindVPNKey, parts...), func(domain.VPNKey) bool { return true })
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Operator != b.Operator {
			return a.Operator < b.Operator
		}
		if a.KeyType != b.KeyType {
			return a.KeyType < b.KeyType
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return keys
}

// FindKey looks a key up by id alone. Ids are unique across operators and
// key types, so the first match wins.
func (r *Repository) FindKey(ctx context.Context, id string) (domain.VPNKey, bool) {
	if !ValidSegment(id) {
		return domain.VPNKey{}, false
	}
	found := r.scanKeys(ctx, prefix(KindVPNKey), func(k domain.VPNKey) bool { return k.ID == id })
	if len(found) == 0 {
		return domain.VPNKey{}, false
	}
	return found[0], true
}

// KeysOf returns the keys assigned to userID, oldest first.
func (r *Repository) KeysOf(ctx context.Context, userID int64) []domain.VPNKey {
	if userID == 0 {
		return nil
	}
	keys := r.scanKeys(ctx, prefix(KindVPNKey), func(k domain.VPNKey) bool { return k.AssignedTo == userID })
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.Before(keys[j].CreatedAt) })
	return keys
}

// UpdateKeyStatus rewrites the status, holder and expiry of the key with the
// given id. It is a read-modify-write; concurrent updates are last-writer-wins.
func (r *Repository) UpdateKeyStatus(ctx context.Context, id string, status domain.KeyStatus, assignedTo int64, expiresAt *time.Time) (domain.VPNKey, bool) {
	k, ok := r.FindKey(ctx, id)
	if !ok {
		return domain.VPNKey{}, false
	}
	k.Status, k.AssignedTo, k.ExpiresAt = status, assignedTo, expiresAt
	if !r.PutKey(ctx, k) {
		return domain.VPNKey{}, false
	}
	return k, true
}

func (r *Repository) scanKeys(ctx context.Context, p string, keep func(domain.VPNKey) bool) []domain.VPNKey {
	var keys []domain.VPNKey
	for _, sk := range r.store.ListKeys(ctx, NamespaceSales, p) {
		parts, ok := splitKey(KindVPNKey, sk, 3)
		if !ok {
			continue
		}
		k, ok := load[domain.VPNKey](ctx, r.store, NamespaceSales, sk)
		if !ok {
			continue
		}
		k.Operator, k.KeyType, k.ID = parts[0], parts[1], parts[2]
		if keep(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// PutPayment stores a payment record under its transaction id.
func (r *Repository) PutPayment(ctx context.Context, p domain.Payment) bool {
	if err := validateCode("transaction id", p.ID); err != nil {
		slog.Error("refusing to store payment", "err", err)
		return false
	}
	p.ItemType = NormalizeCode(p.ItemType)
	return r.store.Put(ctx, NamespaceSales, paymentKey(p.ID), p)
}

func (r *Repository) GetPayment(ctx context.Context, id string) (domain.Payment, bool) {
	if !ValidSegment(id) {
		return domain.Payment{}, false
	}
	p, ok := load[domain.Payment](ctx, r.store, NamespaceSales, paymentKey(id))
	if !ok {
		return domain.Payment{}, false
	}
	p.ID = id
	return p, true
}

// ListPayments returns payments in the given status, oldest first. An empty
// status lists every payment.
func (r *Repository) ListPayments(ctx context.Context, status domain.PaymentStatus) []domain.Payment {
	var out []domain.Payment
	for _, k := range r.store.ListKeys(ctx, NamespaceSales, prefix(KindPayment)) {
		parts, ok := splitKey(KindPayment, k, 1)
		if !ok {
			continue
		}
		p, ok := load[domain.Payment](ctx, r.store, NamespaceSales, k)
		if !ok || (status != "" && p.Status != status) {
			continue
		}
		p.ID = parts[0]
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// PendingPaymentOf returns the newest pending payment of userID.
func (r *Repository) PendingPaymentOf(ctx context.Context, userID int64) (domain.Payment, bool) {
	var latest domain.Payment
	found := false
	for _, p := range r.ListPayments(ctx, domain.PaymentPending) {
		if p.UserID == userID {
			latest, found = p, true
		}
	}
	return latest, found
}

// Decision is an administrator's verdict on a pending payment.
type Decision struct {
	Status    domain.PaymentStatus
	DecidedBy int64
	KeyID     string
	At        time.Time
}

// UpdatePaymentStatus applies d to a pending payment. It returns false when
// the payment is missing, already decided or cannot be written.
func (r *Repository) UpdatePaymentStatus(ctx context.Context, id string, d Decision) (domain.Payment, bool) {
	p, ok := r.GetPayment(ctx, id)
	if !ok {
		return domain.Payment{}, false
	}
	if p.Status != domain.PaymentPending {
		slog.Warn("payment already decided", "payment_id", id, "status", p.Status)
		return domain.Payment{}, false
	}
	at := d.At.UTC()
	p.Status, p.DecidedBy, p.KeyID, p.DecidedAt = d.Status, d.DecidedBy, d.KeyID, &at
	if !r.PutPayment(ctx, p) {
		return domain.Payment{}, false
	}
	return p, true
}
