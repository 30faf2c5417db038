package content

import (
	"context"
	"log/slog"
	"sort"

	"guide-bot/internal/domain"
)

// GetWelcome returns the stored welcome configuration.
func (r *Repository) GetWelcome(ctx context.Context) (domain.WelcomeConfig, bool) {
	return load[domain.WelcomeConfig](ctx, r.store, NamespaceSales, welcomeKey())
}

func (r *Repository) PutWelcome(ctx context.Context, w domain.WelcomeConfig) bool {
	return r.store.Put(ctx, NamespaceSales, welcomeKey(), w)
}

func (r *Repository) DeleteWelcome(ctx context.Context) bool {
	return r.store.Delete(ctx, NamespaceSales, welcomeKey())
}

// PutOperator stores an operator button keyed by its upper-cased code.
func (r *Repository) PutOperator(ctx context.Context, op domain.OperatorButton) bool {
	op.Code = NormalizeCode(op.Code)
	if err := validateCode("operator code", op.Code); err != nil {
		slog.Error("refusing to store operator button", "err", err)
		return false
	}
	return r.store.Put(ctx, NamespaceSales, operatorKey(op.Code), op)
}

func (r *Repository) GetOperator(ctx context.Context, code string) (domain.OperatorButton, bool) {
	code = NormalizeCode(code)
	if !ValidSegment(code) {
		return domain.OperatorButton{}, false
	}
	op, ok := load[domain.OperatorButton](ctx, r.store, NamespaceSales, operatorKey(code))
	if ok {
		op.Code = code
	}
	return op, ok
}

func (r *Repository) DeleteOperator(ctx context.Context, code string) bool {
	code = NormalizeCode(code)
	if !ValidSegment(code) {
		return false
	}
	return r.store.Delete(ctx, NamespaceSales, operatorKey(code))
}

// ListOperators returns every operator button sorted by code. Records that
// vanish or fail to decode between listing and reading are skipped.
func (r *Repository) ListOperators(ctx context.Context) []domain.OperatorButton {
	var ops []domain.OperatorButton
	for _, k := range r.store.ListKeys(ctx, NamespaceSales, prefix(KindOperatorButton)) {
		parts, ok := splitKey(KindOperatorButton, k, 1)
		if !ok {
			continue
		}
		op, ok := load[domain.OperatorButton](ctx, r.store, NamespaceSales, k)
		if !ok {
			continue
		}
		op.Code = parts[0]
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].Code < ops[j].Code })
	return ops
}

// PutPrice stores a product price under its item type and product id.
func (r *Repository) PutPrice(ctx context.Context, p domain.ProductPrice) bool {
	p.ItemType = NormalizeCode(p.ItemType)
	if err := validateCode("item type", p.ItemType); err != nil {
		slog.Error("refusing to store product price", "err", err)
		return false
	}
	if err := validateCode("product id", p.ProductID); err != nil {
		slog.Error("refusing to store product price", "err", err)
		return false
	}
	return r.store.Put(ctx, NamespaceSales, priceKey(p.ItemType, p.ProductID), p)
}

func (r *Repository) GetPrice(ctx context.Context, itemType, productID string) (domain.ProductPrice, bool) {
	itemType = NormalizeCode(itemType)
	if !ValidSegment(itemType) || !ValidSegment(productID) {
		return domain.ProductPrice{}, false
	}
	return load[domain.ProductPrice](ctx, r.store, NamespaceSales, priceKey(itemType, productID))
}

func (r *Repository) DeletePrice(ctx context.Context, itemType, productID string) bool {
	itemType = NormalizeCode(itemType)
	if !ValidSegment(itemType) || !ValidSegment(productID) {
		return false
	}
	return r.store.Delete(ctx, NamespaceSales, priceKey(itemType, productID))
}

// ListPrices returns the prices of itemType sorted by product id.
func (r *Repository) ListPrices(ctx context.Context, itemType string) []domain.ProductPrice {
	itemType = NormalizeCode(itemType)
	if !ValidSegment(itemType) {
		return nil
	}
	var prices []domain.ProductPrice
	for _, k := range r.store.ListKeys(ctx, NamespaceSales, prefix(KindProductPrice, itemType)) {
		parts, ok := splitKey(KindProductPrice, k, 2)
		if !ok || parts[0] != itemType {
			continue
		}
		p, ok := load[domain.ProductPrice](ctx, r.store, NamespaceSales, k)
		if !ok {
			continue
		}
		p.ItemType, p.ProductID = parts[0], parts[1]
		prices = append(prices, p)
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].ProductID < prices[j].ProductID })
	return prices
}

// GetTrial returns the trial record of userID.
func (r *Repository) GetTrial(ctx context.Context, userID int64) (domain.TrialStatus, bool) {
	return load[domain.TrialStatus](ctx, r.store, NamespaceUsers, trialKey(userID))
}

func (r *Repository) PutTrial(ctx context.Context, t domain.TrialStatus) bool {
	return r.store.Put(ctx, NamespaceUsers, trialKey(t.UserID), t)
}

func (r *Repository) DeleteTrial(ctx context.Context, userID int64) bool {
	return r.store.Delete(ctx, NamespaceUsers, trialKey(userID))
}
