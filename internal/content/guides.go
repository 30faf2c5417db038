package content

import (
	"context"
	"log/slog"
	"sort"
	"strconv"

	"guide-bot/internal/domain"
)

// PutStep stores step under its group and number, overwriting any previous
// value. The group code is upper-cased and an empty display name defaults to it.
func (r *Repository) PutStep(ctx context.Context, step domain.GuideStep) bool {
	step.GroupCode = NormalizeCode(step.GroupCode)
	if err := validateCode("group code", step.GroupCode); err != nil || step.StepNumber <= 0 {
		slog.Error("refusing to store guide step", "group", step.GroupCode, "step", step.StepNumber, "err", err)
		return false
	}
	if step.DisplayName == "" {
		step.DisplayName = step.GroupCode
	}
	return r.store.Put(ctx, NamespaceGuides, guideKey(step.GroupCode, step.StepNumber), step)
}

// GetStep returns the stored step, or false when it does not exist.
func (r *Repository) GetStep(ctx context.Context, group string, n int) (domain.GuideStep, bool) {
	group = NormalizeCode(group)
	if !ValidSegment(group) || n <= 0 {
		return domain.GuideStep{}, false
	}
	step, ok := load[domain.GuideStep](ctx, r.store, NamespaceGuides, guideKey(group, n))
	if !ok {
		return domain.GuideStep{}, false
	}
	step.GroupCode = group
	step.StepNumber = n
	if step.DisplayName == "" {
		step.DisplayName = group
	}
	return step, true
}

// DeleteStep removes a single step.
func (r *Repository) DeleteStep(ctx context.Context, group string, n int) bool {
	group = NormalizeCode(group)
	if !ValidSegment(group) || n <= 0 {
		return false
	}
	return r.store.Delete(ctx, NamespaceGuides, guideKey(group, n))
}

// DeleteGroup removes every key of group and returns how many deletions
// succeeded. Partial failure is possible.
func (r *Repository) DeleteGroup(ctx context.Context, group string) int {
	group = NormalizeCode(group)
	if !ValidSegment(group) {
		return 0
	}
	deleted := 0
	for _, k := range r.store.ListKeys(ctx, NamespaceGuides, prefix(KindGuide, group)) {
		if r.store.Delete(ctx, NamespaceGuides, k) {
			deleted++
		}
	}
	return deleted
}

// ListGroupCodes returns the distinct group codes present, sorted.
func (r *Repository) ListGroupCodes(ctx context.Context) []string {
	seen := make(map[string]bool)
	var groups []string
	for _, k := range r.store.ListKeys(ctx, NamespaceGuides, prefix(KindGuide)) {
		parts, ok := splitKey(KindGuide, k, 2)
		if !ok || seen[parts[0]] {
			continue
		}
		seen[parts[0]] = true
		groups = append(groups, parts[0])
	}
	sort.Strings(groups)
	return groups
}

// ListStepNumbers returns the step numbers of group in strictly ascending
// order. Keys whose trailing segment is not a canonical positive integer
// ("01" and "+3" are not) are skipped.
func (r *Repository) ListStepNumbers(ctx context.Context, group string) []int {
	group = NormalizeCode(group)
	if !ValidSegment(group) {
		return nil
	}
	seen := make(map[int]bool)
	var steps []int
	for _, k := range r.store.ListKeys(ctx, NamespaceGuides, prefix(KindGuide, group)) {
		parts, ok := splitKey(KindGuide, k, 2)
		if !ok || parts[0] != group {
			continue
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil || n <= 0 || strconv.Itoa(n) != parts[1] {
			slog.Debug("skipping malformed guide key", "key", k)
			continue
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		steps = append(steps, n)
	}
	sort.Ints(steps)
	return steps
}
