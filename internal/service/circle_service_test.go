// internal/service/circle_service_test.go
package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circlepool/internal/util"
)

func TestCreateCircle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	host := f.store.addUser("Asha", "asha@upi", dec("100"))
	bob := f.store.addUser("Bob", "bob@upi", dec("100"))
	cara := f.store.addUser("Cara", "cara@upi", dec("100"))

	circle, err := f.circles.CreateCircle(ctx, host.ID, CreateCircleParams{
		Name:           "Trip Fund",
		RequiredAmount: dec("500"),
		AutoSplit:      true,
		MemberUpiIDs:   []string{"bob@upi", "CARA@upi", "bob@upi"}, // duplicate and mixed case
	})
	require.NoError(t, err)
	require.NotNil(t, circle)

	assert.Equal(t, host.ID, circle.HostID)
	require.Len(t, circle.Members, 3)
	assert.Equal(t, host.ID, circle.Members[0].UserID, "host is the first member")
	assert.Equal(t, bob.ID, circle.Members[1].UserID)
	assert.Equal(t, cara.ID, circle.Members[2].UserID)
	for _, m := range circle.Members {
		assert.True(t, m.Contribution.IsZero())
		assert.True(t, m.AllocatedBalance.IsZero())
	}
	assert.True(t, circle.PoolBalance.IsZero())
}

func TestCreateCircleUnresolvableUpiFailsEntirely(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	host := f.store.addUser("Asha", "asha@upi", dec("100"))
	f.store.addUser("Bob", "bob@upi", dec("100"))

	_, err := f.circles.CreateCircle(ctx, host.ID, CreateCircleParams{
		Name:         "Trip Fund",
		MemberUpiIDs: []string{"bob@upi", "ghost@upi"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrUserNotFound)
	assert.Contains(t, err.Error(), "ghost@upi")
	assert.Empty(t, f.store.circles, "no circle is created when any UPI ID is unknown")
}

func TestCreateCircleValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	host := f.store.addUser("Asha", "asha@upi", dec("100"))

	_, err := f.circles.CreateCircle(ctx, host.ID, CreateCircleParams{Name: "  ", MemberUpiIDs: []string{"x@upi"}})
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	_, err = f.circles.CreateCircle(ctx, host.ID, CreateCircleParams{Name: "Fund", RequiredAmount: dec("-1"), MemberUpiIDs: []string{"x@upi"}})
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	_, err = f.circles.CreateCircle(ctx, host.ID, CreateCircleParams{Name: "Fund"})
	assert.ErrorIs(t, err, util.ErrInvalidInput)
}

func TestJoinCircle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	host := f.store.addUser("Asha", "asha@upi", dec("100"))
	bob := f.store.addUser("Bob", "bob@upi", dec("100"))
	circle := f.store.addCircle("Fund", host.ID, dec("0"), true)

	joined, err := f.circles.JoinCircle(ctx, circle.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, joined.Members, 2)
	assert.Equal(t, bob.ID, joined.Members[1].UserID)
	assert.True(t, joined.Members[1].Contribution.IsZero())
	assert.True(t, joined.Members[1].AllocatedBalance.IsZero())

	_, err = f.circles.JoinCircle(ctx, circle.ID, bob.ID)
	assert.ErrorIs(t, err, util.ErrAlreadyMember)
}

func TestContributeAutoSplitRefreshesQuota(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	host := f.store.addUser("Asha", "asha@upi", dec("1000"))
	bob := f.store.addUser("Bob", "bob@upi", dec("1000"))
	circle := f.store.addCircle("Fund", host.ID, dec("500"), true, bob.ID)

	// Pool below the reserve: no free money, quotas stay zero.
	got, err := f.circles.Contribute(ctx, circle.ID, host.ID, dec("400"))
	require.NoError(t, err)
	assert.True(t, got.PoolBalance.Equal(dec("400")))
	assert.True(t, f.store.userBalance(host.ID).Equal(dec("800")))
	assert.True(t, f.store.userBalance(bob.ID).Equal(dec("800")))
	for _, m := range got.Members {
		assert.True(t, m.Contribution.Equal(dec("200")))
		assert.True(t, m.AllocatedBalance.IsZero())
	}

	// Pool rises above the reserve: the surplus is split as the new quota.
	got, err = f.circles.Contribute(ctx, circle.ID, bob.ID, dec("400"))
	require.NoError(t, err)
	assert.True(t, got.PoolBalance.Equal(dec("800")))
	for _, m := range got.Members {
		assert.True(t, m.Contribution.Equal(dec("400")))
		assert.True(t, m.AllocatedBalance.Equal(dec("150")), "quota is (800-500)/2")
	}
}

func TestContributeAutoSplitOverwritesPriorAllocations(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	host := f.store.addUser("Asha", "asha@upi", dec("1000"))
	bob := f.store.addUser("Bob", "bob@upi", dec("1000"))
	circle := f.store.addCircle("Fund", host.ID, dec("100"), true, bob.ID)

	_, err := f.circles.Contribute(ctx, circle.ID, host.ID, dec("300"))
	require.NoError(t, err)

	// Host distributes extra allocation on top of the quota.
	got, err := f.circles.SetAllocationLimit(ctx, circle.ID, host.ID, dec("100"))
	require.NoError(t, err)
	assert.True(t, got.PoolBalance.Equal(dec("200")))
	for _, m := range got.Members {
		assert.True(t, m.AllocatedBalance.Equal(dec("150")), "quota 100 plus distributed 50")
	}

	// The next group contribution discards that distribution and recomputes
	// the quota from the pool surplus alone.
	got, err = f.circles.Contribute(ctx, circle.ID, host.ID, dec("100"))
	require.NoError(t, err)
	assert.True(t, got.PoolBalance.Equal(dec("300")))
	for _, m := range got.Members {
		assert.True(t, m.AllocatedBalance.Equal(dec("100")), "quota is (300-100)/2, prior allocations gone")
	}
}

func TestContributeAutoSplitAllOrNothing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	host := f.store.addUser("Asha", "asha@upi", dec("500"))
	bob := f.store.addUser("Bob", "bob@upi", dec("150"))
	circle := f.store.addCircle("Fund", host.ID, dec("0"), true, bob.ID)

	// Bob's share would be 200 but he only has 150. Nobody is debited.
	_, err := f.circles.Contribute(ctx, circle.ID, host.ID, dec("400"))
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrInsufficientFunds)
	assert.Contains(t, err.Error(), "Bob")

	assert.True(t, f.store.userBalance(host.ID).Equal(dec("500")))
	assert.True(t, f.store.userBalance(bob.ID).Equal(dec("150")))
	state := f.store.circleState(circle.ID)
	assert.True(t, state.PoolBalance.IsZero())
	for _, m := range state.Members {
		assert.True(t, m.Contribution.IsZero())
	}
	totals, err := f.ledgerRepo.TotalsByCircle(ctx, fakeExecutor{}, circle.ID)
	require.NoError(t, err)
	assert.True(t, totals.Contributions.IsZero(), "no audit entries on a rejected contribution")
}

func TestContributeAutoSplitTwoMemberScenario(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.store.addUser("A", "a@upi", dec("600"))
	b := f.store.addUser("B", "b@upi", dec("600"))
	circle := f.store.addCircle("Fund", a.ID, dec("1000"), true, b.ID)

	got, err := f.circles.Contribute(ctx, circle.ID, a.ID, dec("400"))
	require.NoError(t, err)
	assert.True(t, f.store.userBalance(a.ID).Equal(dec("400")))
	assert.True(t, f.store.userBalance(b.ID).Equal(dec("400")))
	assert.True(t, got.PoolBalance.Equal(dec("400")))
	for _, m := range got.Members {
		assert.True(t, m.Contribution.Equal(dec("200")))
		assert.True(t, m.AllocatedBalance.IsZero(), "pool is below the reserve, no free money")
	}

	// A 1200 group contribution needs 600 per member but both hold 400.
	_, err = f.circles.Contribute(ctx, circle.ID, a.ID, dec("1200"))
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrInsufficientFunds)
	assert.True(t, f.store.userBalance(a.ID).Equal(dec("400")))
	assert.True(t, f.store.userBalance(b.ID).Equal(dec("400")))
	assert.True(t, f.store.circleState(circle.ID).PoolBalance.Equal(dec("400")))
}

func TestContributeDebitsInUserIDOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.store.addUser("A", "a@upi", dec("300"))
	b := f.store.addUser("B", "b@upi", dec("300"))
	c := f.store.addUser("C", "c@upi", dec("300"))
	// Host is the highest ID and the remaining members join out of ID order,
	// so the membership order differs from the ID order.
	circle := f.store.addCircle("Fund", c.ID, dec("900"), true, b.ID, a.ID)

	_, err := f.circles.Contribute(ctx, circle.ID, c.ID, dec("300"))
	require.NoError(t, err)

	// Row locks must be taken in ascending user ID regardless of join order,
	// so concurrent group debits across circles cannot deadlock.
	assert.Equal(t, []int64{a.ID, b.ID, c.ID}, f.userRepo.debits)
}

func TestContributeManualModeDebitsOnlyInitiator(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	host := f.store.addUser("Asha", "asha@upi", dec("500"))
	bob := f.store.addUser("Bob", "bob@upi", dec("500"))
	circle := f.store.addCircle("Fund", host.ID, dec("0"), false, bob.ID)

	got, err := f.circles.Contribute(ctx, circle.ID, bob.ID, dec("300"))
	require.NoError(t, err)

	assert.True(t, f.store.userBalance(host.ID).Equal(dec("500")))
	assert.True(t, f.store.userBalance(bob.ID).Equal(dec("200")))
	assert.True(t, got.PoolBalance.Equal(dec("300")))
	assert.True(t, got.Members[0].Contribution.IsZero())
	assert.True(t, got.Members[1].Contribution.Equal(dec("300")))
	for _, m := range got.Members {
		assert.True(t, m.AllocatedBalance.IsZero(), "manual mode never touches allocations")
	}
}

func TestContributeValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	host := f.store.addUser("Asha", "asha@upi", dec("500"))
	outsider := f.store.addUser("Omar", "omar@upi", dec("500"))
	circle := f.store.addCircle("Fund", host.ID, dec("0"), true)

	_, err := f.circles.Contribute(ctx, circle.ID, host.ID, dec("0"))
	assert.ErrorIs(t, err, util.ErrInvalidAmount)

	_, err = f.circles.Contribute(ctx, circle.ID, host.ID, dec("-5"))
	assert.ErrorIs(t, err, util.ErrInvalidAmount)

	_, err = f.circles.Contribute(ctx, circle.ID, outsider.ID, dec("10"))
	assert.ErrorIs(t, err, util.ErrNotMember)

	_, err = f.circles.Contribute(ctx, 999, host.ID, dec("10"))
	assert.ErrorIs(t, err, util.ErrCircleNotFound)
}

func TestSetAllocationLimitConservesMoney(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	host := f.store.addUser("Asha", "asha@upi", dec("1000"))
	bob := f.store.addUser("Bob", "bob@upi", dec("1000"))
	cara := f.store.addUser("Cara", "cara@upi", dec("1000"))
	circle := f.store.addCircle("Fund", host.ID, dec("0"), true, bob.ID, cara.ID)

	_, err := f.circles.Contribute(ctx, circle.ID, host.ID, dec("300"))
	require.NoError(t, err)

	before := f.store.circleState(circle.ID)

	// 100 across 3 members does not divide evenly at any scale.
	got, err := f.circles.SetAllocationLimit(ctx, circle.ID, host.ID, dec("100"))
	require.NoError(t, err)

	assert.True(t, got.PoolBalance.Equal(dec("200")))
	increase := decimal.Zero
	for i, m := range got.Members {
		increase = increase.Add(m.AllocatedBalance.Sub(before.Members[i].AllocatedBalance))
	}
	assert.True(t, increase.Equal(dec("100")), "allocation increases sum to the pool decrease exactly")

	// A second distribution stacks on the first.
	got, err = f.circles.SetAllocationLimit(ctx, circle.ID, host.ID, dec("50"))
	require.NoError(t, err)
	assert.True(t, got.PoolBalance.Equal(dec("150")))
	cumulative := decimal.Zero
	for i, m := range got.Members {
		cumulative = cumulative.Add(m.AllocatedBalance.Sub(before.Members[i].AllocatedBalance))
	}
	assert.True(t, cumulative.Equal(dec("150")), "repeat distributions accumulate")

	totals, err := f.ledgerRepo.TotalsByCircle(ctx, fakeExecutor{}, circle.ID)
	require.NoError(t, err)
	assert.True(t, totals.Contributions.Sub(totals.Allocations).Equal(got.PoolBalance),
		"pool equals contributions minus allocations")
}

func TestSetAllocationLimitGuards(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	host := f.store.addUser("Asha", "asha@upi", dec("1000"))
	bob := f.store.addUser("Bob", "bob@upi", dec("1000"))
	auto := f.store.addCircle("Auto", host.ID, dec("0"), true, bob.ID)
	manual := f.store.addCircle("Manual", host.ID, dec("0"), false, bob.ID)

	_, err := f.circles.SetAllocationLimit(ctx, auto.ID, bob.ID, dec("10"))
	assert.ErrorIs(t, err, util.ErrNotHost)

	_, err = f.circles.SetAllocationLimit(ctx, manual.ID, host.ID, dec("10"))
	assert.ErrorIs(t, err, util.ErrWrongMode)

	_, err = f.circles.SetAllocationLimit(ctx, auto.ID, host.ID, dec("10"))
	assert.ErrorIs(t, err, util.ErrInsufficientPool, "empty pool cannot be distributed")

	_, err = f.circles.SetAllocationLimit(ctx, auto.ID, host.ID, dec("0"))
	assert.ErrorIs(t, err, util.ErrInvalidAmount)
}

func TestAllocateManual(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	host := f.store.addUser("Asha", "asha@upi", dec("1000"))
	bob := f.store.addUser("Bob", "bob@upi", dec("1000"))
	outsider := f.store.addUser("Omar", "omar@upi", dec("1000"))
	circle := f.store.addCircle("Fund", host.ID, dec("0"), false, bob.ID)

	_, err := f.circles.Contribute(ctx, circle.ID, host.ID, dec("500"))
	require.NoError(t, err)

	got, err := f.circles.AllocateManual(ctx, circle.ID, host.ID, bob.ID, dec("120"))
	require.NoError(t, err)
	assert.True(t, got.PoolBalance.Equal(dec("380")))
	assert.True(t, got.Members[1].AllocatedBalance.Equal(dec("120")))
	assert.True(t, got.Members[0].AllocatedBalance.IsZero())

	// Additive on repeat.
	got, err = f.circles.AllocateManual(ctx, circle.ID, host.ID, bob.ID, dec("30"))
	require.NoError(t, err)
	assert.True(t, got.Members[1].AllocatedBalance.Equal(dec("150")))

	_, err = f.circles.AllocateManual(ctx, circle.ID, bob.ID, bob.ID, dec("10"))
	assert.ErrorIs(t, err, util.ErrNotHost)

	_, err = f.circles.AllocateManual(ctx, circle.ID, host.ID, outsider.ID, dec("10"))
	assert.ErrorIs(t, err, util.ErrTargetNotMember)

	_, err = f.circles.AllocateManual(ctx, circle.ID, host.ID, bob.ID, dec("10000"))
	assert.ErrorIs(t, err, util.ErrInsufficientPool)
}

func TestAllocateManualRejectedInAutoSplitMode(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	host := f.store.addUser("Asha", "asha@upi", dec("1000"))
	bob := f.store.addUser("Bob", "bob@upi", dec("1000"))
	circle := f.store.addCircle("Fund", host.ID, dec("0"), true, bob.ID)

	_, err := f.circles.Contribute(ctx, circle.ID, host.ID, dec("200"))
	require.NoError(t, err)

	_, err = f.circles.AllocateManual(ctx, circle.ID, host.ID, bob.ID, dec("50"))
	assert.ErrorIs(t, err, util.ErrWrongMode)
}

func TestGetAndListCircles(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	host := f.store.addUser("Asha", "asha@upi", dec("1000"))
	bob := f.store.addUser("Bob", "bob@upi", dec("1000"))
	outsider := f.store.addUser("Omar", "omar@upi", dec("1000"))
	c1 := f.store.addCircle("One", host.ID, dec("0"), true, bob.ID)
	f.store.addCircle("Two", bob.ID, dec("0"), false)

	got, err := f.circles.GetCircle(ctx, c1.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "One", got.Name)

	_, err = f.circles.GetCircle(ctx, c1.ID, outsider.ID)
	assert.ErrorIs(t, err, util.ErrNotMember)

	mine, err := f.circles.ListCircles(ctx, bob.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	none, err := f.circles.ListCircles(ctx, outsider.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}
