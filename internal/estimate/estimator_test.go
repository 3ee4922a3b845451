package estimate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/lifespan/internal/date"
	"github.com/ppiankov/lifespan/internal/record"
	"github.com/ppiankov/lifespan/internal/store"
)

func fixedClock() time.Time {
	return time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Clock = fixedClock
	return cfg
}

func estimateHandle(t *testing.T, b *store.Builder, handle string) Result {
	t.Helper()
	est := New(b.Build(), testConfig(), nil)
	_, r, err := est.EstimateHandle(context.Background(), handle)
	require.NoError(t, err)
	return r
}

func TestSelfDirect(t *testing.T) {
	b := store.NewBuilder()
	b.Person("I1", "Ada", "Byron").Born("1815-12-10").Died("1852-11-27")

	r := estimateHandle(t, b, "I1")
	assert.Equal(t, PhaseSelfDirect, r.Phase)
	assert.Equal(t, date.New(1815, 12, 10), r.Birth)
	assert.Equal(t, date.New(1852, 11, 27), r.Death)
	assert.Nil(t, r.Relative)
	assert.Contains(t, r.Explanation, "direct evidence")
}

func TestBirthOnlyExtrapolatesDeath(t *testing.T) {
	b := store.NewBuilder()
	b.Person("I1", "A", "").Born("1900")

	r := estimateHandle(t, b, "I1")
	assert.Equal(t, PhaseSelfBounded, r.Phase)
	assert.Equal(t, date.Year(1900), r.Birth)
	assert.Equal(t, date.Year(2010), r.Death)
	assert.Nil(t, r.Relative)
}

func TestDeathOnlyBoundLaw(t *testing.T) {
	b := store.NewBuilder()
	b.Person("I1", "A", "").Died("1950-06-01")

	r := estimateHandle(t, b, "I1")
	require.Equal(t, PhaseSelfBounded, r.Phase)
	assert.Equal(t, date.Range(date.Year(1840), date.Year(1950)), r.Birth)
	assert.Equal(t, date.New(1950, 6, 1), r.Death)

	lower, upper := r.Birth.Start().Year(), r.Birth.End().Year()
	assert.LessOrEqual(t, lower, 1950)
	assert.GreaterOrEqual(t, upper, 1950)
	assert.LessOrEqual(t, 1950-upper, 110)
}

func TestSiblingBounds(t *testing.T) {
	b := store.NewBuilder()
	b.Person("S1", "S1", "").Born("1900")
	b.Person("S2", "S2", "").Born("1905")
	b.Person("S3", "S3", "").Born("1910")
	b.Person("I1", "Subject", "")
	b.Person("F", "Father", "")
	b.Family("F1", "F", "", "S1", "I1", "S2", "S3")

	r := estimateHandle(t, b, "I1")
	require.Equal(t, PhaseSelfBounded, r.Phase)
	assert.Equal(t, date.Range(date.Year(1890), date.Year(1920)), r.Birth)
	assert.Equal(t, date.Range(date.Year(2000), date.Year(2030)), r.Death)
	require.NotNil(t, r.Relative)
	assert.Equal(t, "S3", r.Relative.Handle)
	assert.Contains(t, r.Explanation, "siblings")
}

func TestSiblingsFromOtherParentFamiliesIgnored(t *testing.T) {
	b := store.NewBuilder()
	b.Person("I1", "Subject", "")
	b.Person("S1", "Half", "").Born("1900")
	b.Family("F1", "", "")
	b.Family("F2", "", "", "S1")
	tree := b.Tree()
	for i := range tree.Persons {
		if tree.Persons[i].Handle == "I1" {
			tree.Persons[i].ParentFamilies = []string{"F1", "F2"}
		}
	}
	tree.Families[0].Children = []string{"I1"}
	tree.Families[1].Children = []string{"S1", "I1"}

	est := New(store.NewMemory(tree), testConfig(), nil)
	_, r, err := est.EstimateHandle(context.Background(), "I1")
	require.NoError(t, err)
	assert.Equal(t, PhaseUnresolved, r.Phase)
}

func TestParentBoundTighterThanSiblings(t *testing.T) {
	b := store.NewBuilder()
	b.Person("S1", "S1", "").Born("1900")
	b.Person("M", "Mother", "").Born("1885").Died("1915")
	b.Person("I1", "Subject", "")
	b.Family("F1", "", "M", "S1", "I1")

	r := estimateHandle(t, b, "I1")
	require.Equal(t, PhaseSelfBounded, r.Phase)
	// lower: max(1885+13, 1900-20) = 1898, upper: min(1915, 1900+20) = 1915
	assert.Equal(t, date.Range(date.Year(1898), date.Year(1915)), r.Birth)
	require.NotNil(t, r.Relative)
	assert.Equal(t, "M", r.Relative.Handle)
	assert.Contains(t, r.Explanation, "mother's birth")
	assert.Contains(t, r.Explanation, "mother's death")
}

func TestFatherDeathAllowsPosthumousBirth(t *testing.T) {
	b := store.NewBuilder()
	b.Person("F", "Father", "").Died("1900")
	b.Person("I1", "Subject", "")
	b.Family("F1", "F", "", "I1")

	r := estimateHandle(t, b, "I1")
	require.Equal(t, PhaseSelfBounded, r.Phase)
	assert.Equal(t, date.Before(date.Year(1901)), r.Birth)
	assert.Equal(t, date.Before(date.Year(2011)), r.Death)
}

func TestConflictingBoundsSwapped(t *testing.T) {
	b := store.NewBuilder()
	b.Person("M", "Mother", "").Died("1880")
	b.Person("F", "Father", "").Born("1890")
	b.Person("I1", "Subject", "")
	b.Family("F1", "F", "M", "I1")

	r := estimateHandle(t, b, "I1")
	require.Equal(t, PhaseSelfBounded, r.Phase)
	assert.Equal(t, date.Range(date.Year(1880), date.Year(1903)), r.Birth)
}

func TestUndatedDeathEndsYesterday(t *testing.T) {
	b := store.NewBuilder()
	b.Person("I1", "A", "").Born("1990").Event(record.EventBurial, "")

	r := estimateHandle(t, b, "I1")
	require.Equal(t, PhaseSelfBounded, r.Phase)
	assert.Equal(t, date.Range(date.Year(1990), date.New(2026, 10, 15)), r.Death)

	b = store.NewBuilder()
	b.Person("I1", "A", "").Born("1800").Died("")
	r = estimateHandle(t, b, "I1")
	assert.Equal(t, date.Range(date.Year(1800), date.Year(1910)), r.Death)
}

func TestSpouseImmediate(t *testing.T) {
	b := store.NewBuilder()
	b.Person("P", "Subject", "")
	b.Person("S", "Spouse", "").Born("1880")
	b.Family("F1", "P", "S")

	r := estimateHandle(t, b, "P")
	require.Equal(t, PhaseSpouseImmediate, r.Phase)
	assert.Equal(t, date.Range(date.Year(1860), date.Year(1900)), r.Birth)
	assert.Equal(t, date.Range(date.Year(1970), date.Year(2010)), r.Death)
	require.NotNil(t, r.Relative)
	assert.Equal(t, "S", r.Relative.Handle)
}

func TestSpouseWithOpenEndedBirth(t *testing.T) {
	b := store.NewBuilder()
	b.Person("P", "Subject", "")
	b.Person("S", "Spouse", "")
	b.Person("SF", "Spouse father", "").Born("1850")
	b.Family("F1", "P", "S")
	b.Family("F2", "SF", "", "S")

	est := New(b.Build(), testConfig(), nil)
	_, sr, err := est.EstimateHandle(context.Background(), "S")
	require.NoError(t, err)
	require.Equal(t, date.After(date.Year(1863)), sr.Birth)

	// after 1863 reaches 1913 with the default after span
	r := estimateHandle(t, b, "P")
	require.Equal(t, PhaseSpouseImmediate, r.Phase)
	assert.Equal(t, date.Range(date.Year(1843), date.Year(1933)), r.Birth)
	assert.Equal(t, date.Range(date.Year(1953), date.Year(2043)), r.Death)

	d := decider(b)
	for _, year := range []int{1995, 2010} {
		_, sv, err := d.DecideHandle(context.Background(), "S", date.Year(year))
		require.NoError(t, err)
		_, pv, err := d.DecideHandle(context.Background(), "P", date.Year(year))
		require.NoError(t, err)
		assert.True(t, sv.Alive, "spouse in %d", year)
		assert.True(t, pv.Alive, "subject in %d", year)
	}
}

func TestSpouseWithBeforeBirth(t *testing.T) {
	b := store.NewBuilder()
	b.Person("P", "Subject", "")
	b.Person("S", "Spouse", "").Born("bef 1880")
	b.Family("F1", "S", "P")

	r := estimateHandle(t, b, "P")
	require.Equal(t, PhaseSpouseImmediate, r.Phase)
	assert.Equal(t, date.Range(date.Year(1810), date.Year(1900)), r.Birth, "before 1880 reaches back to 1830")
}

func TestUndatedDeathSpansOpenBirth(t *testing.T) {
	b := store.NewBuilder()
	b.Person("I1", "A", "").Born("bef 1920").Event(record.EventBurial, "")

	r := estimateHandle(t, b, "I1")
	require.Equal(t, PhaseSelfBounded, r.Phase)
	assert.Equal(t, date.Range(date.Year(1870), date.New(2026, 10, 15)), r.Death)
}

func TestSpouseImmediateFirstResolvedWins(t *testing.T) {
	b := store.NewBuilder()
	b.Person("P", "Subject", "")
	b.Person("S1", "Unknown", "")
	b.Person("S2", "Second", "").Born("1850")
	b.Person("S3", "Third", "").Born("1870")
	b.Family("F1", "P", "S1")
	b.Family("F2", "P", "S2")
	b.Family("F3", "P", "S3")

	r := estimateHandle(t, b, "P")
	require.Equal(t, PhaseSpouseImmediate, r.Phase)
	assert.Equal(t, "S2", r.Relative.Handle)
	assert.Equal(t, date.Range(date.Year(1830), date.Year(1870)), r.Birth)
}

func TestFamilyEventFallback(t *testing.T) {
	b := store.NewBuilder()
	b.Person("P", "Subject", "")
	b.Person("S", "Spouse", "")
	b.Family("F1", "P", "S").Event(record.EventMarriage, "1900-06-01")

	r := estimateHandle(t, b, "P")
	require.Equal(t, PhaseSpouseImmediate, r.Phase)
	assert.Equal(t, date.Range(date.Year(1790), date.Year(1887)), r.Birth)
	assert.Equal(t, date.Range(date.Year(1900), date.Year(1997)), r.Death)
	assert.Contains(t, r.Explanation, "marriage")
}

func TestDescendantScanStopsAtFirstGeneration(t *testing.T) {
	b := store.NewBuilder()
	b.Person("P", "Subject", "")
	b.Person("C1", "Child", "").Born("1900")
	b.Person("C2", "Child", "").Born("1910")
	b.Person("G1", "Grandchild", "").Born("1990")
	b.Family("F1", "P", "", "C1", "C2")
	b.Family("F2", "C1", "", "G1")

	r := estimateHandle(t, b, "P")
	require.Equal(t, PhaseDescendantScan, r.Phase)
	assert.Equal(t, date.Year(1885), r.Birth)
	assert.Equal(t, date.Year(1995), r.Death)
	assert.Equal(t, "C1", r.Relative.Handle)
}

func TestDescendantScanPrefersShallowestBranch(t *testing.T) {
	b := store.NewBuilder()
	b.Person("P", "Subject", "")
	b.Person("C1", "Child", "")
	b.Person("C2", "Child", "")
	b.Person("D1", "Deep", "")
	b.Person("D2", "Deep", "").Born("1990")
	b.Person("G1", "Grandchild", "").Born("1940")
	b.Family("F1", "P", "", "C1", "C2")
	b.Family("F2", "C1", "", "D1")
	b.Family("F3", "D1", "", "D2")
	b.Family("F4", "C2", "", "G1")

	r := estimateHandle(t, b, "P")
	require.Equal(t, PhaseDescendantScan, r.Phase)
	assert.Equal(t, date.Year(1900), r.Birth)
	assert.Equal(t, "G1", r.Relative.Handle)
}

func TestDescendantDeathsOnly(t *testing.T) {
	b := store.NewBuilder()
	b.Person("P", "Subject", "")
	b.Person("C1", "Child", "").Died("1950")
	b.Family("F1", "P", "", "C1")

	r := estimateHandle(t, b, "P")
	require.Equal(t, PhaseDescendantScan, r.Phase)
	assert.Equal(t, date.Range(date.Year(1820), date.Year(1937)), r.Birth)
	assert.LessOrEqual(t, r.Birth.Start().Year(), r.Birth.End().Year())
}

func TestPedigreeCollapseIsNotCycle(t *testing.T) {
	b := store.NewBuilder()
	b.Person("G", "Root", "")
	b.Person("X", "X", "")
	b.Person("Y", "Y", "")
	b.Person("C1", "Cousin", "")
	b.Person("C2", "Cousin", "")
	b.Person("Z", "Z", "")
	b.Person("W", "W", "").Born("2000")
	b.Family("F1", "G", "", "X", "Y")
	b.Family("F2", "X", "", "C1")
	b.Family("F3", "Y", "", "C2")
	b.Family("F4", "C1", "C2", "Z")
	b.Family("F5", "Z", "", "W")

	r := estimateHandle(t, b, "G")
	require.Equal(t, PhaseDescendantScan, r.Phase)
	assert.Equal(t, date.Year(1920), r.Birth)
}

func TestAncestorScanBirth(t *testing.T) {
	b := store.NewBuilder()
	b.Person("P", "Subject", "")
	b.Person("M", "Mother", "")
	b.Person("F", "Father", "")
	b.Person("GM", "Grandmother", "").Born("1850")
	b.Family("F1", "F", "M", "P")
	b.Family("F2", "", "GM", "M")

	r := estimateHandle(t, b, "P")
	require.Equal(t, PhaseAncestorScan, r.Phase)
	assert.Equal(t, date.Year(1890), r.Birth)
	assert.Equal(t, date.Year(2000), r.Death)
	assert.Equal(t, "GM", r.Relative.Handle)
}

func TestAncestorScanDeathOnly(t *testing.T) {
	b := store.NewBuilder()
	b.Person("P", "Subject", "")
	b.Person("F", "Father", "")
	b.Person("GF", "Grandfather", "").Died("1900")
	b.Family("F1", "F", "", "P")
	b.Family("F2", "GF", "", "F")

	r := estimateHandle(t, b, "P")
	require.Equal(t, PhaseAncestorScan, r.Phase)
	assert.Equal(t, date.Range(date.Year(1830), date.Year(1940)), r.Birth)
}

func TestAncestorScanPrefersShallowerBranch(t *testing.T) {
	b := store.NewBuilder()
	b.Person("P", "Subject", "")
	b.Person("M", "Mother", "")
	b.Person("F", "Father", "")
	b.Person("MM", "Maternal grandmother", "")
	b.Person("MMM", "Great grandmother", "").Born("1800")
	b.Person("FM", "Paternal grandmother", "").Born("1840")
	b.Family("F1", "F", "M", "P")
	b.Family("F2", "", "MM", "M")
	b.Family("F3", "", "MMM", "MM")
	b.Family("F4", "", "FM", "F")

	r := estimateHandle(t, b, "P")
	require.Equal(t, PhaseAncestorScan, r.Phase)
	assert.Equal(t, "FM", r.Relative.Handle)
	assert.Equal(t, date.Year(1880), r.Birth)
}

func TestSpouseFull(t *testing.T) {
	b := store.NewBuilder()
	b.Person("P", "Subject", "")
	b.Person("S", "Spouse", "")
	b.Person("SM", "Spouse mother", "")
	b.Person("SG", "Spouse grandmother", "").Born("1830")
	b.Family("F1", "P", "S")
	b.Family("F2", "", "SM", "S")
	b.Family("F3", "", "SG", "SM")

	r := estimateHandle(t, b, "P")
	require.Equal(t, PhaseSpouseFull, r.Phase)
	assert.Equal(t, date.Range(date.Year(1850), date.Year(1890)), r.Birth)
	assert.Equal(t, "S", r.Relative.Handle)
}

func TestMutualSpousesTerminate(t *testing.T) {
	b := store.NewBuilder()
	b.Person("P", "Subject", "")
	b.Person("S", "Spouse", "")
	b.Family("F1", "P", "S")
	b.Family("F2", "S", "P")

	r := estimateHandle(t, b, "P")
	assert.Equal(t, PhaseUnresolved, r.Phase)
	assert.Equal(t, "no evidence", r.Explanation)
	assert.False(t, r.Birth.IsValid())
	assert.False(t, r.Death.IsValid())
}

func TestCycleOwnAncestor(t *testing.T) {
	b := store.NewBuilder()
	b.Person("A", "Loop", "Person")
	b.Family("F1", "A", "", "A")

	est := New(b.Build(), testConfig(), nil)
	_, _, err := est.EstimateHandle(context.Background(), "A")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGraphCycle))
	assert.True(t, IsCycle(err))

	var ce *CycleError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "A", ce.Handle)
	assert.Equal(t, "Loop Person", ce.Name)
	assert.False(t, ce.DepthLimit)
}

func TestCycleThroughAncestors(t *testing.T) {
	b := store.NewBuilder()
	b.Person("A", "A", "")
	b.Person("B", "B", "")
	b.Family("FA", "B", "", "A")
	b.Family("FB", "A", "", "B")

	est := New(b.Build(), testConfig(), nil)
	_, _, err := est.EstimateHandle(context.Background(), "A")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGraphCycle)
}

func TestDepthGuard(t *testing.T) {
	b := store.NewBuilder()
	handles := []string{"P0", "P1", "P2", "P3", "P4"}
	for _, h := range handles {
		b.Person(h, h, "")
	}
	b.Person("P5", "P5", "").Born("2000")
	for i, h := range handles {
		next := "P5"
		if i+1 < len(handles) {
			next = handles[i+1]
		}
		b.Family("F"+h, h, "", next)
	}

	cfg := testConfig()
	cfg.MaxDepth = 2
	est := New(b.Build(), cfg, nil)
	_, _, err := est.EstimateHandle(context.Background(), "P0")
	require.Error(t, err)

	var ce *CycleError
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.DepthLimit)
	assert.Equal(t, PhaseDescendantScan, ce.Phase)
}

func TestDanglingRelativesAreSkipped(t *testing.T) {
	tree := store.Tree{
		Persons: []record.Person{{
			Handle:         "P",
			ParentFamilies: []string{"missing-family"},
			Families:       []string{"F1"},
		}},
		Families: []record.Family{{
			Handle:   "F1",
			Father:   "P",
			Mother:   "missing-spouse",
			Children: []string{"missing-child"},
		}},
	}
	est := New(store.NewMemory(tree), testConfig(), nil)

	_, r, err := est.EstimateHandle(context.Background(), "P")
	require.NoError(t, err)
	assert.Equal(t, PhaseUnresolved, r.Phase)
}

func TestMissingSubjectIsNotFound(t *testing.T) {
	est := New(store.NewBuilder().Build(), testConfig(), nil)
	_, _, err := est.EstimateHandle(context.Background(), "nobody")
	require.Error(t, err)
	assert.True(t, record.IsNotFound(err))
}

func TestIdempotent(t *testing.T) {
	b := store.NewBuilder()
	b.Person("P", "Subject", "")
	b.Person("C1", "Child", "").Born("1900")
	b.Family("F1", "P", "", "C1")
	est := New(b.Build(), testConfig(), nil)

	_, first, err := est.EstimateHandle(context.Background(), "P")
	require.NoError(t, err)
	_, second, err := est.EstimateHandle(context.Background(), "P")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestConcurrentCallsShareNothing(t *testing.T) {
	b := store.NewBuilder()
	b.Person("P", "Subject", "")
	b.Person("C1", "Child", "")
	b.Person("G1", "Grandchild", "").Born("1950")
	b.Family("F1", "P", "", "C1")
	b.Family("F2", "C1", "", "G1")
	est := New(b.Build(), testConfig(), nil)

	var wg sync.WaitGroup
	results := make([]Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, r, err := est.EstimateHandle(context.Background(), "P")
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, date.Year(1910), r.Birth)
	}
}

func TestCancelledContext(t *testing.T) {
	b := store.NewBuilder()
	b.Person("P", "Subject", "")
	est := New(b.Build(), testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := est.EstimateHandle(ctx, "P")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "self-direct", PhaseSelfDirect.String())
	assert.Equal(t, "spouse-full", PhaseSpouseFull.String())
	assert.Equal(t, "unknown", Phase(0).String())
}
