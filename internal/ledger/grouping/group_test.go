package grouping

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/microfin/testing"
)

type row struct {
	code   string
	client *string
	n      int
}

func str(s string) *string { return &s }

func byCode(r row) Key   { return K(String(r.code)) }
func byClient(r row) Key { return K(OptionalString(r.client)) }

func TestGroupByFirstSeenOrder(t *testing.T) {
	rows := []row{{code: "4052", n: 1}, {code: "2010A", n: 2}, {code: "4052", n: 3}, {code: "1010", n: 4}}
	groups := GroupBy(rows, byCode)
	require.Len(t, groups, 3)
	require.Equal(t, "4052", groups[0].Label)
	require.Equal(t, "2010A", groups[1].Label)
	require.Equal(t, "1010", groups[2].Label)
	require.Equal(t, []row{rows[0], rows[2]}, groups[0].Items)

	again := GroupBy(rows, byCode)
	for i := range groups {
		require.Equal(t, groups[i].Key.ID(), again[i].Key.ID())
		require.Equal(t, groups[i].Items, again[i].Items)
	}
}

func TestGroupByNested(t *testing.T) {
	rows := []row{
		{code: "2010A", client: str("c1"), n: 1},
		{code: "2010A", client: str("c2"), n: 2},
		{code: "4052", client: str("c1"), n: 3},
		{code: "2010A", client: str("c1"), n: 4},
	}
	groups := GroupBy(rows, byCode, byClient)
	require.Len(t, groups, 2)
	require.Len(t, groups[0].Children, 2)
	require.Equal(t, "c1", groups[0].Children[0].Label)
	require.Len(t, groups[0].Children[0].Items, 2)
	require.Len(t, groups[0].Items, 3)
	require.Equal(t, 1, groups[0].Children[0].Depth)
	require.Len(t, Leaves(groups), 3)
}

func TestNullKeysShareSentinel(t *testing.T) {
	rows := []row{
		{code: "1", client: nil},
		{code: "2", client: str("c1")},
		{code: "3", client: str("  ")},
		{code: "4", client: nil},
	}
	groups := GroupBy(rows, byClient)
	require.Len(t, groups, 2)
	require.Equal(t, NotApplicable, groups[0].Label)
	require.True(t, groups[0].Key.IsNull())
	require.Len(t, groups[0].Items, 3)
	require.Len(t, groups[1].Items, 1)
}

func TestNullDoesNotMergeWithLiteral(t *testing.T) {
	rows := []row{{code: "a", client: nil}, {code: "b", client: str(NotApplicable)}, {code: "c", client: str("")}}
	groups := GroupBy(rows, byClient)
	require.Len(t, groups, 2)
	require.Len(t, groups[0].Items, 2)
	require.False(t, groups[1].Key.IsNull())
}

func TestKeyEncodingAvoidsCollisions(t *testing.T) {
	require.NotEqual(t, K(String("a|b")).ID(), K(String("a"), String("b")).ID())
	require.NotEqual(t, K(String("1")).ID(), K(Int(1)).ID())
	require.NotEqual(t, K(String("")).ID(), K(Null()).ID())
	require.Equal(t, K(Date(time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC))).ID(), K(Date(time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC))).ID())
}

func TestFindAndWalk(t *testing.T) {
	rows := []row{{code: "x"}, {code: "y"}}
	groups := GroupBy(rows, byCode)
	g, ok := Find(groups, K(String("y")))
	require.True(t, ok)
	require.Equal(t, "y", g.Label)
	_, ok = Find(groups, K(String("z")))
	require.False(t, ok)

	var seen []string
	Walk(groups, func(g *Group[row]) bool {
		seen = append(seen, g.Label)
		return true
	})
	require.Equal(t, []string{"x", "y"}, seen)
	require.Nil(t, GroupBy(rows))
}
