package maple

import (
	"testing"

	"github.com/ValentinKolb/dObj/lib/db"
	dbtesting "github.com/ValentinKolb/dObj/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunEngineTests(t, "MapleGroup", func() db.Group {
		return NewMapleGroup(nil)
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunEngineBenchmarks(b, "MapleGroup", func() db.Group {
		return NewMapleGroup(nil)
	})
}
