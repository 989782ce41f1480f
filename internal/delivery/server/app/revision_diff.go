package app

import (
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// summarizeRevision reports how much of a file a revision touched.
func summarizeRevision(path, before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(before, after, false))

	var inserted, deleted int
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			inserted += len([]rune(d.Text))
		case diffmatchpatch.DiffDelete:
			deleted += len([]rune(d.Text))
		}
	}
	if inserted == 0 && deleted == 0 {
		return fmt.Sprintf("%s unchanged", path)
	}
	return fmt.Sprintf("%s +%d/-%d chars", path, inserted, deleted)
}
