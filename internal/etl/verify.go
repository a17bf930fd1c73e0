package etl

import (
	"context"
	"fmt"
	"slices"

	"github.com/malbeclabs/songlake/pkg/engine"
)

// verify reads a written table back from storage and checks that its row
// count and column set match the in-memory table.
func (p *Pipeline) verify(ctx context.Context, t Table) error {
	uri := t.URI(p.cfg.OutputRoot)

	objects, err := p.cfg.Store.List(ctx, uri)
	if err != nil {
		return fmt.Errorf("failed to list %s output: %w", t.Name, err)
	}
	if len(objects) == 0 {
		return fmt.Errorf("verify %s: no objects under %s", t.Name, engine.RedactedURI(uri))
	}

	readBack := "verify_" + t.Name
	defer func() {
		if err := p.cfg.Engine.DropTable(ctx, readBack); err != nil {
			p.log.Warn("etl: failed to drop verification table", "table", readBack, "error", err)
		}
	}()

	got, err := p.cfg.Engine.ReadParquet(ctx, readBack, uri, t.Partitions)
	if err != nil {
		return fmt.Errorf("verify %s: %w", t.Name, err)
	}
	want, err := p.cfg.Engine.Count(ctx, t.Name)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("verify %s: read back %d rows, wrote %d", t.Name, got, want)
	}

	gotCols, err := p.cfg.Engine.Columns(ctx, readBack)
	if err != nil {
		return err
	}
	wantCols, err := p.cfg.Engine.Columns(ctx, t.Name)
	if err != nil {
		return err
	}
	if !sameColumns(gotCols, wantCols) {
		return fmt.Errorf("verify %s: read back columns %v, wrote %v", t.Name, gotCols, wantCols)
	}

	p.log.Debug("etl: verified table", "table", t.Name, "rows", got, "objects", len(objects))
	return nil
}

// sameColumns compares column sets. Partition columns come back last from a
// hive read, so order is ignored.
func sameColumns(a, b []string) bool {
	a = slices.Clone(a)
	b = slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}
