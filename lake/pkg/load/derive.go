package load

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/petrodata/prodlake/lake/pkg/dataset"
	"github.com/petrodata/prodlake/lake/pkg/statedb"
	"github.com/petrodata/prodlake/lake/pkg/store"
)

const (
	ProductOil = "Oil"
	ProductGas = "Gas"

	aggregateStatus = "AGGREGATE"
	unknownOperator = "UNKNOWN"
)

// EntityCounts tallies rows created in the normalized entity tables.
type EntityCounts struct {
	States            int
	Operators         int
	Wells             int
	ProductionVolumes int
	// SkippedVolumes are production rows with a null date or a non-numeric volume.
	SkippedVolumes int
}

// deriver creates operators, states, wells and production volumes from staging rows. Lookups are
// cached for the life of one transaction.
type deriver struct {
	q         store.Queryer
	states    *statedb.StateDB
	stateIDs  map[string]int64
	operators map[string]int64
	aggWells  map[string]int64
	counts    EntityCounts
}

func newDeriver(q store.Queryer, states *statedb.StateDB) *deriver {
	return &deriver{
		q:         q,
		states:    states,
		stateIDs:  make(map[string]int64),
		operators: make(map[string]int64),
		aggWells:  make(map[string]int64),
	}
}

// getOrCreate looks up an id with lookup and inserts with insert when nothing matches. insert must
// return the new id via RETURNING.
func (d *deriver) getOrCreate(ctx context.Context, lookup, insert string, lookupArgs, insertArgs []any) (int64, bool, error) {
	var id int64
	err := d.q.QueryRowContext(ctx, lookup, lookupArgs...).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, err
	}
	if err := d.q.QueryRowContext(ctx, insert, insertArgs...).Scan(&id); err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (d *deriver) stateID(ctx context.Context, label string) (int64, string, error) {
	code, name := d.states.Resolve(label)
	if name == "" {
		return 0, "", fmt.Errorf("empty state label")
	}
	if id, ok := d.stateIDs[name]; ok {
		return id, code, nil
	}
	var codeArg any
	if code != "" {
		codeArg = code
	}
	id, created, err := d.getOrCreate(ctx,
		"SELECT state_id FROM states WHERE state_name = ?",
		"INSERT INTO states (state_name, state_code) VALUES (?, ?) RETURNING state_id",
		[]any{name}, []any{name, codeArg})
	if err != nil {
		return 0, "", fmt.Errorf("failed to resolve state %q: %w", name, err)
	}
	if created {
		d.counts.States++
	}
	d.stateIDs[name] = id
	return id, code, nil
}

func (d *deriver) operatorID(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = unknownOperator
	}
	if id, ok := d.operators[name]; ok {
		return id, nil
	}
	id, created, err := d.getOrCreate(ctx,
		"SELECT operator_id FROM operators WHERE operator_name = ?",
		"INSERT INTO operators (operator_name) VALUES (?) RETURNING operator_id",
		[]any{name}, []any{name})
	if err != nil {
		return 0, fmt.Errorf("failed to resolve operator %q: %w", name, err)
	}
	if created {
		d.counts.Operators++
	}
	d.operators[name] = id
	return id, nil
}

// aggregateWellID returns the synthetic well that carries state-level production totals.
func (d *deriver) aggregateWellID(ctx context.Context, stateLabel, operator string) (int64, error) {
	stateID, code, err := d.stateID(ctx, stateLabel)
	if err != nil {
		return 0, err
	}
	key := code
	if key == "" {
		key = strings.ToUpper(strings.TrimSpace(stateLabel))
	}
	api := "AGG-" + key
	if id, ok := d.aggWells[api]; ok {
		return id, nil
	}
	operatorID, err := d.operatorID(ctx, operator)
	if err != nil {
		return 0, err
	}
	id, created, err := d.getOrCreate(ctx,
		"SELECT well_id FROM wells WHERE api_well_number = ? AND status = ?",
		"INSERT INTO wells (api_well_number, status, state_id, operator_id) VALUES (?, ?, ?, ?) RETURNING well_id",
		[]any{api, aggregateStatus}, []any{api, aggregateStatus, stateID, operatorID})
	if err != nil {
		return 0, fmt.Errorf("failed to resolve aggregate well %s: %w", api, err)
	}
	if created {
		d.counts.Wells++
	}
	d.aggWells[api] = id
	return id, nil
}

// deriveProduction writes one production volume per row with a date and a numeric volume.
func (d *deriver) deriveProduction(ctx context.Context, t *dataset.Table, feed ProductionFeed, operator string) error {
	dateIdx, err := t.ColumnIndex("year_month")
	if err != nil {
		return err
	}
	valueIdx, err := t.ColumnIndex("production")
	if err != nil {
		return err
	}
	stateIdx, err := t.ColumnIndex("state")
	if err != nil {
		return err
	}

	for _, row := range t.Rows {
		date, err := time.Parse(dateLayout, strings.TrimSpace(row[dateIdx]))
		if err != nil {
			d.counts.SkippedVolumes++
			continue
		}
		volume, err := strconv.ParseFloat(strings.TrimSpace(row[valueIdx]), 64)
		if err != nil {
			d.counts.SkippedVolumes++
			continue
		}
		wellID, err := d.aggregateWellID(ctx, row[stateIdx], operator)
		if err != nil {
			return err
		}
		if _, err := d.q.ExecContext(ctx,
			"INSERT INTO production_volumes (well_id, production_date, product_type, volume, unit) VALUES (?, ?, ?, ?, ?)",
			wellID, dateArg(d.q.Driver(), date), feed.Product, volume, feed.Unit); err != nil {
			return fmt.Errorf("failed to insert production volume: %w", err)
		}
		d.counts.ProductionVolumes++
	}
	return nil
}

// deriveWells writes one well per row, attached to the feed's state and the row's operator.
func (d *deriver) deriveWells(ctx context.Context, t *dataset.Table, feed WellsFeed) error {
	idx := make(map[string]int)
	for _, c := range []string{"id", "operator", "status", "longitude", "latitude"} {
		i, err := t.ColumnIndex(c)
		if err != nil {
			if c == "operator" || c == "status" {
				idx[c] = -1
				continue
			}
			return err
		}
		idx[c] = i
	}
	get := func(row []string, c string) string {
		if idx[c] < 0 {
			return ""
		}
		return strings.TrimSpace(row[idx[c]])
	}

	stateID, _, err := d.stateID(ctx, feed.State)
	if err != nil {
		return err
	}
	for _, row := range t.Rows {
		operatorID, err := d.operatorID(ctx, get(row, "operator"))
		if err != nil {
			return err
		}
		lat, _ := convert(d.q.Driver(), kindFloat, get(row, "latitude"))
		lon, _ := convert(d.q.Driver(), kindFloat, get(row, "longitude"))
		status, _ := convert(d.q.Driver(), kindText, get(row, "status"))
		if _, err := d.q.ExecContext(ctx,
			"INSERT INTO wells (api_well_number, status, latitude, longitude, state_id, operator_id) VALUES (?, ?, ?, ?, ?, ?)",
			get(row, "id"), status, lat, lon, stateID, operatorID); err != nil {
			return fmt.Errorf("failed to insert well %s: %w", get(row, "id"), err)
		}
		d.counts.Wells++
	}
	return nil
}
